package reporting

import (
	"fmt"
	"strings"
	"time"

	"trade-emulator/internal/domain"
)

// RenderMarkdown renders a run summary as Markdown string.
func RenderMarkdown(s *Summary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Emulation Report\n\n")
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", s.RunID))
	}
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period | %s |\n", formatPeriod(s)))
	sb.WriteString(fmt.Sprintf("| States | %d |\n", s.States))
	sb.WriteString(fmt.Sprintf("| Transactions Applied | %d |\n", s.TransactionsApplied))
	sb.WriteString(fmt.Sprintf("| Hold Days | %d |\n", s.HoldDays))
	sb.WriteString(fmt.Sprintf("| Final Budget | %d |\n", s.FinalBudget))
	sb.WriteString(fmt.Sprintf("| Final Appraisement | %d |\n", s.FinalAppraisement))
	sb.WriteString(fmt.Sprintf("| Peak Appraisement | %d (%s) |\n", s.PeakAppraisement, formatDay(s.PeakDate)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %d (%s) |\n", s.MaxDrawdown, formatDay(s.MaxDrawdownDate)))
	sb.WriteString(fmt.Sprintf("| Worst Drawdown Ratio | %.4f |\n", s.WorstDrawdownRatio))
	sb.WriteString("\n")

	// Holdings
	sb.WriteString("## Final Holdings\n\n")
	if len(s.FinalHoldings) == 0 {
		sb.WriteString("No open positions.\n\n")
	} else {
		sb.WriteString("| Symbol | Count | Price | Value |\n")
		sb.WriteString("|--------|-------|-------|-------|\n")
		for _, h := range s.FinalHoldings {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", h.Symbol, h.Count, h.Price, h.Value))
		}
		sb.WriteString("\n")
	}

	// Panic liquidations
	sb.WriteString("## Panic Liquidations\n\n")
	if len(s.PanicEvents) == 0 {
		sb.WriteString("None.\n")
		return sb.String()
	}
	sb.WriteString("| Date | Scheduled | Symbol | Drawdown |\n")
	sb.WriteString("|------|-----------|--------|----------|\n")
	for _, ev := range s.PanicEvents {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f |\n",
			formatDay(ev.Date), formatDay(ev.OriginalDate), ev.Symbol, ev.Drawdown))
	}

	return sb.String()
}

func formatPeriod(s *Summary) string {
	if s.States == 0 {
		return "-"
	}
	return formatDay(s.StartDate) + " - " + formatDay(s.EndDate)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return domain.FormatDate(t)
}
