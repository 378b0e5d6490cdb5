package reporting

import (
	"fmt"
	"sort"
	"strings"

	"trade-emulator/internal/domain"
)

// RenderStatesCSV renders states as CSV string, one row per state in emission order.
// Holdings are encoded as symbol:count@price joined by ";".
func RenderStatesCSV(states []*domain.State) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,budget,total_appraisement,holdings,tx_symbol,tx_amount,tx_price\n")

	// Rows
	for _, st := range states {
		txSymbol, txAmount, txPrice := "", "", ""
		if st.Transaction != nil {
			txSymbol = st.Transaction.Symbol
			txAmount = fmt.Sprintf("%d", st.Transaction.Amount)
			txPrice = st.Transaction.SellPrice.String()
		}
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%s,%s,%s\n",
			domain.FormatDate(st.Date),
			st.Budget,
			st.TotalAppraisement,
			formatHoldings(st.Holdings),
			txSymbol,
			txAmount,
			txPrice,
		))
	}

	return sb.String()
}

// RenderDrawdownCSV renders drawdown samples as CSV string.
func RenderDrawdownCSV(samples []domain.DrawdownSample) string {
	var sb strings.Builder

	sb.WriteString("date,drawdown\n")
	for _, s := range samples {
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", domain.FormatDate(s.Date), s.Drawdown))
	}

	return sb.String()
}

func formatHoldings(holdings map[string]domain.Holding) string {
	symbols := make([]string, 0, len(holdings))
	for symbol := range holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	parts := make([]string, len(symbols))
	for i, symbol := range symbols {
		h := holdings[symbol]
		parts[i] = fmt.Sprintf("%s:%d@%d", symbol, h.Count, h.Price)
	}
	return strings.Join(parts, ";")
}
