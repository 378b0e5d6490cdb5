package reporting

import (
	"sort"
	"time"

	"trade-emulator/internal/emulation"
)

// Summarize computes run statistics from res.
func Summarize(runID string, res *emulation.Result, generatedAt time.Time) *Summary {
	s := &Summary{
		RunID:       runID,
		GeneratedAt: generatedAt,
		PanicEvents: res.PanicEvents,
	}
	if len(res.States) == 0 {
		return s
	}

	last := res.States[len(res.States)-1]
	s.FinalBudget = last.Budget
	s.FinalAppraisement = last.TotalAppraisement
	for symbol, h := range last.Holdings {
		s.FinalHoldings = append(s.FinalHoldings, HoldingRow{
			Symbol: symbol,
			Count:  h.Count,
			Price:  h.Price,
			Value:  h.Value(),
		})
	}
	sort.Slice(s.FinalHoldings, func(i, j int) bool {
		return s.FinalHoldings[i].Symbol < s.FinalHoldings[j].Symbol
	})

	walked := res.States[1:]
	if len(walked) == 0 {
		return s
	}
	s.States = len(walked)
	s.StartDate = walked[0].Date
	s.EndDate = walked[len(walked)-1].Date

	peakSet := false
	for _, st := range walked {
		if st.Transaction != nil {
			s.TransactionsApplied++
		} else {
			s.HoldDays++
		}

		if !peakSet || st.TotalAppraisement > s.PeakAppraisement {
			s.PeakAppraisement = st.TotalAppraisement
			s.PeakDate = st.Date
			peakSet = true
		}
		if dd := s.PeakAppraisement - st.TotalAppraisement; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
			s.MaxDrawdownDate = st.Date
		}
	}

	for _, sample := range res.Drawdowns {
		if sample.Drawdown < s.WorstDrawdownRatio {
			s.WorstDrawdownRatio = sample.Drawdown
		}
	}

	return s
}
