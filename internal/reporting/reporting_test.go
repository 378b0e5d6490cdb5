package reporting

import (
	"strings"
	"testing"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/emulation"
)

func day(n int) time.Time {
	return domain.Date(2024, time.January, n)
}

func sampleResult() *emulation.Result {
	buy := domain.Transaction{Date: day(1), Symbol: "S", Amount: 10, SellPrice: domain.AtPrice(100), Resolved: true}
	sell := domain.Transaction{Date: day(2), Symbol: "S", Amount: -10, SellPrice: domain.AtPrice(60), Resolved: true}
	return &emulation.Result{
		States: []*domain.State{
			domain.InitialState(),
			{Date: day(1), Budget: -1000, Holdings: map[string]domain.Holding{"S": {Count: 10, Price: 100}}, TotalAppraisement: 0, Transaction: &buy},
			{Date: day(2), Budget: -1000, Holdings: map[string]domain.Holding{"S": {Count: 10, Price: 60}}, TotalAppraisement: -400},
			{Date: day(2), Budget: -400, Holdings: map[string]domain.Holding{}, TotalAppraisement: -400, Transaction: &sell},
			{Date: day(3), Budget: -400, Holdings: map[string]domain.Holding{}, TotalAppraisement: -400},
		},
		Drawdowns: []domain.DrawdownSample{
			{Date: domain.InitialDate},
			{Date: day(2), Drawdown: -0.4},
			{Date: day(3)},
		},
		PanicEvents: []emulation.PanicEvent{
			{Date: day(2), OriginalDate: day(5), Symbol: "S", Drawdown: -0.4},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("run-1", sampleResult(), time.Unix(0, 0).UTC())

	if s.States != 4 || s.TransactionsApplied != 2 || s.HoldDays != 2 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if !s.StartDate.Equal(day(1)) || !s.EndDate.Equal(day(3)) {
		t.Errorf("unexpected period %v - %v", s.StartDate, s.EndDate)
	}
	if s.FinalBudget != -400 || s.FinalAppraisement != -400 {
		t.Errorf("unexpected final values: %d, %d", s.FinalBudget, s.FinalAppraisement)
	}
	if s.PeakAppraisement != 0 || !s.PeakDate.Equal(day(1)) {
		t.Errorf("unexpected peak %d on %v", s.PeakAppraisement, s.PeakDate)
	}
	if s.MaxDrawdown != 400 || !s.MaxDrawdownDate.Equal(day(2)) {
		t.Errorf("unexpected max drawdown %d on %v", s.MaxDrawdown, s.MaxDrawdownDate)
	}
	if s.WorstDrawdownRatio != -0.4 {
		t.Errorf("unexpected worst ratio %v", s.WorstDrawdownRatio)
	}
	if len(s.FinalHoldings) != 0 || len(s.PanicEvents) != 1 {
		t.Errorf("unexpected holdings/events: %+v", s)
	}
}

func TestSummarize_HeadOnly(t *testing.T) {
	s := Summarize("", &emulation.Result{States: []*domain.State{domain.InitialState()}}, time.Now())
	if s.States != 0 || s.HoldDays != 0 {
		t.Errorf("head state must not be counted: %+v", s)
	}
	if !strings.Contains(RenderMarkdown(s), "| Period | - |") {
		t.Error("empty run should render an empty period")
	}
}

func TestRenderStatesCSV(t *testing.T) {
	res := sampleResult()
	res.States[2].Holdings["A"] = domain.Holding{Count: 1, Price: 5}

	out := RenderStatesCSV(res.States)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(lines))
	}
	if lines[0] != "date,budget,total_appraisement,holdings,tx_symbol,tx_amount,tx_price" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "19000101,0,0,,,," {
		t.Errorf("unexpected head row %q", lines[1])
	}
	if lines[2] != "20240101,-1000,0,S:10@100,S,10,100" {
		t.Errorf("unexpected buy row %q", lines[2])
	}
	if lines[3] != "20240102,-1000,-400,A:1@5;S:10@60,,," {
		t.Errorf("holdings should be sorted by symbol, got %q", lines[3])
	}
}

func TestRenderDrawdownCSV(t *testing.T) {
	out := RenderDrawdownCSV(sampleResult().Drawdowns)
	want := "date,drawdown\n19000101,0.000000\n20240102,-0.400000\n20240103,0.000000\n"
	if out != want {
		t.Errorf("RenderDrawdownCSV() =\n%s\nwant\n%s", out, want)
	}
}

func TestRenderMarkdown(t *testing.T) {
	res := sampleResult()
	res.States = append(res.States, &domain.State{
		Date:              day(4),
		Budget:            -500,
		Holdings:          map[string]domain.Holding{"T": {Count: 2, Price: 50}},
		TotalAppraisement: -400,
	})
	md := RenderMarkdown(Summarize("run-1", res, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)))

	for _, want := range []string{
		"# Emulation Report",
		"Run: `run-1`",
		"Generated: 2024-01-06T00:00:00Z",
		"| Period | 20240101 - 20240104 |",
		"| Max Drawdown | 400 (20240102) |",
		"| T | 2 | 50 | 100 |",
		"| 20240102 | 20240105 | S | -0.4000 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}
