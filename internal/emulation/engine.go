package emulation

import (
	"context"
	"log"
	"time"

	"trade-emulator/internal/domain"
	"trade-emulator/internal/observability"
)

// RunOptions configures one emulation run.
type RunOptions struct {
	// InitialState seeds the run. Nil or a state dated domain.InitialDate starts at the
	// earliest transaction; its budget and holdings still carry over.
	InitialState *domain.State

	// FinalDate is the last walked day. Zero walks up to the latest transaction.
	FinalDate time.Time

	// OnlyIfTransactionExists skips hold days entirely, including the drawdown check.
	OnlyIfTransactionExists bool

	Commission *domain.Commission

	// PanicSellRate enables liquidation when the drawdown reaches -PanicSellRate.
	// 0 disables it.
	PanicSellRate float64

	Resolve ResolveOptions
}

// PanicEvent records a transaction pulled forward by a drawdown breach.
type PanicEvent struct {
	Date         time.Time // day the transaction was applied
	OriginalDate time.Time // day it was scheduled for
	Symbol       string
	Drawdown     float64
}

// Result is the outcome of a run. States[0] is the initial state.
type Result struct {
	States      []*domain.State
	Drawdowns   []domain.DrawdownSample // empty unless panic liquidation is enabled
	PanicEvents []PanicEvent

	// Skipped holds transactions dated before the first walked day. They are never applied.
	Skipped []domain.Transaction
}

// Engine walks transactions day by day.
type Engine struct {
	prices  PriceLookup
	logger  *log.Logger
	metrics *observability.Metrics
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Prices  PriceLookup
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewEngine creates an emulation engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	return &Engine{
		prices:  opts.Prices,
		logger:  logger,
		metrics: metrics,
	}
}

// Run emulates txs and returns every emitted state in order.
// txs is copied and never modified. Any error aborts the run.
func (e *Engine) Run(ctx context.Context, txs []domain.Transaction, opts RunOptions) (*Result, error) {
	started := time.Now()
	res, err := e.run(ctx, txs, opts)

	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RunsTotal.WithLabelValues(status).Inc()
	e.metrics.RunDuration.Observe(time.Since(started).Seconds())
	return res, err
}

func (e *Engine) run(ctx context.Context, txs []domain.Transaction, opts RunOptions) (*Result, error) {
	rate := opts.PanicSellRate
	if rate != 0 && !(rate > 0 && rate < 1) {
		return nil, ErrInvalidPanicSellRate
	}
	panicEnabled := rate != 0
	opts.Resolve = opts.Resolve.withLogger(e.logger)

	initial := opts.InitialState
	if initial == nil {
		initial = domain.InitialState()
	}

	pending := newQueue(txs)
	start, end, err := walkBounds(pending, initial, opts.FinalDate)
	if err != nil {
		return nil, err
	}

	res := &Result{States: []*domain.State{initial}}
	res.Skipped = pending.dropBefore(start)
	for _, tx := range res.Skipped {
		e.logger.Printf("skipping %s %d on %s: dated before the initial state %s",
			tx.Symbol, tx.Amount, domain.FormatDate(tx.Date), domain.FormatDate(start))
	}
	if panicEnabled {
		res.Drawdowns = append(res.Drawdowns, domain.DrawdownSample{Date: initial.Date})
	}

	var afterTx *domain.State
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !opts.OnlyIfTransactionExists && !pending.hasDue(day) {
			state, err := Derive(ctx, e.prices, day, res.last(), nil, nil, opts.Resolve)
			if err != nil {
				return nil, err
			}
			res.States = append(res.States, state)
			e.metrics.StatesEmitted.WithLabelValues("hold").Inc()

			if panicEnabled {
				dd := drawdown(afterTx, state)
				res.Drawdowns = append(res.Drawdowns, domain.DrawdownSample{Date: day, Drawdown: dd})
				if dd <= -rate {
					if err := e.liquidate(ctx, pending, day, dd, opts, res); err != nil {
						return nil, err
					}
				}
			}
		}

		for _, tx := range pending.popDue(day) {
			state, err := Derive(ctx, e.prices, day, res.last(), &tx, opts.Commission, opts.Resolve)
			if err != nil {
				return nil, err
			}
			res.States = append(res.States, state)
			afterTx = state
			e.metrics.StatesEmitted.WithLabelValues("transaction").Inc()
		}
	}

	return res, nil
}

// liquidate pulls the next pending transaction to day at the day's close.
func (e *Engine) liquidate(ctx context.Context, pending *queue, day time.Time, dd float64, opts RunOptions, res *Result) error {
	tx, ok := pending.pullAfter(day)
	if !ok {
		e.logger.Printf("drawdown %.4f on %s reached panic rate %.4f but no transaction is pending",
			dd, domain.FormatDate(day), opts.PanicSellRate)
		return nil
	}

	original := tx.Date
	tx.Date = day
	tx.SellPrice = domain.AtTag(domain.PriceClose)
	tx.Resolved = false

	row, _, err := e.prices.GetPrice(ctx, day, closeQuery(tx.Symbol))
	if err != nil {
		return err
	}
	tx, err = Resolve(tx, row, opts.Resolve)
	if err != nil {
		return err
	}
	pending.pushFront(tx)

	res.PanicEvents = append(res.PanicEvents, PanicEvent{
		Date:         day,
		OriginalDate: original,
		Symbol:       tx.Symbol,
		Drawdown:     dd,
	})
	e.metrics.PanicLiquidations.Inc()
	e.logger.Printf("panic liquidation on %s: drawdown %.4f, %s %d moved from %s at %d",
		domain.FormatDate(day), dd, tx.Symbol, tx.Amount, domain.FormatDate(original), tx.SellPrice.Value)
	return nil
}

// walkBounds returns the first and last day to walk.
func walkBounds(pending *queue, initial *domain.State, finalDate time.Time) (time.Time, time.Time, error) {
	undated := initial.Date.Equal(domain.InitialDate)
	if pending.empty() && (undated || finalDate.IsZero()) {
		return time.Time{}, time.Time{}, ErrNoTransactions
	}

	var first, last time.Time
	if !pending.empty() {
		first, last = pending.bounds()
	}

	start := first
	if !undated {
		start = domain.Day(initial.Date)
	}
	end := last
	if !finalDate.IsZero() {
		end = domain.Day(finalDate)
	}
	return start, end, nil
}

func (r *Result) last() *domain.State {
	return r.States[len(r.States)-1]
}
