package emulation

import (
	"time"

	"trade-emulator/internal/domain"
)

// queue holds the transactions not yet applied, in input order.
type queue struct {
	items []domain.Transaction
}

// newQueue copies txs and normalizes their dates to midnight UTC.
func newQueue(txs []domain.Transaction) *queue {
	items := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		tx.Date = domain.Day(tx.Date)
		items[i] = tx
	}
	return &queue{items: items}
}

func (q *queue) empty() bool {
	return len(q.items) == 0
}

// bounds returns the earliest and latest pending dates. The queue must not be empty.
func (q *queue) bounds() (time.Time, time.Time) {
	first, last := q.items[0].Date, q.items[0].Date
	for _, tx := range q.items[1:] {
		if tx.Date.Before(first) {
			first = tx.Date
		}
		if tx.Date.After(last) {
			last = tx.Date
		}
	}
	return first, last
}

func (q *queue) hasDue(day time.Time) bool {
	for _, tx := range q.items {
		if tx.Date.Equal(day) {
			return true
		}
	}
	return false
}

// popDue removes and returns the transactions dated day, in input order.
func (q *queue) popDue(day time.Time) []domain.Transaction {
	var due []domain.Transaction
	rest := q.items[:0]
	for _, tx := range q.items {
		if tx.Date.Equal(day) {
			due = append(due, tx)
		} else {
			rest = append(rest, tx)
		}
	}
	q.items = rest
	return due
}

// pullAfter removes and returns the first transaction in input order dated after day.
func (q *queue) pullAfter(day time.Time) (domain.Transaction, bool) {
	for i, tx := range q.items {
		if tx.Date.After(day) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return tx, true
		}
	}
	return domain.Transaction{}, false
}

func (q *queue) pushFront(tx domain.Transaction) {
	q.items = append([]domain.Transaction{tx}, q.items...)
}

// dropBefore removes and returns the transactions dated before day, in input order.
func (q *queue) dropBefore(day time.Time) []domain.Transaction {
	var dropped []domain.Transaction
	rest := q.items[:0]
	for _, tx := range q.items {
		if tx.Date.Before(day) {
			dropped = append(dropped, tx)
		} else {
			rest = append(rest, tx)
		}
	}
	q.items = rest
	return dropped
}
