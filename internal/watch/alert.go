package watch

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

// Decision is the outcome of one alert evaluation. When Fire is false the other
// fields are zero.
type Decision struct {
	Fire           bool
	Ticker         string
	Price          decimal.Decimal
	P2LPercent     decimal.Decimal
	ElapsedMinutes int
	At             time.Time
}

// Evaluator decides whether a poll cycle should notify. It keeps a single
// "already notified" flag scoped to the current unbroken breach episode, so a
// sustained breach notifies exactly once and a fresh episode can notify again.
type Evaluator struct {
	notified bool
}

// NewEvaluator returns an evaluator with clear memory.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate picks the first row in input order that is on the watch-list with
// p2l strictly below threshold. A row exactly at the threshold does not
// qualify. When no row qualifies the breach has cleared and the memory resets;
// while the memory is set, further qualifying cycles yield no new alert.
func (e *Evaluator) Evaluate(rows []models.Row, watchlist map[string]bool, threshold decimal.Decimal, now time.Time) Decision {
	var hit *models.Row
	for i := range rows {
		if !watchlist[rows[i].Ticker] {
			continue
		}
		if rows[i].P2LPercent.Cmp(threshold) < 0 {
			hit = &rows[i]
			break
		}
	}

	if hit == nil {
		e.notified = false
		return Decision{}
	}
	if e.notified {
		return Decision{}
	}

	e.notified = true
	return Decision{
		Fire:           true,
		Ticker:         hit.Ticker,
		Price:          hit.Last,
		P2LPercent:     hit.P2LPercent,
		ElapsedMinutes: hit.RunDownMinutes,
		At:             now,
	}
}

// Pending reports whether the current breach episode has already notified.
func (e *Evaluator) Pending() bool {
	return e.notified
}
