// Package p2l computes price-to-level metrics: the percentage deviation of a
// live price from its fixed reference level and from the previous close.
package p2l

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

var (
	// ErrInvalidReference reports a zero or negative reference price. In a
	// validated configuration this never fires; it guards direct callers.
	ErrInvalidReference = errors.New("reference price must be positive")

	// ErrInvalidLast reports a zero or negative last price.
	ErrInvalidLast = errors.New("last price must be positive")
)

var hundred = decimal.NewFromInt(100)

// Compute derives the metric for one ticker. previousClose is optional: when it
// is not valid (unknown), ChangePercent is left unset. Division by zero is
// rejected up front rather than producing infinities.
func Compute(ticker string, last, reference decimal.Decimal, previousClose decimal.NullDecimal) (models.Metric, error) {
	if !reference.IsPositive() {
		return models.Metric{}, ErrInvalidReference
	}
	if !last.IsPositive() {
		return models.Metric{}, ErrInvalidLast
	}

	change := last.Sub(reference)
	metric := models.Metric{
		Ticker:     ticker,
		Last:       last,
		Reference:  reference,
		Change:     change,
		P2LPercent: change.Div(reference).Mul(hundred),
	}

	if previousClose.Valid && previousClose.Decimal.IsPositive() {
		metric.ChangePercent = decimal.NewNullDecimal(
			last.Sub(previousClose.Decimal).Div(previousClose.Decimal).Mul(hundred),
		)
	}

	return metric, nil
}
