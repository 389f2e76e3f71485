// Package models defines the core domain entities: quotes, metrics, dashboard rows,
// and alert records.
package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one observation of a ticker from the quote source. Quotes are produced
// fresh each poll and are not long-lived; Stale marks a substituted fallback value
// used when the live fetch failed.
type Quote struct {
	Ticker        string          `json:"ticker"`
	Last          decimal.Decimal `json:"last"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Timestamp     time.Time       `json:"timestamp"`
	Stale         bool            `json:"stale,omitempty"`
}

// Validate checks quote field constraints.
func (q *Quote) Validate() error {
	if q.Ticker == "" {
		return errors.New("ticker must not be empty")
	}
	if !q.Last.IsPositive() {
		return errors.New("last price must be positive")
	}
	if q.PreviousClose.IsNegative() {
		return errors.New("previous close must not be negative")
	}
	if q.High.IsPositive() && q.Low.IsPositive() && q.High.Cmp(q.Low) < 0 {
		return errors.New("high must be >= low")
	}
	return nil
}

// QuoteResult is the per-ticker outcome of a batch fetch. Exactly one of Quote
// and Err is set. A failed ticker is an observable result, not a swallowed error.
type QuoteResult struct {
	Ticker string
	Quote  *Quote
	Err    error
}

// Batch holds the results of one fetch cycle in request order.
type Batch struct {
	Results   []QuoteResult
	FetchedAt time.Time
}

// Quotes returns the successfully fetched quotes in request order.
func (b Batch) Quotes() []Quote {
	quotes := make([]Quote, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Err == nil && r.Quote != nil {
			quotes = append(quotes, *r.Quote)
		}
	}
	return quotes
}

// Failed returns the tickers that could not be fetched this cycle.
func (b Batch) Failed() []string {
	var failed []string
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r.Ticker)
		}
	}
	return failed
}
