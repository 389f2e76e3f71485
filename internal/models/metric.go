package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metric is the derived per-ticker measurement for one poll: deviation from the
// configured reference level and from the previous close. It has no identity
// beyond the poll that produced it.
type Metric struct {
	Ticker        string              `json:"ticker"`
	Last          decimal.Decimal     `json:"last"`
	Reference     decimal.Decimal     `json:"reference"`
	Change        decimal.Decimal     `json:"change"`
	P2LPercent    decimal.Decimal     `json:"p2l_percent"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
}

// Row is one rendered dashboard line: a metric plus run-down and presentation state.
type Row struct {
	Metric
	RunDownMinutes int       `json:"run_down_minutes"`
	OverGrace      bool      `json:"over_grace"`
	Stale          bool      `json:"stale,omitempty"`
	Alerting       bool      `json:"alerting,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}

// Alert is a fired threshold-breach notification record.
type Alert struct {
	ID             string          `json:"id"`
	Ticker         string          `json:"ticker"`
	Price          decimal.Decimal `json:"price"`
	P2LPercent     decimal.Decimal `json:"p2l_percent"`
	ElapsedMinutes int             `json:"elapsed_minutes"`
	DetectedAt     time.Time       `json:"detected_at"`
	Delivered      bool            `json:"delivered"`
}

// User is a credential-store account as exposed to the admin panel. The password
// hash never leaves the store.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Roles recognised by the credential store.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
