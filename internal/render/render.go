// Package render builds the server-side HTML for the dashboard, login page,
// and the admin user panel.
package render

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

// Sort options accepted by the dashboard.
const (
	SortDefault = "default"
	SortRunDown = "rundown"
	SortChange  = "change"
)

// SoundView describes the audio cue embedded when an alert is active. Src is
// template.URL because inline cues are data URIs, which html/template would
// otherwise refuse in a src attribute.
type SoundView struct {
	Src     template.URL
	Repeats int
}

// DashboardView is the data behind the main table page.
type DashboardView struct {
	Title          string
	Username       string
	IsAdmin        bool
	GeneratedAt    time.Time
	NoData         bool
	Rows           []models.Row
	AvgP2L         decimal.Decimal
	RefreshSeconds int
	SortOption     string
	Watchlist      string
	Threshold      string
	SoundEnabled   bool
	TelegramOn     bool
	Sound          *SoundView
	Notice         string
}

// LoginView is the data behind the login page.
type LoginView struct {
	Title string
	Error string
}

// UsersView is the data behind the admin user panel.
type UsersView struct {
	Title    string
	Username string
	Users    []models.User
	Error    string
	Notice   string
}

// Renderer holds the parsed page templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl := template.New("pages").Funcs(template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"pct":   func(d decimal.Decimal) string { return d.StringFixed(2) + "%" },
		"nullpct": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return "–"
			}
			return d.Decimal.StringFixed(2) + "%"
		},
		"changeClass": func(d decimal.Decimal) string {
			switch d.Sign() {
			case 1:
				return "up"
			case -1:
				return "down"
			default:
				return "flat"
			}
		},
		"clock": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	})
	tmpl, err := tmpl.Parse(pageTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Dashboard writes the main table page.
func (r *Renderer) Dashboard(w io.Writer, v DashboardView) error {
	return r.tmpl.ExecuteTemplate(w, "dashboard", v)
}

// Login writes the login page.
func (r *Renderer) Login(w io.Writer, v LoginView) error {
	return r.tmpl.ExecuteTemplate(w, "login", v)
}

// Users writes the admin user panel.
func (r *Renderer) Users(w io.Writer, v UsersView) error {
	return r.tmpl.ExecuteTemplate(w, "users", v)
}

// SortRows orders a copy of rows by the chosen option: run-down minutes or
// change percent, both descending. The default keeps configuration order.
func SortRows(rows []models.Row, option string) []models.Row {
	sorted := append([]models.Row(nil), rows...)
	switch option {
	case SortRunDown:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].RunDownMinutes > sorted[j].RunDownMinutes
		})
	case SortChange:
		sort.SliceStable(sorted, func(i, j int) bool {
			return changeKey(sorted[i]).Cmp(changeKey(sorted[j])) > 0
		})
	}
	return sorted
}

// changeKey sorts rows without a known change percent to the bottom.
func changeKey(r models.Row) decimal.Decimal {
	if !r.ChangePercent.Valid {
		return decimal.New(-1, 9)
	}
	return r.ChangePercent.Decimal
}
