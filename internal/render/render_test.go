package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRow(ticker, last, reference, p2l string, minutes int, overGrace bool) models.Row {
	return models.Row{
		Metric: models.Metric{
			Ticker:     ticker,
			Last:       dec(last),
			Reference:  dec(reference),
			Change:     dec(last).Sub(dec(reference)),
			P2LPercent: dec(p2l),
		},
		RunDownMinutes: minutes,
		OverGrace:      overGrace,
	}
}

func testView(rows []models.Row) DashboardView {
	return DashboardView{
		Title:          "Live Prices with P2L",
		Username:       "alice",
		GeneratedAt:    time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
		Rows:           rows,
		AvgP2L:         dec("-1.25"),
		RefreshSeconds: 60,
		SortOption:     SortDefault,
	}
}

func TestDashboardRendersRows(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rows := []models.Row{
		testRow("RELIANCE.NS", "2876.25", "2950", "-2.5", 12, false),
		testRow("TCS.NS", "3550", "3500", "1.43", 0, false),
	}
	var buf bytes.Buffer
	if err := r.Dashboard(&buf, testView(rows)); err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}

	html := buf.String()
	for _, want := range []string{
		"RELIANCE.NS", "2876.25", "2950.00",
		"TCS.NS",
		"-2.50%", "1.43%",
		`content="60"`, // meta refresh follows the poll interval
		"-1.25%",       // average row
	} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(html, "No data") {
		t.Error("dashboard should not show the no-data notice when rows exist")
	}
}

func TestDashboardOverGraceTag(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rows := []models.Row{testRow("X", "90", "100", "-10", 22, true)}
	if err := r.Dashboard(&buf, testView(rows)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `class="overdue"`) {
		t.Error("row past the grace period should carry the overdue tag")
	}

	buf.Reset()
	rows = []models.Row{testRow("X", "90", "100", "-10", 8, false)}
	if err := r.Dashboard(&buf, testView(rows)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `class="overdue"`) {
		t.Error("row inside the grace period should render plain minutes")
	}
}

func TestDashboardNoData(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	view := testView(nil)
	view.NoData = true
	var buf bytes.Buffer
	if err := r.Dashboard(&buf, view); err != nil {
		t.Fatal(err)
	}

	html := buf.String()
	if !strings.Contains(html, "No data") {
		t.Error("expected the no-data notice")
	}
	if strings.Contains(html, "Average P2L") {
		t.Error("dependent computations must be withheld without data")
	}
}

func TestDashboardFlashAndSound(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	row := testRow("X", "90", "100", "-10", 5, false)
	row.Alerting = true
	view := testView([]models.Row{row})
	view.Sound = &SoundView{Src: "https://example.com/beep.mp3", Repeats: 2}

	var buf bytes.Buffer
	if err := r.Dashboard(&buf, view); err != nil {
		t.Fatal(err)
	}

	html := buf.String()
	if !strings.Contains(html, `class="flash"`) {
		t.Error("alerting row should flash")
	}
	if !strings.Contains(html, "alert-sound") || !strings.Contains(html, "https://example.com/beep.mp3") {
		t.Error("sound cue should be embedded")
	}
}

func TestLoginPageHidesFieldDetail(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := r.Login(&buf, LoginView{Title: "Log in", Error: "Invalid login"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Invalid login") {
		t.Error("login error should be shown")
	}
}

func TestUsersPageProtectsAdmin(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	view := UsersView{
		Title:    "Users",
		Username: "admin",
		Users: []models.User{
			{Username: "admin", Role: models.RoleAdmin},
			{Username: "bob", Role: models.RoleUser},
		},
	}
	var buf bytes.Buffer
	if err := r.Users(&buf, view); err != nil {
		t.Fatal(err)
	}

	html := buf.String()
	// One delete form for bob, none for admin.
	if got := strings.Count(html, `action="/admin/users/delete"`); got != 1 {
		t.Errorf("delete forms = %d, want 1 (admin has none)", got)
	}
}

func TestSortRows(t *testing.T) {
	rows := []models.Row{
		func() models.Row {
			r := testRow("A", "95", "100", "-5", 3, false)
			r.ChangePercent = decimal.NewNullDecimal(dec("2"))
			return r
		}(),
		func() models.Row {
			r := testRow("B", "90", "100", "-10", 20, true)
			r.ChangePercent = decimal.NewNullDecimal(dec("-1"))
			return r
		}(),
		testRow("C", "101", "100", "1", 0, false), // no change percent
	}

	byRunDown := SortRows(rows, SortRunDown)
	if byRunDown[0].Ticker != "B" || byRunDown[2].Ticker != "C" {
		t.Errorf("rundown order = %v", tickers(byRunDown))
	}

	byChange := SortRows(rows, SortChange)
	if byChange[0].Ticker != "A" || byChange[2].Ticker != "C" {
		t.Errorf("change order = %v, unknown change sorts last", tickers(byChange))
	}

	byDefault := SortRows(rows, SortDefault)
	if byDefault[0].Ticker != "A" || byDefault[1].Ticker != "B" {
		t.Errorf("default order = %v, want input order", tickers(byDefault))
	}

	// The input slice is never reordered in place.
	if rows[0].Ticker != "A" || rows[1].Ticker != "B" {
		t.Error("SortRows mutated its input")
	}
}

func tickers(rows []models.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Ticker
	}
	return out
}
