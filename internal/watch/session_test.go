package watch

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

type fakeFetcher struct {
	batches []models.Batch
	calls   int
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, tickers []string) models.Batch {
	batch := f.batches[f.calls%len(f.batches)]
	f.calls++
	return batch
}

type fakeNotifier struct {
	decisions chan Decision
	fail      bool
}

func (f *fakeNotifier) Notify(d Decision) error {
	f.decisions <- d
	if f.fail {
		return context.DeadlineExceeded
	}
	return nil
}

type fakeStore struct {
	quotes map[string]models.Quote
	alerts chan models.Alert
}

func newFakeStore() *fakeStore {
	return &fakeStore{quotes: make(map[string]models.Quote), alerts: make(chan models.Alert, 8)}
}

func (f *fakeStore) SaveQuote(q *models.Quote) error {
	f.quotes[q.Ticker] = *q
	return nil
}

func (f *fakeStore) GetQuote(ticker string) (*models.Quote, error) {
	if q, ok := f.quotes[ticker]; ok {
		return &q, nil
	}
	return nil, nil
}

func (f *fakeStore) AddAlert(a *models.Alert) error {
	f.alerts <- *a
	return nil
}

func quoteOK(ticker, last string, ts time.Time) models.QuoteResult {
	return models.QuoteResult{
		Ticker: ticker,
		Quote: &models.Quote{
			Ticker:        ticker,
			Last:          dec(last),
			PreviousClose: dec("100"),
			Timestamp:     ts,
		},
	}
}

func quoteFail(ticker string) models.QuoteResult {
	return models.QuoteResult{Ticker: ticker, Err: context.DeadlineExceeded}
}

func testOptions() Options {
	return Options{
		References: map[string]decimal.Decimal{
			"A": dec("100"),
			"B": dec("200"),
		},
		Order:           []string{"A", "B"},
		Threshold:       dec("-5"),
		GraceMinutes:    15,
		PollInterval:    time.Minute,
		Watchlist:       []string{"A"},
		TelegramEnabled: true,
	}
}

func TestSessionPollBuildsRows(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "98", now), quoteOK("B", "210", now)},
	}}}

	s := NewSession(testOptions(), fetcher, nil, nil)
	s.now = func() time.Time { return now }

	snap := s.Poll(context.Background())
	if snap.NoData {
		t.Fatal("expected data")
	}
	if len(snap.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(snap.Rows))
	}
	if snap.Rows[0].Ticker != "A" || !snap.Rows[0].P2LPercent.Equal(dec("-2")) {
		t.Errorf("row A = %+v, want p2l -2", snap.Rows[0])
	}
	if !snap.Rows[1].P2LPercent.Equal(dec("5")) {
		t.Errorf("row B p2l = %s, want 5", snap.Rows[1].P2LPercent)
	}
	// avg of -2 and 5
	if !snap.AvgP2L.Equal(dec("1.5")) {
		t.Errorf("avg = %s, want 1.5", snap.AvgP2L)
	}
}

func TestSessionSkipsFailedTickerWithoutHistory(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "98", now), quoteFail("B")},
	}}}

	s := NewSession(testOptions(), fetcher, nil, nil)
	snap := s.Poll(context.Background())
	if len(snap.Rows) != 1 || snap.Rows[0].Ticker != "A" {
		t.Fatalf("rows = %+v, want only A", snap.Rows)
	}
}

func TestSessionFallsBackToLastKnownQuote(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{batches: []models.Batch{
		{Results: []models.QuoteResult{quoteOK("A", "98", now), quoteOK("B", "210", now)}},
		{Results: []models.QuoteResult{quoteOK("A", "98", now), quoteFail("B")}},
	}}

	s := NewSession(testOptions(), fetcher, nil, nil)
	s.Poll(context.Background())
	snap := s.Poll(context.Background())

	if len(snap.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 with fallback", len(snap.Rows))
	}
	b := snap.Rows[1]
	if !b.Stale {
		t.Error("fallback row should be marked stale")
	}
	if !b.Last.Equal(dec("210")) {
		t.Errorf("fallback price = %s, want last known 210", b.Last)
	}
}

func TestSessionFallsBackToPersistedQuote(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.quotes["B"] = models.Quote{Ticker: "B", Last: dec("195"), PreviousClose: dec("190"), Timestamp: now}

	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "98", now), quoteFail("B")},
	}}}

	s := NewSession(testOptions(), fetcher, nil, store)
	snap := s.Poll(context.Background())
	if len(snap.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(snap.Rows))
	}
	if !snap.Rows[1].Stale || !snap.Rows[1].Last.Equal(dec("195")) {
		t.Errorf("row B = %+v, want stale cached 195", snap.Rows[1])
	}
}

func TestSessionNoData(t *testing.T) {
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteFail("A"), quoteFail("B")},
	}}}

	s := NewSession(testOptions(), fetcher, nil, nil)
	snap := s.Poll(context.Background())
	if !snap.NoData {
		t.Error("all-failed batch should yield the no-data condition")
	}
	if len(snap.Rows) != 0 {
		t.Errorf("rows = %d, want none", len(snap.Rows))
	}
}

func TestSessionDispatchesAlertOnce(t *testing.T) {
	now := time.Now()
	// A at 90 vs reference 100 is -10%, past the -5 threshold.
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "90", now)},
	}}}
	notifier := &fakeNotifier{decisions: make(chan Decision, 8)}
	store := newFakeStore()

	s := NewSession(testOptions(), fetcher, notifier, store)

	s.Poll(context.Background())
	select {
	case d := <-notifier.decisions:
		if d.Ticker != "A" {
			t.Errorf("notified ticker = %s, want A", d.Ticker)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification")
	}
	select {
	case a := <-store.alerts:
		if a.Ticker != "A" || !a.Delivered {
			t.Errorf("recorded alert = %+v, want delivered A", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a recorded alert")
	}

	// The sustained breach must not notify again.
	s.Poll(context.Background())
	select {
	case <-notifier.decisions:
		t.Fatal("sustained breach notified twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionAlertingFlagIgnoresMemory(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "90", now)},
	}}}
	s := NewSession(testOptions(), fetcher, nil, nil)

	first := s.Poll(context.Background())
	second := s.Poll(context.Background())
	if !first.Alerting || !second.Alerting {
		t.Error("rows past the threshold should keep flashing on every cycle")
	}
	if !second.Rows[0].Alerting {
		t.Error("breached row should carry the alerting flag")
	}
}

func TestSessionSettings(t *testing.T) {
	s := NewSession(testOptions(), &fakeFetcher{batches: []models.Batch{{}}}, nil, nil)

	if err := s.SetThreshold(dec("3")); err != ErrThresholdNotNegative {
		t.Errorf("positive threshold: got %v, want ErrThresholdNotNegative", err)
	}
	if err := s.SetThreshold(dec("-3")); err != nil {
		t.Errorf("negative threshold rejected: %v", err)
	}

	s.SetWatchlist([]string{"B", "UNKNOWN"})
	s.SetToggles(true, false)

	settings := s.Settings()
	if !settings.Threshold.Equal(dec("-3")) {
		t.Errorf("threshold = %s, want -3", settings.Threshold)
	}
	if !settings.SoundEnabled || settings.TelegramEnabled {
		t.Errorf("toggles = %+v, want sound on, telegram off", settings)
	}
	if len(settings.Watchlist) != 1 || settings.Watchlist[0] != "B" {
		t.Errorf("watchlist = %v, want configured tickers only in display order", settings.Watchlist)
	}
}

func TestSessionStartStop(t *testing.T) {
	opts := testOptions()
	opts.PollInterval = 10 * time.Millisecond
	fetcher := &fakeFetcher{batches: []models.Batch{{
		Results: []models.QuoteResult{quoteOK("A", "98", time.Now())},
	}}}

	s := NewSession(opts, fetcher, nil, nil)
	s.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := s.Snapshot(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("background loop never polled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	calls := fetcher.calls
	time.Sleep(50 * time.Millisecond)
	if fetcher.calls != calls {
		t.Error("poller kept running after Stop")
	}

	// Stop is safe to call again.
	s.Stop()
}
