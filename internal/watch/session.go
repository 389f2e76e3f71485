package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/logger"
	"github.com/levelwatch/levelwatch/internal/models"
	"github.com/levelwatch/levelwatch/internal/p2l"
)

// Fetcher retrieves quotes for a batch of tickers. Partial failure is reported
// per ticker inside the batch, never as a batch error.
type Fetcher interface {
	FetchBatch(ctx context.Context, tickers []string) models.Batch
}

// Notifier delivers a fired alert. Delivery failures are logged by the session
// and never propagate into the poll cycle.
type Notifier interface {
	Notify(d Decision) error
}

// HistoryStore persists the quote cache and fired alerts.
type HistoryStore interface {
	SaveQuote(q *models.Quote) error
	GetQuote(ticker string) (*models.Quote, error)
	AddAlert(a *models.Alert) error
}

// ErrThresholdNotNegative rejects a non-negative alert threshold.
var ErrThresholdNotNegative = errors.New("alert threshold must be negative")

// Snapshot is the rendered state of one poll cycle.
type Snapshot struct {
	Rows     []models.Row
	AvgP2L   decimal.Decimal
	TakenAt  time.Time
	NoData   bool
	Alerting bool // some watch-listed row is currently past the threshold
}

// Options configures a session at creation time. References and Order are
// immutable for the session's lifetime; the rest can be changed at runtime.
type Options struct {
	References      map[string]decimal.Decimal
	Order           []string
	Threshold       decimal.Decimal
	GraceMinutes    int
	PollInterval    time.Duration
	Watchlist       []string
	SoundEnabled    bool
	TelegramEnabled bool
}

// Settings is the runtime-mutable slice of session state, exposed to the
// settings form.
type Settings struct {
	Watchlist       []string
	Threshold       decimal.Decimal
	SoundEnabled    bool
	TelegramEnabled bool
}

// Session owns all mutable dashboard state for one process: the run-down
// tracker, the alert memory, the watch-list and toggles, and the last good
// snapshot. All mutation happens under one lock; the background poller is the
// only periodic writer.
type Session struct {
	mu sync.Mutex

	references map[string]decimal.Decimal
	order      []string
	threshold  decimal.Decimal
	grace      int
	interval   time.Duration
	watchlist  map[string]bool
	sound      bool
	telegram   bool

	tracker   *RunDownTracker
	evaluator *Evaluator
	lastKnown map[string]models.Quote
	snapshot  Snapshot
	polled    bool

	fetcher  Fetcher
	notifier Notifier
	store    HistoryStore
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession creates a session. notifier and store may be nil, in which case
// alerts are evaluated but not delivered or recorded.
func NewSession(opts Options, fetcher Fetcher, notifier Notifier, store HistoryStore) *Session {
	watchlist := make(map[string]bool, len(opts.Watchlist))
	for _, ticker := range opts.Watchlist {
		watchlist[ticker] = true
	}
	return &Session{
		references: opts.References,
		order:      opts.Order,
		threshold:  opts.Threshold,
		grace:      opts.GraceMinutes,
		interval:   opts.PollInterval,
		watchlist:  watchlist,
		sound:      opts.SoundEnabled,
		telegram:   opts.TelegramEnabled,
		tracker:    NewRunDownTracker(),
		evaluator:  NewEvaluator(),
		lastKnown:  make(map[string]models.Quote),
		fetcher:    fetcher,
		notifier:   notifier,
		store:      store,
		now:        time.Now,
	}
}

// Poll runs one fetch-compute-evaluate cycle and returns the resulting
// snapshot. Per-ticker fetch failures fall back to the last known quote when
// one exists and are skipped otherwise; the cycle never fails as a whole.
func (s *Session) Poll(ctx context.Context) Snapshot {
	batch := s.fetcher.FetchBatch(ctx, s.tickers())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	quotes := make([]models.Quote, 0, len(batch.Results))
	for _, res := range batch.Results {
		if res.Err == nil && res.Quote != nil {
			quotes = append(quotes, *res.Quote)
			continue
		}
		fallback, ok := s.fallbackQuote(res.Ticker, now)
		if !ok {
			logger.Warn("Skipping %s this cycle: %v", res.Ticker, res.Err)
			continue
		}
		logger.Debug("Using fallback price for %s: %s", res.Ticker, fallback.Last)
		quotes = append(quotes, fallback)
	}

	if len(quotes) == 0 {
		s.snapshot = Snapshot{TakenAt: now, NoData: true}
		s.polled = true
		return s.snapshot
	}

	rows := make([]models.Row, 0, len(quotes))
	sum := decimal.Zero
	for _, q := range quotes {
		reference, ok := s.references[q.Ticker]
		if !ok {
			continue
		}

		metric, err := p2l.Compute(q.Ticker, q.Last, reference, decimal.NewNullDecimal(q.PreviousClose))
		if err != nil {
			logger.Warn("Skipping %s: %v", q.Ticker, err)
			continue
		}

		minutes := s.tracker.Observe(q.Ticker, q.Last, reference, now)
		rows = append(rows, models.Row{
			Metric:         metric,
			RunDownMinutes: minutes,
			OverGrace:      minutes >= s.grace,
			Stale:          q.Stale,
			ObservedAt:     q.Timestamp,
		})
		sum = sum.Add(metric.P2LPercent)

		if !q.Stale {
			s.lastKnown[q.Ticker] = q
			if s.store != nil {
				if err := s.store.SaveQuote(&q); err != nil {
					logger.Warn("Failed to cache quote for %s: %v", q.Ticker, err)
				}
			}
		}
	}

	if len(rows) == 0 {
		s.snapshot = Snapshot{TakenAt: now, NoData: true}
		s.polled = true
		return s.snapshot
	}

	alerting := s.markAlerting(rows)
	decision := s.evaluator.Evaluate(rows, s.watchlist, s.threshold, now)
	if decision.Fire {
		s.dispatch(decision)
	}

	s.snapshot = Snapshot{
		Rows:     rows,
		AvgP2L:   sum.Div(decimal.NewFromInt(int64(len(rows)))),
		TakenAt:  now,
		Alerting: alerting,
	}
	s.polled = true
	return s.snapshot
}

// markAlerting flags rows currently past the threshold for flash styling.
// This is presentation state and ignores the de-duplication memory.
func (s *Session) markAlerting(rows []models.Row) bool {
	any := false
	for i := range rows {
		if s.watchlist[rows[i].Ticker] && rows[i].P2LPercent.Cmp(s.threshold) < 0 {
			rows[i].Alerting = true
			any = true
		}
	}
	return any
}

// dispatch records and delivers a fired alert without blocking the poll cycle.
func (s *Session) dispatch(d Decision) {
	notifier := s.notifier
	store := s.store
	telegram := s.telegram
	go func() {
		delivered := false
		if telegram && notifier != nil {
			if err := notifier.Notify(d); err != nil {
				logger.Error("Failed to deliver alert for %s: %v", d.Ticker, err)
			} else {
				delivered = true
				logger.Info("Delivered alert for %s (p2l %s%%)", d.Ticker, d.P2LPercent.StringFixed(2))
			}
		}
		if store != nil {
			alert := &models.Alert{
				ID:             uuid.New().String(),
				Ticker:         d.Ticker,
				Price:          d.Price,
				P2LPercent:     d.P2LPercent,
				ElapsedMinutes: d.ElapsedMinutes,
				DetectedAt:     d.At,
				Delivered:      delivered,
			}
			if err := store.AddAlert(alert); err != nil {
				logger.Warn("Failed to record alert for %s: %v", d.Ticker, err)
			}
		}
	}()
}

// fallbackQuote substitutes the last known quote for a failed fetch, first from
// this session, then from the persisted cache. The substitute is marked stale.
func (s *Session) fallbackQuote(ticker string, now time.Time) (models.Quote, bool) {
	if q, ok := s.lastKnown[ticker]; ok {
		q.Stale = true
		return q, true
	}
	if s.store != nil {
		if cached, err := s.store.GetQuote(ticker); err == nil && cached != nil {
			cached.Stale = true
			s.lastKnown[ticker] = *cached
			return *cached, true
		}
	}
	return models.Quote{}, false
}

func (s *Session) tickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Snapshot returns the latest snapshot; ok is false before the first poll.
func (s *Session) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.polled
}

// Settings returns a copy of the runtime-mutable settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	watchlist := make([]string, 0, len(s.watchlist))
	for _, ticker := range s.order {
		if s.watchlist[ticker] {
			watchlist = append(watchlist, ticker)
		}
	}
	return Settings{
		Watchlist:       watchlist,
		Threshold:       s.threshold,
		SoundEnabled:    s.sound,
		TelegramEnabled: s.telegram,
	}
}

// SetWatchlist replaces the alert-eligible ticker set. Display stays
// unfiltered; unknown tickers are kept and simply never match a row.
func (s *Session) SetWatchlist(tickers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchlist = make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		s.watchlist[ticker] = true
	}
}

// SetThreshold replaces the alert threshold; it must stay negative.
func (s *Session) SetThreshold(threshold decimal.Decimal) error {
	if threshold.Sign() >= 0 {
		return ErrThresholdNotNegative
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = threshold
	return nil
}

// SetToggles switches sound and Telegram delivery on or off.
func (s *Session) SetToggles(sound, telegram bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sound = sound
	s.telegram = telegram
}

// Start launches the background poll loop. It returns immediately; the loop
// stops when ctx is cancelled or Stop is called.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Poll(ctx)
			}
		}
	}()
}

// Stop cancels the background loop and waits for it to exit. Safe to call when
// Start was never invoked.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
