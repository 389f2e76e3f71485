// Package storage provides SQLite-backed persistence for the quote cache and
// alert history.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/levelwatch/levelwatch/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db        *sql.DB
	maxAlerts int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/levelwatch/data.db.
func New(maxAlerts int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "levelwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxAlerts: maxAlerts}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_cache (
			ticker          TEXT PRIMARY KEY,
			last            TEXT NOT NULL,
			previous_close  TEXT NOT NULL,
			open            TEXT NOT NULL,
			high            TEXT NOT NULL,
			low             TEXT NOT NULL,
			observed_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_history (
			id              TEXT PRIMARY KEY,
			ticker          TEXT NOT NULL,
			price           TEXT NOT NULL,
			p2l_percent     TEXT NOT NULL,
			elapsed_minutes INTEGER NOT NULL,
			detected_at     INTEGER NOT NULL,
			delivered       INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_history_detected_at ON alert_history(detected_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_history_ticker ON alert_history(ticker)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveQuote upserts the last good quote for a ticker. Prices are stored as
// decimal strings so nothing is lost to float round-tripping.
func (s *Storage) SaveQuote(q *models.Quote) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid quote: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO quote_cache
			(ticker, last, previous_close, open, high, low, observed_at)
		VALUES (?,?,?,?,?,?,?)`,
		q.Ticker, q.Last.String(), q.PreviousClose.String(),
		q.Open.String(), q.High.String(), q.Low.String(),
		q.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}

// GetQuote loads the cached quote for a ticker, or nil when none exists.
func (s *Storage) GetQuote(ticker string) (*models.Quote, error) {
	row := s.db.QueryRow(`
		SELECT ticker, last, previous_close, open, high, low, observed_at
		FROM quote_cache WHERE ticker = ?`, ticker)
	q, err := scanQuote(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return q, nil
}

// GetAllQuotes loads the whole cache keyed by ticker.
func (s *Storage) GetAllQuotes() (map[string]*models.Quote, error) {
	rows, err := s.db.Query(`
		SELECT ticker, last, previous_close, open, high, low, observed_at
		FROM quote_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make(map[string]*models.Quote)
	for rows.Next() {
		q, err := scanQuote(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes[q.Ticker] = q
	}
	return quotes, rows.Err()
}

// AddAlert records a fired alert and rotates history down to maxAlerts rows.
func (s *Storage) AddAlert(a *models.Alert) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO alert_history
			(id, ticker, price, p2l_percent, elapsed_minutes, detected_at, delivered)
		VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Ticker, a.Price.String(), a.P2LPercent.String(),
		a.ElapsedMinutes, a.DetectedAt.UnixNano(), boolToInt(a.Delivered),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM alert_history WHERE id NOT IN (
			SELECT id FROM alert_history ORDER BY detected_at DESC LIMIT ?
		)`, s.maxAlerts); err != nil {
		return fmt.Errorf("failed to rotate alert history: %w", err)
	}

	return tx.Commit()
}

// RecentAlerts returns up to k alerts, newest first.
func (s *Storage) RecentAlerts(k int) ([]models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, ticker, price, p2l_percent, elapsed_minutes, detected_at, delivered
		FROM alert_history ORDER BY detected_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var price, p2l string
		var detectedAtNano int64
		var delivered int

		if err := rows.Scan(&a.ID, &a.Ticker, &price, &p2l, &a.ElapsedMinutes, &detectedAtNano, &delivered); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if a.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse alert price: %w", err)
		}
		if a.P2LPercent, err = decimal.NewFromString(p2l); err != nil {
			return nil, fmt.Errorf("failed to parse alert p2l: %w", err)
		}
		a.DetectedAt = time.Unix(0, detectedAtNano)
		a.Delivered = delivered != 0
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

func scanQuote(scan func(...any) error) (*models.Quote, error) {
	var q models.Quote
	var last, prevClose, open, high, low string
	var observedAtNano int64

	if err := scan(&q.Ticker, &last, &prevClose, &open, &high, &low, &observedAtNano); err != nil {
		return nil, err
	}

	var err error
	if q.Last, err = decimal.NewFromString(last); err != nil {
		return nil, fmt.Errorf("failed to parse last price: %w", err)
	}
	if q.PreviousClose, err = decimal.NewFromString(prevClose); err != nil {
		return nil, fmt.Errorf("failed to parse previous close: %w", err)
	}
	if q.Open, err = decimal.NewFromString(open); err != nil {
		return nil, fmt.Errorf("failed to parse open: %w", err)
	}
	if q.High, err = decimal.NewFromString(high); err != nil {
		return nil, fmt.Errorf("failed to parse high: %w", err)
	}
	if q.Low, err = decimal.NewFromString(low); err != nil {
		return nil, fmt.Errorf("failed to parse low: %w", err)
	}
	q.Timestamp = time.Unix(0, observedAtNano)
	return &q, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
