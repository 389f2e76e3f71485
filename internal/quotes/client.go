// Package quotes fetches intraday OHLC quotes from the Yahoo Finance chart API.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/models"
)

// Client provides access to the Yahoo Finance v8 chart API.
type Client struct {
	baseURL    string
	rangeParam string
	interval   string
	httpClient *http.Client

	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig tunes retry behavior.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewClient creates a quote client. rangeParam and interval follow the chart
// API vocabulary ("1d", "1m", ...).
func NewClient(baseURL, rangeParam, interval string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		rangeParam:     rangeParam,
		interval:       interval,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// chartResponse is the chart API envelope.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
		PreviousClose      float64 `json:"previousClose"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []float64 `json:"open"`
			High   []float64 `json:"high"`
			Low    []float64 `json:"low"`
			Close  []float64 `json:"close"`
			Volume []int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// FetchBatch retrieves a quote per ticker. Each ticker succeeds or fails on
// its own; a missing symbol never fails the batch. Results keep request order.
func (c *Client) FetchBatch(ctx context.Context, tickers []string) models.Batch {
	batch := models.Batch{
		Results:   make([]models.QuoteResult, 0, len(tickers)),
		FetchedAt: time.Now(),
	}
	for _, ticker := range tickers {
		quote, err := c.Fetch(ctx, ticker)
		batch.Results = append(batch.Results, models.QuoteResult{
			Ticker: ticker,
			Quote:  quote,
			Err:    err,
		})
		if ctx.Err() != nil {
			break
		}
	}
	return batch
}

// Fetch retrieves the latest quote for one ticker.
func (c *Client) Fetch(ctx context.Context, ticker string) (*models.Quote, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("range", c.rangeParam)
	q.Set("interval", c.interval)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, ticker)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode chart response for %s: %w", ticker, err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %s", ticker, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data for %s", ticker)
	}

	return buildQuote(ticker, payload.Chart.Result[0])
}

// buildQuote reduces the intraday series to a single quote. The series often
// ends with null buckets, so the last price prefers the meta field and falls
// back to the last populated close.
func buildQuote(ticker string, result chartResult) (*models.Quote, error) {
	var opens, highs, lows, closes []float64
	if len(result.Indicators.Quote) > 0 {
		series := result.Indicators.Quote[0]
		opens, highs, lows, closes = series.Open, series.High, series.Low, series.Close
	}

	last := result.Meta.RegularMarketPrice
	if last <= 0 {
		last = lastPopulated(closes)
	}
	if last <= 0 {
		return nil, fmt.Errorf("no usable price for %s", ticker)
	}

	prevClose := result.Meta.PreviousClose
	if prevClose <= 0 {
		prevClose = result.Meta.ChartPreviousClose
	}

	ts := time.Unix(result.Meta.RegularMarketTime, 0)
	if result.Meta.RegularMarketTime == 0 && len(result.Timestamp) > 0 {
		ts = time.Unix(result.Timestamp[len(result.Timestamp)-1], 0)
	}

	high, low := seriesRange(highs, lows)
	quote := &models.Quote{
		Ticker:        ticker,
		Last:          decimal.NewFromFloat(last),
		PreviousClose: decimal.NewFromFloat(prevClose),
		Open:          decimal.NewFromFloat(firstPopulated(opens)),
		High:          decimal.NewFromFloat(high),
		Low:           decimal.NewFromFloat(low),
		Timestamp:     ts,
	}
	if err := quote.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quote for %s: %w", ticker, err)
	}
	return quote, nil
}

func firstPopulated(values []float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func lastPopulated(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] > 0 {
			return values[i]
		}
	}
	return 0
}

func seriesRange(highs, lows []float64) (high, low float64) {
	for _, v := range highs {
		if v > high {
			high = v
		}
	}
	for _, v := range lows {
		if v > 0 && (low == 0 || v < low) {
			low = v
		}
	}
	return high, low
}

// doRequest performs an HTTP GET with linear-backoff retry on transport errors
// and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "levelwatch/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
