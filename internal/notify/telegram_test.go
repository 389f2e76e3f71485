package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/watch"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"RELIANCE.NS", "RELIANCE\\.NS"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"-5.50%", "\\-5\\.50%"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatDecision(t *testing.T) {
	d := watch.Decision{
		Fire:           true,
		Ticker:         "INFY.NS",
		Price:          decimal.RequireFromString("1330.50"),
		P2LPercent:     decimal.RequireFromString("-4.96"),
		ElapsedMinutes: 22,
		At:             time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC),
	}

	msg := formatDecision(d)
	for _, want := range []string{
		"INFY\\.NS",
		"1330\\.50",
		"\\-4\\.96%",
		"Below level for 22 min",
		"2025\\-06\\-02 10:30:00",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatDecisionOmitsZeroElapsed(t *testing.T) {
	d := watch.Decision{
		Fire:       true,
		Ticker:     "X",
		Price:      decimal.RequireFromString("90"),
		P2LPercent: decimal.RequireFromString("-10"),
		At:         time.Now(),
	}
	if strings.Contains(formatDecision(d), "Below level for") {
		t.Error("message should omit the elapsed line for a fresh breach")
	}
}

func TestNewTelegramInvalidInputs(t *testing.T) {
	// An empty token fails bot creation before any message is sent.
	if _, err := NewTelegram("", "12345", 3, time.Second); err == nil {
		t.Error("expected error for empty bot token")
	}
}
