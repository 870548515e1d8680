package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, received *map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, received)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot")
	assert.False(t, s.Enabled())
	s.Send(context.Background(), "hello from test")
}

func TestSend_SlackFormat(t *testing.T) {
	var received map[string]string
	srv := capture(t, &received)

	s := NewSender(srv.URL, "TestBot")
	require.True(t, s.Enabled())
	s.Send(context.Background(), "analysis finished")

	assert.Equal(t, "TestBot", received["username"])
	assert.Equal(t, "`[TestBot] analysis finished`", received["text"])
}

func TestSend_DiscordFormat(t *testing.T) {
	var received map[string]string
	srv := capture(t, &received)

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "AlertBot")
	s.Send(context.Background(), "rebalance needed")

	assert.Equal(t, "[AlertBot] rebalance needed", received["content"])
	assert.Equal(t, "AlertBot", received["username"])
	_, hasText := received["text"]
	assert.False(t, hasText, "Discord payload should not have 'text' field")
}

func TestSend_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot")
	s.retry = httputil.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	// logs and returns
	s.Send(context.Background(), "this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "")
	assert.Equal(t, "PortfolioAnalytics", s.botName)
}

func report() *models.PortfolioReport {
	return &models.PortfolioReport{
		PortfolioID: "alpha",
		TotalValue:  1000,
		Rebalance: []models.RebalanceRecommendation{
			{TokenID: "ethereum", CurrentAllocationPct: 46, TargetAllocationPct: 50, DeltaPct: 4, AdjustmentAmount: 0.02},
			{TokenID: "solana", CurrentAllocationPct: 4, TargetAllocationPct: 10, DeltaPct: 6, AdjustmentAmount: 0.4},
			{TokenID: "bitcoin", CurrentAllocationPct: 70, TargetAllocationPct: 50, DeltaPct: -20, AdjustmentAmount: -20},
		},
	}
}

func TestRebalanceMessage(t *testing.T) {
	msg := RebalanceMessage(report(), 5)
	lines := strings.Split(msg, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "portfolio alpha")
	assert.Contains(t, lines[1], "bitcoin")
	assert.Contains(t, lines[1], "sell 20.000000")
	assert.Contains(t, lines[2], "solana")
	assert.Contains(t, lines[2], "buy 0.400000")
	assert.NotContains(t, msg, "ethereum")

	assert.Empty(t, RebalanceMessage(report(), 25))
}

func TestNotifyRebalance_PostsWhenOverThreshold(t *testing.T) {
	var received map[string]string
	srv := capture(t, &received)

	s := NewSender(srv.URL, "TestBot")
	s.NotifyRebalance(context.Background(), report(), 5)
	assert.Contains(t, received["text"], "bitcoin")

	received = nil
	s.NotifyRebalance(context.Background(), report(), 50)
	assert.Nil(t, received)
}
