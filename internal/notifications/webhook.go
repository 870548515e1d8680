package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/httputil"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
)

type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "PortfolioAnalytics"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
	}
}

func (s *Sender) Send(ctx context.Context, msg string) {
	logger := logging.For("notify")
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	logger.Info().Msg(formatted)

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		logger.Error().Err(err).Msg("marshal payload")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to send notification after retries")
		return
	}
	resp.Body.Close()
}

// NotifyRebalance posts one line per recommendation whose |delta| exceeds
// thresholdPct, largest first.
func (s *Sender) NotifyRebalance(ctx context.Context, report *models.PortfolioReport, thresholdPct float64) {
	msg := RebalanceMessage(report, thresholdPct)
	if msg == "" {
		return
	}
	s.Send(ctx, msg)
}

func RebalanceMessage(report *models.PortfolioReport, thresholdPct float64) string {
	var over []models.RebalanceRecommendation
	for _, r := range report.Rebalance {
		if math.Abs(r.DeltaPct) > thresholdPct {
			over = append(over, r)
		}
	}
	if len(over) == 0 {
		return ""
	}
	sort.SliceStable(over, func(i, j int) bool {
		return math.Abs(over[i].DeltaPct) > math.Abs(over[j].DeltaPct)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Rebalance needed for portfolio %s (value $%.2f, threshold %.1fpp)", report.PortfolioID, report.TotalValue, thresholdPct)
	for _, r := range over {
		action := "buy"
		if r.AdjustmentAmount < 0 {
			action = "sell"
		}
		fmt.Fprintf(&b, "\n  %s: %.2f%% -> %.2f%% (%+.2fpp), %s %.6f",
			r.TokenID, r.CurrentAllocationPct, r.TargetAllocationPct, r.DeltaPct, action, math.Abs(r.AdjustmentAmount))
	}
	return b.String()
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
