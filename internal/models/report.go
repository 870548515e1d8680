package models

import "time"

type ReturnSeries struct {
	DailyReturns     []float64 `json:"dailyReturns"`
	TotalReturn      float64   `json:"totalReturn"`
	AnnualizedReturn *float64  `json:"annualizedReturn"`
}

// RiskMetrics. Beta is a neutral placeholder until a benchmark series exists;
// BetaIsPlaceholder is always true in that case.
type RiskMetrics struct {
	Volatility        float64 `json:"volatility"`
	SharpeRatio       float64 `json:"sharpeRatio"`
	MaxDrawdown       float64 `json:"maxDrawdown"`
	VaR95             float64 `json:"var95"`
	Beta              float64 `json:"beta"`
	BetaIsPlaceholder bool    `json:"betaIsPlaceholder"`
}

type MACD struct {
	Line       float64 `json:"line"`
	Signal     float64 `json:"signal"`
	Histogram  float64 `json:"histogram"`
	SignalMode string  `json:"signalMode"`
}

type Bollinger struct {
	Lower  float64 `json:"lower"`
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
}

// IndicatorSet fields are nil when the input is shorter than the window.
type IndicatorSet struct {
	SMA20     *float64   `json:"sma20"`
	SMA50     *float64   `json:"sma50"`
	RSI14     *float64   `json:"rsi14"`
	MACD      *MACD      `json:"macd"`
	Bollinger *Bollinger `json:"bollinger"`
}

type PeriodPerformance struct {
	Period    string   `json:"period"`
	Days      int      `json:"days"`
	Return    *float64 `json:"return"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Clipped   bool     `json:"clipped"`
	StartedAt int64    `json:"startedAt"`
}

type DailyStats struct {
	BestDay      *float64 `json:"bestDay"`
	WorstDay     *float64 `json:"worstDay"`
	PositiveDays int      `json:"positiveDays"`
	NegativeDays int      `json:"negativeDays"`
}

// AssetFailure records a per-asset fetch failure inside a fan-out.
type AssetFailure struct {
	TokenID        string `json:"tokenId"`
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

type PortfolioReport struct {
	ID              string                    `json:"id"`
	PortfolioID     string                    `json:"portfolioId"`
	Timeframe       string                    `json:"timeframe"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
	TotalValue      float64                   `json:"totalValue"`
	History         []DailyValue              `json:"history"`
	Returns         *ReturnSeries             `json:"returns"`
	Risk            *RiskMetrics              `json:"risk"`
	Periods         []PeriodPerformance       `json:"periods"`
	DailyStats      *DailyStats               `json:"dailyStats"`
	Allocation      []AllocationEntry         `json:"allocation"`
	Rebalance       []RebalanceRecommendation `json:"rebalance"`
	RebalanceNeeded bool                      `json:"rebalanceNeeded"`
	Transactions    int                       `json:"transactions"`
	FailedAssets    []AssetFailure            `json:"failedAssets,omitempty"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

type PriceSection struct {
	Current         float64  `json:"current"`
	Change24hPct    *float64 `json:"change24hPct"`
	Volume24h       *float64 `json:"volume24h"`
	TimeframeChange *float64 `json:"timeframeChangePct"`
	High            float64  `json:"high"`
	Low             float64  `json:"low"`
	Points          int      `json:"points"`
}

type VolumeSection struct {
	Latest  float64 `json:"latest"`
	Average float64 `json:"average"`
	Spikes  int     `json:"spikes"`
	Unusual bool    `json:"unusual"`
}

type DeveloperSection struct {
	Repository      string `json:"repository,omitempty"`
	Stars           int    `json:"stars"`
	Forks           int    `json:"forks"`
	Subscribers     int    `json:"subscribers"`
	OpenIssues      int    `json:"openIssues"`
	Commits4Weeks   int    `json:"commits4Weeks"`
	CommitsInWindow *int   `json:"commitsInWindow,omitempty"`
}

type TokenReport struct {
	ID          string            `json:"id"`
	TokenID     string            `json:"tokenId"`
	Timeframe   string            `json:"timeframe"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Price       *PriceSection     `json:"price"`
	Volume      *VolumeSection    `json:"volume"`
	Developer   *DeveloperSection `json:"developer"`
	Social      *SentimentRecord  `json:"social"`
	Technical   *IndicatorSet     `json:"technical"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// CoinDetails is the subset of the provider's coin record used for the
// developer section.
type CoinDetails struct {
	ID            string   `json:"id"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	GitHubRepos   []string `json:"githubRepos"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	Subscribers   int      `json:"subscribers"`
	OpenIssues    int      `json:"openIssues"`
	Commits4Weeks int      `json:"commits4Weeks"`
}

type RepoActivity struct {
	Owner      string    `json:"owner"`
	Repo       string    `json:"repo"`
	Stars      int       `json:"stars"`
	Forks      int       `json:"forks"`
	OpenIssues int       `json:"openIssues"`
	Commits    int       `json:"commits"`
	Since      time.Time `json:"since"`
}
