package performance

import (
	"github.com/kjannette/portfolio-analytics/internal/models"
)

// Period is a trailing window measured in grid days.
type Period struct {
	Name string
	Days int
}

var StandardPeriods = []Period{
	{Name: "24h", Days: 1},
	{Name: "7d", Days: 7},
	{Name: "30d", Days: 30},
	{Name: "90d", Days: 90},
	{Name: "1y", Days: 365},
}

// Window computes return, high and low over the trailing p.Days of history,
// clipped to what is available. Return is nil when the window start is 0.
func Window(history []models.DailyValue, p Period) (models.PeriodPerformance, bool) {
	out := models.PeriodPerformance{Period: p.Name, Days: p.Days}
	if len(history) < 2 {
		return out, false
	}
	last := len(history) - 1
	start := last - p.Days
	if start < 0 {
		start = 0
		out.Clipped = true
	}

	out.StartedAt = history[start].Timestamp
	out.High, out.Low = history[start].Value, history[start].Value
	for _, v := range history[start:] {
		out.High = max(out.High, v.Value)
		out.Low = min(out.Low, v.Value)
	}
	if base := history[start].Value; base != 0 {
		r := (history[last].Value - base) / base
		out.Return = &r
	}
	return out, true
}

// Windows evaluates every standard period.
func Windows(history []models.DailyValue) []models.PeriodPerformance {
	out := make([]models.PeriodPerformance, 0, len(StandardPeriods))
	for _, p := range StandardPeriods {
		if w, ok := Window(history, p); ok {
			out = append(out, w)
		}
	}
	return out
}

// Stats returns best and worst single-day return and the count of positive
// and negative days. Flat days are in neither count.
func Stats(daily []float64) models.DailyStats {
	var s models.DailyStats
	if len(daily) == 0 {
		return s
	}
	best, worst := daily[0], daily[0]
	for _, r := range daily {
		best = max(best, r)
		worst = min(worst, r)
		switch {
		case r > 0:
			s.PositiveDays++
		case r < 0:
			s.NegativeDays++
		}
	}
	s.BestDay, s.WorstDay = &best, &worst
	return s
}
