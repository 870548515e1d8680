package indicators

import (
	"testing"
	"time"

	"github.com/kjannette/portfolio-analytics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestVolumeSpikes_NeedsLookback(t *testing.T) {
	spikes, unusual := VolumeSpikes(flat(24, 100))
	assert.Zero(t, spikes)
	assert.False(t, unusual)
}

func TestVolumeSpikes_CountsAgainstTrailingMean(t *testing.T) {
	v := append(flat(24, 100), 151, 100, 149)
	spikes, unusual := VolumeSpikes(v)
	// 151 > 150 counts; 149 does not exceed 1.5x the new mean
	assert.Equal(t, 1, spikes)
	assert.False(t, unusual)
}

func TestVolumeSpikes_UnusualAboveFive(t *testing.T) {
	v := flat(24, 100)
	for range 6 {
		v = append(v, 1000, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	}
	spikes, unusual := VolumeSpikes(v)
	assert.Equal(t, 6, spikes)
	assert.True(t, unusual)
}

func spaced(start time.Time, step time.Duration, vols ...float64) models.PriceSeries {
	out := make(models.PriceSeries, len(vols))
	for i, v := range vols {
		out[i] = models.PricePoint{Timestamp: start.Add(time.Duration(i) * step).UnixMilli(), Price: v}
	}
	return out
}

func TestHourlyVolumes_MeansPerClockHour(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	// 9:30 9:45 | 10:00 10:15 10:30 10:45 | 11:00
	s := spaced(start, 15*time.Minute, 10, 20, 100, 100, 200, 200, 40)
	assert.Equal(t, []float64{15, 150, 40}, HourlyVolumes(s))

	assert.Empty(t, HourlyVolumes(nil))
}

func TestHourlyVolumes_SkipsEmptyHours(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	s := models.PriceSeries{
		{Timestamp: start.UnixMilli(), Price: 5},
		{Timestamp: start.Add(3 * time.Hour).UnixMilli(), Price: 7},
	}
	assert.Equal(t, []float64{5, 7}, HourlyVolumes(s))
}

func TestVolume_Summary(t *testing.T) {
	assert.Nil(t, Volume(nil))

	s := Volume(spaced(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Hour, 10, 20, 30))
	require.NotNil(t, s)
	assert.Equal(t, 30.0, s.Latest)
	assert.Equal(t, 20.0, s.Average)
	assert.Zero(t, s.Spikes)
}

func TestVolume_FiveMinuteSamplesUseHourlyWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	vols := append(flat(48*12, 100), flat(3*12, 200)...)
	s := Volume(spaced(start, 5*time.Minute, vols...))
	require.NotNil(t, s)
	// hours 48..50 are at 200; the trailing mean rises as they enter the window
	assert.Equal(t, 3, s.Spikes)
	assert.False(t, s.Unusual)
}
