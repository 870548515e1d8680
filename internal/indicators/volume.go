package indicators

import "github.com/kjannette/portfolio-analytics/internal/models"

const hourMillis int64 = 60 * 60 * 1000

const (
	spikeLookback   = 24
	spikeMultiplier = 1.5
	unusualSpikes   = 5
)

// VolumeSpikes counts hourly volumes that exceed 1.5x the mean of the
// preceding 24 hours. The series is unusual with more than 5 spikes.
func VolumeSpikes(volumes []float64) (spikes int, unusual bool) {
	if len(volumes) <= spikeLookback {
		return 0, false
	}
	sum := 0.0
	for _, v := range volumes[:spikeLookback] {
		sum += v
	}
	for i := spikeLookback; i < len(volumes); i++ {
		if volumes[i] > spikeMultiplier*(sum/spikeLookback) {
			spikes++
		}
		sum += volumes[i] - volumes[i-spikeLookback]
	}
	return spikes, spikes > unusualSpikes
}

// HourlyVolumes groups a time-ordered volume series into clock hours and
// returns the mean sample volume of each hour. Hours without samples are
// skipped, so partial first and last hours do not read as dips.
func HourlyVolumes(series models.PriceSeries) []float64 {
	var out []float64
	bucket, sum, n := int64(-1), 0.0, 0
	for _, p := range series {
		h := p.Timestamp / hourMillis
		if h != bucket && n > 0 {
			out = append(out, sum/float64(n))
			sum, n = 0, 0
		}
		bucket = h
		sum += p.Price
		n++
	}
	if n > 0 {
		out = append(out, sum/float64(n))
	}
	return out
}

// Volume summarizes a volume series. Latest and Average are over the raw
// samples; spikes are counted on hourly buckets. Nil for an empty series.
func Volume(series models.PriceSeries) *models.VolumeSection {
	if len(series) == 0 {
		return nil
	}
	sum := 0.0
	for _, p := range series {
		sum += p.Price
	}
	spikes, unusual := VolumeSpikes(HourlyVolumes(series))
	return &models.VolumeSection{
		Latest:  series[len(series)-1].Price,
		Average: sum / float64(len(series)),
		Spikes:  spikes,
		Unusual: unusual,
	}
}
