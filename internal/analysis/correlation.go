// Package analysis computes the Pearson correlation between max temperature
// and energy consumption over the merged table.
package analysis

import (
	"math"
	"sort"

	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
)

// CityCorrelation reports one city's coefficient and how many rows produced
// it. Coefficient is nil when fewer than two usable rows exist or a series
// has zero variance.
type CityCorrelation struct {
	City        string   `json:"city"`
	Coefficient *float64 `json:"coefficient"`
	SampleSize  int      `json:"sample_size"`
}

// Result holds the overall and per-city correlations.
type Result struct {
	Overall           *float64          `json:"overall"`
	OverallSampleSize int               `json:"overall_sample_size"`
	Cities            []CityCorrelation `json:"cities"`
}

// Correlate computes Pearson r between MaxTempF and ConsumptionMWh, overall
// and per city. Rows with quality flags or no max temperature are excluded.
func Correlate(records []domain.MergedRecord) Result {
	var allTemps, allEnergy []float64
	tempsByCity := map[string][]float64{}
	energyByCity := map[string][]float64{}

	for _, rec := range records {
		if !rec.Usable() {
			continue
		}
		allTemps = append(allTemps, *rec.MaxTempF)
		allEnergy = append(allEnergy, rec.ConsumptionMWh)
		tempsByCity[rec.City] = append(tempsByCity[rec.City], *rec.MaxTempF)
		energyByCity[rec.City] = append(energyByCity[rec.City], rec.ConsumptionMWh)
	}

	result := Result{OverallSampleSize: len(allTemps)}
	if r, ok := pearson(allTemps, allEnergy); ok {
		result.Overall = &r
	}

	cities := make([]string, 0, len(tempsByCity))
	for city := range tempsByCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	for _, city := range cities {
		cc := CityCorrelation{City: city, SampleSize: len(tempsByCity[city])}
		if r, ok := pearson(tempsByCity[city], energyByCity[city]); ok {
			cc.Coefficient = &r
		}
		result.Cities = append(result.Cities, cc)
	}

	return result
}

// pearson returns the sample correlation coefficient of two equal-length
// series. ok is false when fewer than two points exist or either series has
// zero variance, where r is undefined.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
		sumYY += ys[i] * ys[i]
	}

	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}
