// Command genmock generates synthetic raw and merged data files so the
// dashboard can be developed without NOAA or EIA credentials. It uses the
// actual domain transform so the merged table matches real pipeline output.
//
// Usage:
//
//	go run ./cmd/genmock -data-dir data -days 30 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emeze-dev/weather-energy-pipeline/internal/analysis"
	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/storage"
)

// cityProfile shapes a city's synthetic climate and load.
type cityProfile struct {
	baseTempTenthsC float64 // seasonal midpoint, tenths of Celsius
	tempSwing       float64
	baseLoadMWh     float64
	loadPerDegree   float64 // consumption response to temperature
}

var profiles = map[string]cityProfile{
	"New York": {baseTempTenthsC: 220, tempSwing: 60, baseLoadMWh: 210000, loadPerDegree: 900},
	"Chicago":  {baseTempTenthsC: 200, tempSwing: 70, baseLoadMWh: 150000, loadPerDegree: 700},
	"Houston":  {baseTempTenthsC: 310, tempSwing: 40, baseLoadMWh: 390000, loadPerDegree: 1600},
	"Phoenix":  {baseTempTenthsC: 360, tempSwing: 40, baseLoadMWh: 90000, loadPerDegree: 1200},
	"Seattle":  {baseTempTenthsC: 180, tempSwing: 40, baseLoadMWh: 25000, loadPerDegree: 200},
}

var defaultProfile = cityProfile{baseTempTenthsC: 220, tempSwing: 50, baseLoadMWh: 100000, loadPerDegree: 600}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data", "output directory for raw and processed files")
	days := flag.Int("days", 30, "number of days to generate")
	seed := flag.Int64("seed", 42, "random seed for reproducible fixtures")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Fix the clock so freshness checks over the fixture are reproducible.
	end := time.Now().UTC().Truncate(24 * time.Hour)
	domain.SetClock(clockwork.NewFakeClockAt(end.Add(6 * time.Hour)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	start := end.AddDate(0, 0, -*days)
	store := storage.New(*dataDir)

	var allObs []domain.WeatherObservation
	var allEnergy []domain.EnergyRecord

	for _, city := range cfg.Cities {
		obs, energy := generateCity(rng, city, start, *days)
		if err := store.WriteRawWeather(city.Name, start, end, obs); err != nil {
			return fmt.Errorf("writing weather for %s: %w", city.Name, err)
		}
		if err := store.WriteRawEnergy(city.Name, start, end, energy); err != nil {
			return fmt.Errorf("writing energy for %s: %w", city.Name, err)
		}
		allObs = append(allObs, obs...)
		allEnergy = append(allEnergy, energy...)
		log.Printf("%s: %d observations, %d energy rows", city.Name, len(obs), len(energy))
	}

	merged, stats := domain.Merge(domain.PivotWeather(allObs), allEnergy)
	if err := store.WriteMerged(merged); err != nil {
		return fmt.Errorf("writing merged table: %w", err)
	}
	log.Printf("wrote merged table: %s (%d rows)", store.MergedPath(), len(merged))

	printStats(merged, stats)
	return nil
}

// generateCity produces one city's daily TMAX/TMIN readings and a
// consumption series that tracks temperature, so correlations in the
// fixture are strong and positive.
func generateCity(rng *rand.Rand, city config.City, start time.Time, days int) ([]domain.WeatherObservation, []domain.EnergyRecord) {
	profile, ok := profiles[city.Name]
	if !ok {
		profile = defaultProfile
	}

	obs := make([]domain.WeatherObservation, 0, days*2)
	energy := make([]domain.EnergyRecord, 0, days)

	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)

		phase := 2 * math.Pi * float64(i) / 14
		tmax := profile.baseTempTenthsC + profile.tempSwing*math.Sin(phase) + rng.NormFloat64()*15
		tmin := tmax - 80 - rng.Float64()*40

		obs = append(obs,
			domain.WeatherObservation{City: city.Name, Date: date, Datatype: "TMAX", ValueTenthsC: math.Round(tmax)},
			domain.WeatherObservation{City: city.Name, Date: date, Datatype: "TMIN", ValueTenthsC: math.Round(tmin)},
		)

		tmaxF := domain.TenthsCelsiusToFahrenheit(math.Round(tmax))
		weekendDip := 1.0
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendDip = 0.93
		}
		load := (profile.baseLoadMWh + profile.loadPerDegree*(tmaxF-65)) * weekendDip
		load += rng.NormFloat64() * profile.baseLoadMWh * 0.01

		energy = append(energy, domain.EnergyRecord{
			Region:         city.EIARegionCode,
			City:           city.Name,
			Date:           date,
			ConsumptionMWh: math.Round(load),
		})
	}
	return obs, energy
}

func printStats(merged []domain.MergedRecord, stats domain.MergeStats) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows: %d (duplicates dropped: %d)\n", len(merged), stats.DuplicatesDropped)

	result := analysis.Correlate(merged)
	if result.Overall != nil {
		fmt.Printf("Overall r: %.4f over %d rows\n", *result.Overall, result.OverallSampleSize)
	}
	for _, cc := range result.Cities {
		if cc.Coefficient == nil {
			fmt.Printf("  %s: insufficient data (%d rows)\n", cc.City, cc.SampleSize)
			continue
		}
		fmt.Printf("  %s: r=%.4f over %d rows\n", cc.City, *cc.Coefficient, cc.SampleSize)
	}

	weekend, weekday := 0, 0
	for _, rec := range merged {
		if rec.IsWeekend {
			weekend++
		} else {
			weekday++
		}
	}
	fmt.Printf("Weekday rows: %d, weekend rows: %d\n", weekday, weekend)
}
