package domain

import (
	"sort"
	"time"
)

// Plausible physical range for any US surface temperature, in Fahrenheit.
// Values outside it are flagged, never dropped.
const (
	MinPlausibleTempF = -50.0
	MaxPlausibleTempF = 140.0
)

// TenthsCelsiusToFahrenheit converts a CDO tenths-of-Celsius reading to
// Fahrenheit. The arithmetic is exact: F = tenths/10 × 9/5 + 32.
func TenthsCelsiusToFahrenheit(tenths float64) float64 {
	return tenths/10*9/5 + 32
}

// PivotWeather collapses raw TMAX/TMIN observations into one WeatherRecord
// per (city, date), converting units. Observations with an unknown datatype
// are ignored. When a datatype repeats for the same city-day the first
// reading wins. Output is sorted by (city, date).
func PivotWeather(obs []WeatherObservation) []WeatherRecord {
	type key struct {
		city string
		date time.Time
	}

	byDay := make(map[key]*WeatherRecord)
	order := make([]key, 0, len(obs))

	for _, o := range obs {
		k := key{o.City, o.Date}
		rec, ok := byDay[k]
		if !ok {
			rec = &WeatherRecord{City: o.City, Date: o.Date}
			byDay[k] = rec
			order = append(order, k)
		}

		f := TenthsCelsiusToFahrenheit(o.ValueTenthsC)
		switch o.Datatype {
		case "TMAX":
			if rec.MaxTempF == nil {
				rec.MaxTempF = &f
			}
		case "TMIN":
			if rec.MinTempF == nil {
				rec.MinTempF = &f
			}
		}
	}

	records := make([]WeatherRecord, 0, len(order))
	for _, k := range order {
		records = append(records, *byDay[k])
	}
	sortWeather(records)
	return records
}

// MergeStats counts rows the merge consumed or excluded.
type MergeStats struct {
	DuplicatesDropped int
	WeatherOnlyDays   int
	EnergyOnlyDays    int
}

// Merge inner-joins weather and energy records on (city, date), deduplicates,
// derives features, and flags quality issues. Output is sorted by
// (city, date) so the transform is deterministic for a fixed input.
func Merge(weather []WeatherRecord, energy []EnergyRecord) ([]MergedRecord, MergeStats) {
	var stats MergeStats

	type key struct {
		city string
		date time.Time
	}

	energyByDay := make(map[key]EnergyRecord, len(energy))
	for _, e := range energy {
		k := key{e.City, e.Date}
		if _, dup := energyByDay[k]; dup {
			stats.DuplicatesDropped++
			continue
		}
		energyByDay[k] = e
	}

	seen := make(map[key]bool, len(weather))
	merged := make([]MergedRecord, 0, len(weather))
	joined := make(map[key]bool, len(weather))

	for _, w := range weather {
		k := key{w.City, w.Date}
		if seen[k] {
			stats.DuplicatesDropped++
			continue
		}
		seen[k] = true

		e, ok := energyByDay[k]
		if !ok {
			stats.WeatherOnlyDays++
			continue
		}
		joined[k] = true

		rec := MergedRecord{
			City:           w.City,
			Date:           w.Date,
			MaxTempF:       w.MaxTempF,
			MinTempF:       w.MinTempF,
			ConsumptionMWh: e.ConsumptionMWh,
			DayOfWeek:      w.Date.Weekday().String(),
			IsWeekend:      isWeekend(w.Date),
		}
		if w.MaxTempF != nil {
			rec.TempRange = TempRangeBucket(*w.MaxTempF)
		}
		rec.Flags = deriveFlags(rec)
		merged = append(merged, rec)
	}

	for k := range energyByDay {
		if !joined[k] {
			stats.EnergyOnlyDays++
		}
	}

	sortMerged(merged)
	deriveEnergyChange(merged)
	return merged, stats
}

// TempRangeBucket maps a max temperature to its dashboard bucket. Buckets
// are left-closed: 60.0°F falls in "60-70°F", 90.0°F in ">90°F".
func TempRangeBucket(maxTempF float64) string {
	switch {
	case maxTempF < 50:
		return "<50°F"
	case maxTempF < 60:
		return "50-60°F"
	case maxTempF < 70:
		return "60-70°F"
	case maxTempF < 80:
		return "70-80°F"
	case maxTempF < 90:
		return "80-90°F"
	default:
		return ">90°F"
	}
}

// TempRangeBuckets lists every bucket label in ascending order, for heatmap
// axes that must render empty buckets too.
func TempRangeBuckets() []string {
	return []string{"<50°F", "50-60°F", "60-70°F", "70-80°F", "80-90°F", ">90°F"}
}

// DayOrder lists weekday names Monday-first, matching the heatmap axis.
func DayOrder() []string {
	return []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
}

func deriveFlags(rec MergedRecord) []Flag {
	var flags []Flag
	if rec.MaxTempF == nil || rec.MinTempF == nil {
		flags = append(flags, FlagMissingValue)
	}
	if tempOutOfRange(rec.MaxTempF) || tempOutOfRange(rec.MinTempF) {
		flags = append(flags, FlagTempOutlier)
	}
	if rec.ConsumptionMWh < 0 {
		flags = append(flags, FlagNegativeEnergy)
	}
	return flags
}

func tempOutOfRange(f *float64) bool {
	if f == nil {
		return false
	}
	return *f < MinPlausibleTempF || *f > MaxPlausibleTempF
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// deriveEnergyChange fills the per-city day-over-day consumption delta.
// Records must already be sorted by (city, date). The first record of each
// city has no previous day and stays nil.
func deriveEnergyChange(records []MergedRecord) {
	for i := range records {
		if i == 0 || records[i].City != records[i-1].City {
			continue
		}
		delta := records[i].ConsumptionMWh - records[i-1].ConsumptionMWh
		records[i].EnergyChange = &delta
	}
}

func sortWeather(records []WeatherRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].City != records[j].City {
			return records[i].City < records[j].City
		}
		return records[i].Date.Before(records[j].Date)
	})
}

func sortMerged(records []MergedRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].City != records[j].City {
			return records[i].City < records[j].City
		}
		return records[i].Date.Before(records[j].Date)
	})
}
