package domain

import "time"

// Flag marks a data-quality issue on a merged row.
type Flag string

const (
	FlagTempOutlier    Flag = "temp_outlier"
	FlagNegativeEnergy Flag = "negative_energy"
	FlagMissingValue   Flag = "missing_value"
)

// WeatherObservation is one raw CDO data point: a single datatype reading
// for a station on a day, with the value still in tenths of Celsius.
type WeatherObservation struct {
	City         string
	Date         time.Time
	Datatype     string // "TMAX" or "TMIN"
	ValueTenthsC float64
}

// WeatherRecord is one city-day of temperatures after pivoting and unit
// conversion. Nil temperatures mean the station did not report that
// datatype for the day.
type WeatherRecord struct {
	City     string
	Date     time.Time
	MaxTempF *float64
	MinTempF *float64
}

// EnergyRecord is one region-day of consumption. City is the configured
// city the region code maps to.
type EnergyRecord struct {
	Region         string
	City           string
	Date           time.Time
	ConsumptionMWh float64
}

// MergedRecord joins a WeatherRecord and an EnergyRecord on (city, date)
// with derived features and quality flags.
type MergedRecord struct {
	City           string
	Date           time.Time
	MaxTempF       *float64
	MinTempF       *float64
	ConsumptionMWh float64
	EnergyChange   *float64
	DayOfWeek      string
	IsWeekend      bool
	TempRange      string
	Flags          []Flag
}

// HasFlag reports whether the row carries the given quality flag.
func (r MergedRecord) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Usable reports whether the row can participate in correlation analysis:
// no quality flags and a max temperature present.
func (r MergedRecord) Usable() bool {
	return len(r.Flags) == 0 && r.MaxTempF != nil
}
