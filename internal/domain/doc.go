// Package domain models daily weather and energy-consumption observations
// for US cities and the merged table the dashboard serves.
//
// # Data Sources
//
// Weather comes from the NOAA Climate Data Online (CDO) v2 API, dataset
// GHCND, datatypes TMAX and TMIN, one station per city. CDO reports
// temperatures in tenths of degrees Celsius; 283 means 28.3°C. Conversion to
// Fahrenheit is exact:
//
//	F = tenths/10 × 9/5 + 32
//
// Energy comes from the EIA v2 daily region data API, one balancing-authority
// respondent code per city (e.g. New York → NYIS), demand in megawatt-hours.
//
// # Merge and Derived Fields
//
// TMAX/TMIN rows are pivoted into one WeatherRecord per (city, date), then
// inner-joined with energy on (city, date). Derived per merged row:
//
//	DayOfWeek   Monday..Sunday
//	IsWeekend   Saturday or Sunday
//	TempRange   bucket of MaxTempF: <50°F, 50-60°F, 60-70°F, 70-80°F,
//	            80-90°F, >90°F (left-closed, so 60.0 falls in 60-70°F)
//	EnergyChange  consumption minus the city's previous day, unset for the
//	              first day of each city
//
// # Quality Flags
//
// Rows are flagged, not silently discarded:
//
//	temp_outlier     a temperature outside the plausible range [-50°F, 140°F]
//	negative_energy  consumption below zero
//	missing_value    TMAX or TMIN absent for the day
//
// Exact duplicate rows are dropped during the merge and counted. Flagged
// rows stay in the merged table; the correlation analyzer skips them.
// Freshness is a report-level marker: the table is stale when its latest
// date is older than the configured threshold.
package domain
