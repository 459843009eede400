package domain

import "time"

// QualityReport summarizes data-quality findings over a merged table.
// Findings are advisory: the run that produced them still completes.
type QualityReport struct {
	RowCount          int            `json:"row_count"`
	DuplicatesDropped int            `json:"duplicates_dropped"`
	MissingValues     map[string]int `json:"missing_values"`
	HighTempOutliers  int            `json:"high_temp_outliers"`
	LowTempOutliers   int            `json:"low_temp_outliers"`
	NegativeEnergy    int            `json:"negative_energy"`
	LatestDate        time.Time      `json:"latest_date"`
	Stale             bool           `json:"stale"`
}

// HasIssues reports whether any check found something worth logging at
// warning level.
func (r QualityReport) HasIssues() bool {
	return r.DuplicatesDropped > 0 ||
		len(r.MissingValues) > 0 ||
		r.HighTempOutliers > 0 ||
		r.LowTempOutliers > 0 ||
		r.NegativeEnergy > 0 ||
		r.Stale
}

// CheckQuality inspects a merged table and reports missing values, outlier
// counts, negative consumption, and freshness. The table is stale when its
// latest date is further than staleAfter behind the package clock.
func CheckQuality(records []MergedRecord, stats MergeStats, staleAfter time.Duration) QualityReport {
	report := QualityReport{
		RowCount:          len(records),
		DuplicatesDropped: stats.DuplicatesDropped,
		MissingValues:     map[string]int{},
	}

	for _, rec := range records {
		if rec.MaxTempF == nil {
			report.MissingValues["max_temp_f"]++
		}
		if rec.MinTempF == nil {
			report.MissingValues["min_temp_f"]++
		}
		if aboveMax(rec.MaxTempF) || aboveMax(rec.MinTempF) {
			report.HighTempOutliers++
		}
		if belowMin(rec.MaxTempF) || belowMin(rec.MinTempF) {
			report.LowTempOutliers++
		}
		if rec.ConsumptionMWh < 0 {
			report.NegativeEnergy++
		}
		if rec.Date.After(report.LatestDate) {
			report.LatestDate = rec.Date
		}
	}

	if len(records) > 0 {
		report.Stale = clock.Now().Sub(report.LatestDate) > staleAfter
	}

	return report
}

// Both temperature fields count against both bounds, matching the rows that
// get a temp_outlier flag.
func aboveMax(f *float64) bool {
	return f != nil && *f > MaxPlausibleTempF
}

func belowMin(f *float64) bool {
	return f != nil && *f < MinPlausibleTempF
}
