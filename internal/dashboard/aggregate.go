package dashboard

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/emeze-dev/weather-energy-pipeline/internal/config"
	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
)

const dateLayout = "2006-01-02"

// Filter narrows the merged table to a set of cities and an inclusive date
// range. Zero values mean "no constraint".
type Filter struct {
	Cities []string
	Start  time.Time
	End    time.Time
}

// parseFilter reads city (repeatable), start, and end query parameters.
// Dates use YYYY-MM-DD.
func parseFilter(values url.Values) (Filter, error) {
	f := Filter{Cities: values["city"]}

	if raw := values.Get("start"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid start date %q", raw)
		}
		f.Start = t
	}
	if raw := values.Get("end"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid end date %q", raw)
		}
		f.End = t
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return Filter{}, fmt.Errorf("end date before start date")
	}
	return f, nil
}

func (f Filter) keep(rec domain.MergedRecord) bool {
	if len(f.Cities) > 0 {
		found := false
		for _, city := range f.Cities {
			if rec.City == city {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Start.IsZero() && rec.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && rec.Date.After(f.End) {
		return false
	}
	return true
}

func applyFilter(records []domain.MergedRecord, f Filter) []domain.MergedRecord {
	out := make([]domain.MergedRecord, 0, len(records))
	for _, rec := range records {
		if f.keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// CitySummary feeds the city map chart: one bubble per configured city,
// sized by average consumption.
type CitySummary struct {
	Name              string   `json:"name"`
	Lat               float64  `json:"lat"`
	Lon               float64  `json:"lon"`
	Days              int      `json:"days"`
	AvgMaxTempF       *float64 `json:"avg_max_temp_f"`
	AvgConsumptionMWh *float64 `json:"avg_consumption_mwh"`
}

func summarizeCities(records []domain.MergedRecord, cities []config.City) []CitySummary {
	type acc struct {
		days      int
		tempSum   float64
		tempCount int
		energySum float64
	}
	byCity := map[string]*acc{}
	for _, rec := range records {
		a, ok := byCity[rec.City]
		if !ok {
			a = &acc{}
			byCity[rec.City] = a
		}
		a.days++
		a.energySum += rec.ConsumptionMWh
		if rec.MaxTempF != nil {
			a.tempSum += *rec.MaxTempF
			a.tempCount++
		}
	}

	out := make([]CitySummary, 0, len(cities))
	for _, city := range cities {
		s := CitySummary{Name: city.Name, Lat: city.Lat, Lon: city.Lon}
		if a, ok := byCity[city.Name]; ok {
			s.Days = a.days
			if a.tempCount > 0 {
				avg := a.tempSum / float64(a.tempCount)
				s.AvgMaxTempF = &avg
			}
			if a.days > 0 {
				avg := a.energySum / float64(a.days)
				s.AvgConsumptionMWh = &avg
			}
		}
		out = append(out, s)
	}
	return out
}

// TimeseriesPoint is one date on the dual-axis chart. Temperature averages
// skip days where the station did not report, consumption averages cover
// every matched row.
type TimeseriesPoint struct {
	Date              string   `json:"date"`
	AvgMaxTempF       *float64 `json:"avg_max_temp_f"`
	AvgConsumptionMWh float64  `json:"avg_consumption_mwh"`
}

func buildTimeseries(records []domain.MergedRecord) []TimeseriesPoint {
	type acc struct {
		tempSum   float64
		tempCount int
		energySum float64
		rows      int
	}
	byDate := map[string]*acc{}
	for _, rec := range records {
		key := rec.Date.Format(dateLayout)
		a, ok := byDate[key]
		if !ok {
			a = &acc{}
			byDate[key] = a
		}
		a.rows++
		a.energySum += rec.ConsumptionMWh
		if rec.MaxTempF != nil {
			a.tempSum += *rec.MaxTempF
			a.tempCount++
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]TimeseriesPoint, 0, len(dates))
	for _, d := range dates {
		a := byDate[d]
		p := TimeseriesPoint{Date: d, AvgConsumptionMWh: a.energySum / float64(a.rows)}
		if a.tempCount > 0 {
			avg := a.tempSum / float64(a.tempCount)
			p.AvgMaxTempF = &avg
		}
		out = append(out, p)
	}
	return out
}

// ScatterPoint is one usable row on the temperature-consumption chart.
type ScatterPoint struct {
	City           string  `json:"city"`
	Date           string  `json:"date"`
	MaxTempF       float64 `json:"max_temp_f"`
	ConsumptionMWh float64 `json:"consumption_mwh"`
}

// Trend is the least-squares line over the scatter points. Nil when fewer
// than two points exist or the temperatures have no variance.
type Trend struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

func buildScatter(records []domain.MergedRecord) ([]ScatterPoint, *Trend) {
	points := make([]ScatterPoint, 0, len(records))
	for _, rec := range records {
		if !rec.Usable() {
			continue
		}
		points = append(points, ScatterPoint{
			City:           rec.City,
			Date:           rec.Date.Format(dateLayout),
			MaxTempF:       *rec.MaxTempF,
			ConsumptionMWh: rec.ConsumptionMWh,
		})
	}
	return points, fitTrend(points)
}

func fitTrend(points []ScatterPoint) *Trend {
	n := float64(len(points))
	if n < 2 {
		return nil
	}
	var sumX, sumY, sumXX, sumXY float64
	for _, p := range points {
		sumX += p.MaxTempF
		sumY += p.ConsumptionMWh
		sumXX += p.MaxTempF * p.MaxTempF
		sumXY += p.MaxTempF * p.ConsumptionMWh
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return nil
	}
	slope := (n*sumXY - sumX*sumY) / den
	return &Trend{Slope: slope, Intercept: (sumY - slope*sumX) / n}
}

// HeatmapCell is one day-of-week by temperature-range cell. Every cell in
// the grid is present so the chart renders empty buckets too.
type HeatmapCell struct {
	DayOfWeek         string   `json:"day_of_week"`
	TempRange         string   `json:"temp_range"`
	Days              int      `json:"days"`
	AvgConsumptionMWh *float64 `json:"avg_consumption_mwh"`
}

func buildHeatmap(records []domain.MergedRecord) []HeatmapCell {
	type key struct {
		day    string
		bucket string
	}
	type acc struct {
		days int
		sum  float64
	}
	cells := map[key]*acc{}
	for _, rec := range records {
		if rec.TempRange == "" {
			continue
		}
		k := key{rec.DayOfWeek, rec.TempRange}
		a, ok := cells[k]
		if !ok {
			a = &acc{}
			cells[k] = a
		}
		a.days++
		a.sum += rec.ConsumptionMWh
	}

	out := make([]HeatmapCell, 0, len(domain.DayOrder())*len(domain.TempRangeBuckets()))
	for _, day := range domain.DayOrder() {
		for _, bucket := range domain.TempRangeBuckets() {
			cell := HeatmapCell{DayOfWeek: day, TempRange: bucket}
			if a, ok := cells[key{day, bucket}]; ok {
				cell.Days = a.days
				avg := a.sum / float64(a.days)
				cell.AvgConsumptionMWh = &avg
			}
			out = append(out, cell)
		}
	}
	return out
}
