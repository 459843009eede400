// Package storage persists raw API observations and the merged table as
// flat CSV files under the configured data directory.
package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	mergedName = "merged.csv"
)

// Store reads and writes pipeline files. Layout:
//
//	<dataDir>/raw/weather_<city>_<start>_<end>.csv
//	<dataDir>/raw/energy_<city>_<start>_<end>.csv
//	<dataDir>/processed/merged.csv
//
// Raw files are immutable within a run. File names carry the fetch window,
// so each run clears the raw directory before writing; otherwise a shifted
// window would leave the previous run's files behind and the read side,
// which globs every raw file, would merge both windows.
type Store struct {
	dataDir string
}

// New creates a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// MergedPath returns the merged table's location, for the dashboard's
// mtime-based reload.
func (s *Store) MergedPath() string {
	return filepath.Join(s.dataDir, "processed", mergedName)
}

func (s *Store) rawDir() string {
	return filepath.Join(s.dataDir, "raw")
}

// ClearRaw removes every raw file so the merged table only ever reflects
// what the current run fetched.
func (s *Store) ClearRaw() error {
	paths, err := filepath.Glob(filepath.Join(s.rawDir(), "*.csv"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale raw file %s: %w", path, err)
		}
	}
	return nil
}

// WriteRawWeather writes one city's raw weather page rows for a fetch
// window. Values stay in tenths of Celsius, exactly as the API returned
// them.
func (s *Store) WriteRawWeather(city string, start, end time.Time, obs []domain.WeatherObservation) error {
	rows := [][]string{{"city", "date", "datatype", "value_tenths_c"}}
	for _, o := range obs {
		rows = append(rows, []string{
			o.City,
			o.Date.Format(dateLayout),
			o.Datatype,
			formatFloat(o.ValueTenthsC),
		})
	}
	return s.writeCSV(filepath.Join(s.rawDir(), rawFileName("weather", city, start, end)), rows)
}

// WriteRawEnergy writes one city's raw energy rows for a fetch window.
func (s *Store) WriteRawEnergy(city string, start, end time.Time, records []domain.EnergyRecord) error {
	rows := [][]string{{"city", "region", "date", "consumption_mwh"}}
	for _, r := range records {
		rows = append(rows, []string{
			r.City,
			r.Region,
			r.Date.Format(dateLayout),
			formatFloat(r.ConsumptionMWh),
		})
	}
	return s.writeCSV(filepath.Join(s.rawDir(), rawFileName("energy", city, start, end)), rows)
}

// ReadRawWeather loads every raw weather file in the data directory.
func (s *Store) ReadRawWeather() ([]domain.WeatherObservation, error) {
	paths, err := s.rawFiles("weather")
	if err != nil {
		return nil, err
	}

	var obs []domain.WeatherObservation
	for _, path := range paths {
		rows, header, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			date, err := time.Parse(dateLayout, get(row, header, "date"))
			if err != nil {
				return nil, fmt.Errorf("%s: bad date %q", path, get(row, header, "date"))
			}
			value, err := strconv.ParseFloat(get(row, header, "value_tenths_c"), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad value %q", path, get(row, header, "value_tenths_c"))
			}
			obs = append(obs, domain.WeatherObservation{
				City:         get(row, header, "city"),
				Date:         date,
				Datatype:     get(row, header, "datatype"),
				ValueTenthsC: value,
			})
		}
	}
	return obs, nil
}

// ReadRawEnergy loads every raw energy file in the data directory.
func (s *Store) ReadRawEnergy() ([]domain.EnergyRecord, error) {
	paths, err := s.rawFiles("energy")
	if err != nil {
		return nil, err
	}

	var records []domain.EnergyRecord
	for _, path := range paths {
		rows, header, err := readCSV(path)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			date, err := time.Parse(dateLayout, get(row, header, "date"))
			if err != nil {
				return nil, fmt.Errorf("%s: bad date %q", path, get(row, header, "date"))
			}
			value, err := strconv.ParseFloat(get(row, header, "consumption_mwh"), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad value %q", path, get(row, header, "consumption_mwh"))
			}
			records = append(records, domain.EnergyRecord{
				City:           get(row, header, "city"),
				Region:         get(row, header, "region"),
				Date:           date,
				ConsumptionMWh: value,
			})
		}
	}
	return records, nil
}

// WriteMerged overwrites the merged table. Callers pass records already
// sorted by (city, date), so a fixed input always produces byte-identical
// output.
func (s *Store) WriteMerged(records []domain.MergedRecord) error {
	rows := [][]string{{
		"city", "date", "max_temp_f", "min_temp_f", "consumption_mwh",
		"energy_change", "day_of_week", "is_weekend", "temp_range", "flags",
	}}
	for _, r := range records {
		rows = append(rows, []string{
			r.City,
			r.Date.Format(dateLayout),
			formatOptFloat(r.MaxTempF),
			formatOptFloat(r.MinTempF),
			formatFloat(r.ConsumptionMWh),
			formatOptFloat(r.EnergyChange),
			r.DayOfWeek,
			strconv.FormatBool(r.IsWeekend),
			r.TempRange,
			formatFlags(r.Flags),
		})
	}
	return s.writeCSV(s.MergedPath(), rows)
}

// ReadMerged loads the merged table.
func (s *Store) ReadMerged() ([]domain.MergedRecord, error) {
	rows, header, err := readCSV(s.MergedPath())
	if err != nil {
		return nil, err
	}

	records := make([]domain.MergedRecord, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse(dateLayout, get(row, header, "date"))
		if err != nil {
			return nil, fmt.Errorf("merged table: bad date %q", get(row, header, "date"))
		}
		consumption, err := strconv.ParseFloat(get(row, header, "consumption_mwh"), 64)
		if err != nil {
			return nil, fmt.Errorf("merged table: bad consumption %q", get(row, header, "consumption_mwh"))
		}
		maxTemp, err := parseOptFloat(get(row, header, "max_temp_f"))
		if err != nil {
			return nil, fmt.Errorf("merged table: bad max_temp_f: %w", err)
		}
		minTemp, err := parseOptFloat(get(row, header, "min_temp_f"))
		if err != nil {
			return nil, fmt.Errorf("merged table: bad min_temp_f: %w", err)
		}
		change, err := parseOptFloat(get(row, header, "energy_change"))
		if err != nil {
			return nil, fmt.Errorf("merged table: bad energy_change: %w", err)
		}

		records = append(records, domain.MergedRecord{
			City:           get(row, header, "city"),
			Date:           date,
			MaxTempF:       maxTemp,
			MinTempF:       minTemp,
			ConsumptionMWh: consumption,
			EnergyChange:   change,
			DayOfWeek:      get(row, header, "day_of_week"),
			IsWeekend:      get(row, header, "is_weekend") == "true",
			TempRange:      get(row, header, "temp_range"),
			Flags:          parseFlags(get(row, header, "flags")),
		})
	}
	return records, nil
}

func (s *Store) rawFiles(source string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.rawDir(), source+"_*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("read %s: empty file", path)
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[h] = i
	}
	return rows[1:], header, nil
}

func get(row []string, header map[string]int, col string) string {
	i, ok := header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func rawFileName(source, city string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.csv",
		source, slug(city), start.Format(dateLayout), end.Format(dateLayout))
}

func slug(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "-")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatFlags(flags []domain.Flag) string {
	if len(flags) == 0 {
		return ""
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, "|")
}

func parseFlags(s string) []domain.Flag {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	flags := make([]domain.Flag, len(parts))
	for i, p := range parts {
		flags[i] = domain.Flag(p)
	}
	return flags
}
