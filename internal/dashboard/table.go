// Package dashboard serves the interactive view over the merged table:
// four charts with city and date-range filters, backed by small JSON APIs.
package dashboard

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/emeze-dev/weather-energy-pipeline/internal/domain"
	"github.com/emeze-dev/weather-energy-pipeline/internal/storage"
)

// Table caches the merged table in memory and reloads it when the file on
// disk changes, so a pipeline run behind the dashboard shows up without a
// restart.
type Table struct {
	store *storage.Store

	mu      sync.Mutex
	records []domain.MergedRecord
	modTime time.Time
	loaded  bool
}

// NewTable creates a Table reading from the given store.
func NewTable(store *storage.Store) *Table {
	return &Table{store: store}
}

// Records returns the current merged table, reloading from disk when the
// file's modification time has moved. Callers must not mutate the result.
func (t *Table) Records() ([]domain.MergedRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, err := os.Stat(t.store.MergedPath())
	if err != nil {
		if t.loaded {
			// Keep serving the cached table if the file vanishes mid-rewrite.
			return t.records, nil
		}
		return nil, fmt.Errorf("merged table not available: %w", err)
	}

	if !t.loaded || info.ModTime().After(t.modTime) {
		records, err := t.store.ReadMerged()
		if err != nil {
			return nil, fmt.Errorf("reload merged table: %w", err)
		}
		t.records = records
		t.modTime = info.ModTime()
		t.loaded = true
	}
	return t.records, nil
}
