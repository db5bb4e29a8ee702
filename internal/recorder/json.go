package recorder

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ShopLens/internal/report"
)

// JSONRecorder writes every report to its own timestamped file in Dir.
type JSONRecorder struct {
	Dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewJSONRecorder(dir string) *JSONRecorder {
	return &JSONRecorder{Dir: dir, now: time.Now}
}

// TimestampedFilename returns dir/name_YYYYMMDD_HHMMSS.json.
func TimestampedFilename(dir, name string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, t.Format("20060102_150405")))
}

func (j *JSONRecorder) RecordReport(rep *report.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(j.Dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	// Two runs in the same second must not overwrite each other.
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	path := TimestampedFilename(j.Dir, "report_"+rep.ID()[:8], now())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Printf("[INFO] report %s exported to %s", rep.ID(), path)
	return nil
}

func (j *JSONRecorder) Close() error { return nil }
