package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVSource reads the master dataset from a local CSV file.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource { return &CSVSource{Path: path} }

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Fetch(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseCSV(f)
}

func parseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	t, err := tableFromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return t, nil
}
