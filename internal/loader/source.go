package loader

import (
	"context"
	"fmt"
)

// Table is a raw tabular extract: a header row and string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Source defines where the master dataset is read from.
type Source interface {
	Fetch(ctx context.Context) (*Table, error)
	Name() string
}

// MemorySource serves a fixed in-process table.
type MemorySource struct {
	Label string
	Table Table
}

func (m *MemorySource) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "memory"
}

func (m *MemorySource) Fetch(_ context.Context) (*Table, error) {
	if len(m.Table.Columns) == 0 {
		return nil, fmt.Errorf("memory source %q: no header", m.Name())
	}
	t := &Table{
		Columns: append([]string(nil), m.Table.Columns...),
		Rows:    make([][]string, len(m.Table.Rows)),
	}
	for i, r := range m.Table.Rows {
		t.Rows[i] = append([]string(nil), r...)
	}
	return t, nil
}

// tableFromRecords turns csv records into a Table, treating the first record as header.
func tableFromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}
