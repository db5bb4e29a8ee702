package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"ShopLens/internal/report"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists reports to a SQLite database, one row per run plus
// per-customer, per-segment and per-forecast-point rows keyed by run id.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while a run is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			generated_at    INTEGER NOT NULL,
			snapshot_id     TEXT NOT NULL,
			reference_date  TEXT NOT NULL,
			source          TEXT,
			transactions    INTEGER,
			rows_read       INTEGER,
			rows_dropped    INTEGER,
			revenue         REAL,
			customers       INTEGER,
			bins            INTEGER,
			k               INTEGER,
			inertia         REAL,
			forecast_method TEXT,
			granularity     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_generated ON runs(generated_at)`,

		`CREATE TABLE IF NOT EXISTS customers (
			run_id          TEXT NOT NULL,
			customer_id     TEXT NOT NULL,
			recency_days    INTEGER,
			frequency       INTEGER,
			monetary        REAL,
			avg_order_value REAL,
			r               INTEGER,
			f               INTEGER,
			m               INTEGER,
			rfm_code        TEXT,
			tier            TEXT,
			churn_risk      TEXT,
			segment         TEXT,
			PRIMARY KEY (run_id, customer_id)
		)`,

		`CREATE TABLE IF NOT EXISTS segments (
			run_id        TEXT NOT NULL,
			rank          INTEGER NOT NULL,
			name          TEXT,
			size          INTEGER,
			revenue       REAL,
			avg_recency   REAL,
			avg_frequency REAL,
			avg_monetary  REAL,
			PRIMARY KEY (run_id, rank)
		)`,

		`CREATE TABLE IF NOT EXISTS forecast_points (
			run_id TEXT NOT NULL,
			period TEXT NOT NULL,
			value  REAL,
			lower  REAL,
			upper  REAL,
			PRIMARY KEY (run_id, period)
		)`,

		`CREATE TABLE IF NOT EXISTS cohorts (
			run_id       TEXT NOT NULL,
			cohort       TEXT NOT NULL,
			month_offset INTEGER NOT NULL,
			size         INTEGER,
			active       INTEGER,
			retention    REAL,
			PRIMARY KEY (run_id, cohort, month_offset)
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			run_id     TEXT NOT NULL,
			rank       INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			revenue    REAL,
			units      INTEGER,
			orders     INTEGER,
			customers  INTEGER,
			PRIMARY KEY (run_id, rank)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(s)[:40], err)
		}
	}
	return nil
}

// RecordReport writes the whole report in one transaction.
func (r *SQLiteRecorder) RecordReport(rep *report.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ds := rep.Dataset()
	seg := rep.Segmentation()
	fc := rep.Forecast()
	if _, err := tx.Exec(`INSERT INTO runs
		(id, generated_at, snapshot_id, reference_date, source, transactions, rows_read, rows_dropped,
		 revenue, customers, bins, k, inertia, forecast_method, granularity)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID(), rep.GeneratedAt().Unix(), rep.SnapshotID(), rep.ReferenceDate().Format("2006-01-02"),
		ds.Source, ds.Transactions, ds.RowsRead, ds.RowsDropped,
		ds.Revenue, rep.CustomerCount(), rep.Bins(), seg.K, seg.Inertia, fc.Method, string(fc.Granularity),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, c := range rep.Customers("") {
		p, s := c.Profile, c.Score
		if _, err := tx.Exec(`INSERT INTO customers
			(run_id, customer_id, recency_days, frequency, monetary, avg_order_value, r, f, m, rfm_code, tier, churn_risk, segment)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			rep.ID(), p.CustomerID, p.RecencyDays, p.Frequency, p.Monetary, p.AvgOrderValue,
			s.R, s.F, s.M, s.Code, s.Tier, string(p.ChurnRisk), c.Segment,
		); err != nil {
			return fmt.Errorf("insert customer %s: %w", p.CustomerID, err)
		}
	}

	for _, s := range rep.SegmentSummaries() {
		if _, err := tx.Exec(`INSERT INTO segments
			(run_id, rank, name, size, revenue, avg_recency, avg_frequency, avg_monetary)
			VALUES (?,?,?,?,?,?,?,?)`,
			rep.ID(), s.Rank, s.Name, s.Size, s.Revenue, s.AvgRecency, s.AvgFrequency, s.AvgMonetary,
		); err != nil {
			return fmt.Errorf("insert segment %s: %w", s.Name, err)
		}
	}

	for _, p := range fc.Points {
		if _, err := tx.Exec(`INSERT INTO forecast_points (run_id, period, value, lower, upper) VALUES (?,?,?,?,?)`,
			rep.ID(), p.Period.Format("2006-01-02"), p.Value, p.Lower, p.Upper,
		); err != nil {
			return fmt.Errorf("insert forecast point: %w", err)
		}
	}

	for _, c := range rep.Cohorts() {
		cohort := c.Cohort.Format("2006-01")
		for i := range c.Active {
			if _, err := tx.Exec(`INSERT INTO cohorts (run_id, cohort, month_offset, size, active, retention) VALUES (?,?,?,?,?,?)`,
				rep.ID(), cohort, i, c.Size, c.Active[i], c.Retention[i],
			); err != nil {
				return fmt.Errorf("insert cohort %s: %w", cohort, err)
			}
		}
	}

	for i, p := range rep.Products(0) {
		if _, err := tx.Exec(`INSERT INTO products (run_id, rank, product_id, revenue, units, orders, customers) VALUES (?,?,?,?,?,?,?)`,
			rep.ID(), i+1, p.ProductID, p.Revenue, p.Units, p.Orders, p.Customers,
		); err != nil {
			return fmt.Errorf("insert product %s: %w", p.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Printf("[INFO] report %s recorded (%d customers, %d segments)", rep.ID(), rep.CustomerCount(), len(seg.Segments))
	return nil
}

// RunCount returns the number of recorded runs.
func (r *SQLiteRecorder) RunCount() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
