package loader

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DefaultQuery selects the master dataset columns from a transactions table.
const DefaultQuery = `SELECT customer_id, order_id, product_id, timestamp, quantity, unit_price FROM transactions`

// SQLSource reads the master dataset from a SQL query.
type SQLSource struct {
	Driver string // mysql, postgres or sqlite
	DSN    string
	Query  string
}

// NewSQLSource builds a source for a driver name and DSN. mysql:// and
// mariadb:// URLs are converted to the MySQL driver format.
func NewSQLSource(driver, dsn, query string) (*SQLSource, error) {
	switch driver {
	case "mysql":
		converted, err := toMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = converted
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if query == "" {
		query = DefaultQuery
	}
	return &SQLSource{Driver: driver, DSN: dsn, Query: query}, nil
}

func (s *SQLSource) Name() string { return "sql:" + s.Driver }

func (s *SQLSource) Fetch(ctx context.Context) (*Table, error) {
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Driver, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	rows, err := db.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Driver, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	t := &Table{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec := make([]string, len(cols))
		for i, v := range cells {
			rec[i] = cellString(v)
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}
