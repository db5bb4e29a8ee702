package loader

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"ShopLens/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Canonical column names of the master dataset.
const (
	ColCustomerID = "customer_id"
	ColOrderID    = "order_id"
	ColTimestamp  = "timestamp"
	ColQuantity   = "quantity"
	ColUnitPrice  = "unit_price"
	ColProductID  = "product_id"
)

// RequiredColumns must be present in every source.
var RequiredColumns = []string{ColCustomerID, ColOrderID, ColTimestamp, ColQuantity, ColUnitPrice}

// columnAliases maps header spellings produced by the upstream cleaning step
// to canonical names. Canonical spellings always win over aliases.
var columnAliases = map[string]string{
	"customerid":       ColCustomerID,
	"transaction_id":   ColOrderID,
	"orderid":          ColOrderID,
	"transaction_date": ColTimestamp,
	"order_date":       ColTimestamp,
	"date":             ColTimestamp,
	"price":            ColUnitPrice,
	"unitprice":        ColUnitPrice,
	"product_name":     ColProductID,
	"productid":        ColProductID,
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Drop reasons reported in Dataset.DropReasons.
const (
	DropShortRow         = "short_row"
	DropMissingCustomer  = "missing_customer_id"
	DropMissingOrder     = "missing_order_id"
	DropNullTimestamp    = "null_timestamp"
	DropInvalidTimestamp = "invalid_timestamp"
	DropInvalidQuantity  = "invalid_quantity"
	DropNonPositiveQty   = "non_positive_quantity"
	DropInvalidPrice     = "invalid_unit_price"
	DropNegativePrice    = "negative_unit_price"
)

var droppedRows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "shoplens_loader_dropped_rows_total",
		Help: "Rows dropped by the master dataset loader",
	},
	[]string{"reason"},
)

// Loader validates a Source into a Dataset snapshot.
type Loader struct {
	Source Source
}

// NewLoader creates a new Loader.
func NewLoader(src Source) *Loader {
	return &Loader{Source: src}
}

// Load fetches the table, validates its schema and drops rows that fail the
// sanity rules. It fails with model.ErrSchema or model.ErrEmptyDataset.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, error) {
	table, err := l.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", l.Source.Name(), err)
	}
	ds, err := Validate(table)
	if err != nil {
		return nil, err
	}
	ds.Source = l.Source.Name()
	log.Printf("[INFO] loaded %d transactions from %s (snapshot %s)", len(ds.Transactions), ds.Source, ds.SnapshotID)
	return ds, nil
}

// Validate converts a raw table into a Dataset with a fresh snapshot id.
func Validate(table *Table) (*model.Dataset, error) {
	idx, err := resolveColumns(table.Columns)
	if err != nil {
		return nil, err
	}

	var (
		txs      = make([]model.Transaction, 0, len(table.Rows))
		reasons  = map[string]int{}
		nonEmpty = map[string]int{}
		parsed   = map[string]int{}
	)
	width := 0
	for _, i := range idx {
		if i+1 > width {
			width = i + 1
		}
	}

	for _, row := range table.Rows {
		if len(row) < width {
			reasons[DropShortRow]++
			continue
		}
		cell := func(col string) string {
			i, ok := idx[col]
			if !ok {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		tsRaw, qtyRaw, priceRaw := cell(ColTimestamp), cell(ColQuantity), cell(ColUnitPrice)
		ts, tsErr := parseTimestamp(tsRaw)
		qty, qtyErr := parseQuantity(qtyRaw)
		price, priceErr := decimal.NewFromString(priceRaw)
		track := func(col, raw string, err error) {
			if raw != "" {
				nonEmpty[col]++
				if err == nil {
					parsed[col]++
				}
			}
		}
		track(ColTimestamp, tsRaw, tsErr)
		track(ColQuantity, qtyRaw, qtyErr)
		track(ColUnitPrice, priceRaw, priceErr)

		customerID, orderID := cell(ColCustomerID), cell(ColOrderID)
		switch {
		case customerID == "":
			reasons[DropMissingCustomer]++
		case orderID == "":
			reasons[DropMissingOrder]++
		case tsRaw == "":
			reasons[DropNullTimestamp]++
		case tsErr != nil:
			reasons[DropInvalidTimestamp]++
		case qtyErr != nil:
			reasons[DropInvalidQuantity]++
		case qty <= 0:
			reasons[DropNonPositiveQty]++
		case priceErr != nil:
			reasons[DropInvalidPrice]++
		case price.IsNegative():
			reasons[DropNegativePrice]++
		default:
			txs = append(txs, model.Transaction{
				CustomerID: customerID,
				OrderID:    orderID,
				ProductID:  cell(ColProductID),
				Timestamp:  ts,
				Quantity:   qty,
				UnitPrice:  price,
				LineTotal:  price.Mul(decimal.NewFromInt(int64(qty))),
			})
		}
	}

	var incompatible []string
	for _, col := range []string{ColTimestamp, ColQuantity, ColUnitPrice} {
		if nonEmpty[col] > 0 && parsed[col] == 0 {
			incompatible = append(incompatible, col)
		}
	}
	if len(incompatible) > 0 {
		return nil, &model.SchemaError{Incompatible: incompatible}
	}

	dropped := len(table.Rows) - len(txs)
	if dropped > 0 {
		log.Printf("[WARN] loader dropped %d of %d rows: %s", dropped, len(table.Rows), formatReasons(reasons))
		for reason, n := range reasons {
			droppedRows.WithLabelValues(reason).Add(float64(n))
		}
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, %d dropped", model.ErrEmptyDataset, len(table.Rows), dropped)
	}

	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.CustomerID < b.CustomerID
	})

	return &model.Dataset{
		SnapshotID:   uuid.New().String(),
		LoadedAt:     time.Now().UTC(),
		Transactions: txs,
		RowsRead:     len(table.Rows),
		RowsDropped:  dropped,
		DropReasons:  reasons,
		MinTime:      txs[0].Timestamp,
		MaxTime:      txs[len(txs)-1].Timestamp,
	}, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	idx := map[string]int{}
	// Canonical names first so an alias never shadows them.
	for i, h := range header {
		name := normalizeHeader(h)
		switch name {
		case ColCustomerID, ColOrderID, ColTimestamp, ColQuantity, ColUnitPrice, ColProductID:
			if _, ok := idx[name]; !ok {
				idx[name] = i
			}
		}
	}
	for i, h := range header {
		if canonical, ok := columnAliases[normalizeHeader(h)]; ok {
			if _, set := idx[canonical]; !set {
				idx[canonical] = i
			}
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &model.SchemaError{Missing: missing}
	}
	return idx, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func parseQuantity(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %q is not an integer", raw)
	}
	return int(f), nil
}

func formatReasons(reasons map[string]int) string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, reasons[k])
	}
	return strings.Join(parts, " ")
}
