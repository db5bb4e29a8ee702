package breakdown

import (
	"sort"

	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

type productAgg struct {
	revenue   decimal.Decimal
	units     int
	orders    map[string]struct{}
	customers map[string]struct{}
}

// Products ranks products by revenue, then units, then product id. Lines
// without a product id are left out.
func Products(ds *model.Dataset) []model.ProductSummary {
	if ds == nil {
		return nil
	}
	aggs := map[string]*productAgg{}
	for _, t := range ds.Transactions {
		if t.ProductID == "" {
			continue
		}
		a, ok := aggs[t.ProductID]
		if !ok {
			a = &productAgg{orders: map[string]struct{}{}, customers: map[string]struct{}{}}
			aggs[t.ProductID] = a
		}
		a.revenue = a.revenue.Add(t.LineTotal)
		a.units += t.Quantity
		a.orders[t.OrderID] = struct{}{}
		a.customers[t.CustomerID] = struct{}{}
	}

	out := make([]model.ProductSummary, 0, len(aggs))
	for id, a := range aggs {
		rev, _ := a.revenue.Float64()
		out = append(out, model.ProductSummary{
			ProductID: id,
			Revenue:   rev,
			Units:     a.units,
			Orders:    len(a.orders),
			Customers: len(a.customers),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// Top returns at most n products from a ranked list; n <= 0 returns all.
func Top(products []model.ProductSummary, n int) []model.ProductSummary {
	if n <= 0 || n > len(products) {
		n = len(products)
	}
	return append([]model.ProductSummary(nil), products[:n]...)
}
