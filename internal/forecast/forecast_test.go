package forecast

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"ShopLens/internal/model"

	"github.com/shopspring/decimal"
)

var day0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) // a Monday

func daily(values ...float64) *model.Dataset {
	ds := &model.Dataset{SnapshotID: "snap-1"}
	for i, v := range values {
		if v == 0 {
			continue
		}
		ts := day0.AddDate(0, 0, i)
		ds.Transactions = append(ds.Transactions, model.Transaction{
			CustomerID: fmt.Sprintf("C%d", i%3),
			OrderID:    fmt.Sprintf("O%d", i),
			Timestamp:  ts,
			Quantity:   1,
			UnitPrice:  decimal.NewFromFloat(v),
			LineTotal:  decimal.NewFromFloat(v),
		})
	}
	ds.MinTime = ds.Transactions[0].Timestamp
	ds.MaxTime = ds.Transactions[len(ds.Transactions)-1].Timestamp
	return ds
}

func checkBounds(t *testing.T, points []model.ForecastPoint) {
	t.Helper()
	for i, p := range points {
		if p.Lower > p.Value || p.Value > p.Upper {
			t.Errorf("point %d violates lower <= value <= upper: %+v", i, p)
		}
	}
}

func TestForecast_SingleBucketIsInsufficient(t *testing.T) {
	_, err := Forecast(daily(100), Options{Granularity: model.Daily})
	if !errors.Is(err, model.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestForecast_FlatSeries(t *testing.T) {
	flat := make([]float64, 10)
	for i := range flat {
		flat[i] = 100
	}
	for _, method := range []string{MethodHolt, MethodMovingAverage} {
		res, err := Forecast(daily(flat...), Options{Granularity: model.Daily, Horizon: 5, Method: method})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		if len(res.Points) != 5 {
			t.Fatalf("%s: expected 5 points, got %d", method, len(res.Points))
		}
		for _, p := range res.Points {
			if math.Abs(p.Value-100) > 1e-6 {
				t.Errorf("%s: expected value ~100, got %.4f", method, p.Value)
			}
			if p.Upper-p.Lower > 1 {
				t.Errorf("%s: expected narrow bounds, got [%.2f, %.2f]", method, p.Lower, p.Upper)
			}
		}
		checkBounds(t, res.Points)
	}
}

func TestForecast_LinearTrend(t *testing.T) {
	res, err := Forecast(daily(10, 20, 30, 40, 50, 60), Options{Granularity: model.Daily, Horizon: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{70, 80, 90}
	for i, w := range want {
		if math.Abs(res.Points[i].Value-w) > 1e-9 {
			t.Errorf("step %d: expected %.1f, got %.4f", i+1, w, res.Points[i].Value)
		}
	}
	if !res.Points[0].Period.Equal(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first forecast period %v", res.Points[0].Period)
	}
}

func TestForecast_ShortHistoryHasWidth(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"two buckets", []float64{100, 500}},
		{"three buckets", []float64{100, 500, 120}},
		{"four buckets", []float64{100, 500, 120, 480}},
	}
	for _, tt := range tests {
		res, err := Forecast(daily(tt.values...), Options{Granularity: model.Daily, Horizon: 3})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if res.ResidualStdDev <= 0 {
			t.Errorf("%s: expected positive residual deviation, got %f", tt.name, res.ResidualStdDev)
		}
		for i, p := range res.Points {
			if p.Upper <= p.Lower {
				t.Errorf("%s: step %d has zero-width interval %+v", tt.name, i+1, p)
			}
		}
		checkBounds(t, res.Points)
	}
}

func TestHolt_SkipsInitialResidual(t *testing.T) {
	fit := holt([]float64{100, 500, 120, 480}, 0.5, 0.3)
	if len(fit.residuals) != 2 {
		t.Fatalf("expected 2 residuals, got %v", fit.residuals)
	}
	for _, r := range fit.residuals {
		if r == 0 {
			t.Errorf("unexpected structural zero residual in %v", fit.residuals)
		}
	}
}

func TestForecast_GapsAreZeroFilled(t *testing.T) {
	res, err := Forecast(daily(50, 0, 0, 80), Options{Granularity: model.Daily, Method: MethodMovingAverage})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.History) != 4 {
		t.Fatalf("expected 4 history buckets, got %d", len(res.History))
	}
	if res.History[1].Revenue != 0 || res.History[2].Revenue != 0 {
		t.Errorf("gaps should be zero: %+v", res.History)
	}
	if res.History[3].Orders != 1 || res.History[3].Units != 1 {
		t.Errorf("unexpected bucket metrics: %+v", res.History[3])
	}
	checkBounds(t, res.Points)
}

func TestForecast_NoisyBoundsAndFloor(t *testing.T) {
	values := []float64{120, 40, 300, 10, 250, 5, 180, 2, 90, 1}
	for _, method := range []string{MethodHolt, MethodMovingAverage, MethodHoltWinters} {
		res, err := Forecast(daily(values...), Options{
			Granularity: model.Daily, Horizon: 8, Method: method, SeasonLength: 2,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", method, err)
		}
		checkBounds(t, res.Points)
		for _, p := range res.Points {
			if p.Value < 0 || p.Lower < 0 {
				t.Errorf("%s: negative forecast %+v", method, p)
			}
		}
		if res.ResidualStdDev <= 0 {
			t.Errorf("%s: expected positive residual deviation", method)
		}
	}
}

func TestForecast_HoltWintersFallsBackWithoutTwoSeasons(t *testing.T) {
	res, err := Forecast(daily(1, 2, 3, 4, 5), Options{
		Granularity: model.Daily, Method: MethodHoltWinters, SeasonLength: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodHolt {
		t.Errorf("expected fallback to holt, got %s", res.Method)
	}
}

func TestForecast_HoltWintersSeasonal(t *testing.T) {
	pattern := []float64{100, 200, 100, 50}
	var values []float64
	for i := 0; i < 4; i++ {
		values = append(values, pattern...)
	}
	res, err := Forecast(daily(values...), Options{
		Granularity: model.Daily, Method: MethodHoltWinters, SeasonLength: 4, Horizon: 4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodHoltWinters {
		t.Fatalf("expected holt_winters, got %s", res.Method)
	}
	for i, p := range res.Points {
		if math.Abs(p.Value-pattern[i]) > 1e-6 {
			t.Errorf("step %d: expected %.0f, got %.4f", i+1, pattern[i], p.Value)
		}
	}
}

func TestForecast_InvalidOptions(t *testing.T) {
	ds := daily(10, 20, 30)
	for _, opts := range []Options{
		{Horizon: -1},
		{Method: "arima"},
		{Granularity: "hourly"},
		{Confidence: 0.5},
		{Alpha: 1.5},
		{Window: -2},
	} {
		if _, err := Forecast(ds, opts); !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("%+v: expected ErrInvalidParameter, got %v", opts, err)
		}
	}
}

func TestBucketStart(t *testing.T) {
	wed := time.Date(2024, 6, 5, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		g    model.Granularity
		want time.Time
	}{
		{model.Daily, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
		{model.Weekly, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
		{model.Monthly, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := bucketStart(wed, tt.g); !got.Equal(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.g, tt.want, got)
		}
	}
	sunday := time.Date(2024, 6, 9, 23, 0, 0, 0, time.UTC)
	if got := bucketStart(sunday, model.Weekly); !got.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday should belong to the week starting monday, got %v", got)
	}
}

func TestForecast_MonthlyPeriods(t *testing.T) {
	ds := &model.Dataset{SnapshotID: "snap-1"}
	for m := 0; m < 4; m++ {
		ts := time.Date(2024, time.Month(1+m), 15, 0, 0, 0, 0, time.UTC)
		ds.Transactions = append(ds.Transactions, model.Transaction{
			CustomerID: "C1", OrderID: fmt.Sprintf("O%d", m), Timestamp: ts, Quantity: 2,
			UnitPrice: decimal.NewFromInt(50), LineTotal: decimal.NewFromInt(100),
		})
	}
	ds.MinTime, ds.MaxTime = ds.Transactions[0].Timestamp, ds.Transactions[3].Timestamp
	res, err := Forecast(ds, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Granularity != model.Monthly || len(res.Points) != DefaultHorizon {
		t.Fatalf("unexpected defaults: %s %d", res.Granularity, len(res.Points))
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !res.Points[0].Period.Equal(want) {
		t.Errorf("expected first period %v, got %v", want, res.Points[0].Period)
	}
	if !res.ReferenceDate.Equal(ds.MaxTime.AddDate(0, 0, 1)) {
		t.Errorf("unexpected reference date %v", res.ReferenceDate)
	}
}
