package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ShopLens/internal/loader"
	"ShopLens/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should be allowed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Source.Type != "csv" || cfg.Source.Path != "data/master_dataset.csv" {
		t.Errorf("unexpected source defaults: %+v", cfg.Source)
	}
	if cfg.Analysis.Bins != 5 || cfg.Analysis.Segments.K != 4 || cfg.Analysis.Segments.Seed != 42 {
		t.Errorf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Analysis.Forecast.Method != "holt" || cfg.Analysis.Forecast.Confidence != 0.95 {
		t.Errorf("unexpected forecast defaults: %+v", cfg.Analysis.Forecast)
	}
	if cfg.TelegramEnabled() {
		t.Error("telegram should be disabled by default")
	}
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
source:
  type: sql
  dsn: postgres://shop:secret@db:5432/shop?sslmode=disable
analysis:
  reference_date: "2024-03-01"
  bins: 4
  segments:
    k: 3
    names: [Gold, Silver, Bronze]
  forecast:
    granularity: weekly
    horizon: 6
    method: moving_average
    window: 4
    confidence: 0.9
schedule:
  cron: "0 0 6 * * *"
`)
	t.Setenv("SHOPLENS_REFERENCE_DATE", "2024-04-01")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if cfg.Source.Driver != "postgres" {
		t.Errorf("expected postgres driver from DSN, got %q", cfg.Source.Driver)
	}
	if !cfg.TelegramEnabled() {
		t.Error("telegram should be enabled from env")
	}

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if !p.ReferenceDate.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("env reference date not applied: %v", p.ReferenceDate)
	}
	if p.RFM.Bins != 4 || p.Segment.K != 3 || len(p.Segment.Names) != 3 {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.Forecast.Granularity != model.Weekly || p.Forecast.Horizon != 6 || p.Forecast.Window != 4 {
		t.Errorf("unexpected forecast params: %+v", p.Forecast)
	}

	src, err := cfg.DataSource()
	if err != nil {
		t.Fatalf("data source: %v", err)
	}
	if _, ok := src.(*loader.SQLSource); !ok {
		t.Errorf("expected SQL source, got %T", src)
	}
}

func TestLoad_SourcePathEnv(t *testing.T) {
	t.Setenv("SHOPLENS_SOURCE_PATH", "https://example.com/master.csv")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	src, err := cfg.DataSource()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*loader.HTTPSource); !ok {
		t.Errorf("expected HTTP source, got %T", src)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown source", "source:\n  type: ftp\n"},
		{"http without url", "source:\n  type: http\n"},
		{"bad driver", "source:\n  type: sql\n  driver: oracle\n  dsn: x\n"},
		{"bad granularity", "analysis:\n  forecast:\n    granularity: hourly\n"},
		{"bad method", "analysis:\n  forecast:\n    method: arima\n"},
		{"negative k", "analysis:\n  segments:\n    k: -1\n"},
		{"bad reference date", "analysis:\n  reference_date: 01/03/2024\n"},
		{"bad cron", "schedule:\n  cron: every day\n"},
		{"half telegram", "telegram:\n  bot_token: abc\n"},
		{"holt-winters without season", "analysis:\n  forecast:\n    method: holt_winters\n"},
		{"unsupported confidence", "analysis:\n  forecast:\n    confidence: 0.85\n"},
		{"confidence above one", "analysis:\n  forecast:\n    confidence: 1.5\n"},
		{"churn days below three", "analysis:\n  churn_days: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_SupportedConfidence(t *testing.T) {
	for _, c := range []string{"0.8", "0.90", "0.95", "0.99"} {
		cfg, err := Load(writeConfig(t, "analysis:\n  forecast:\n    confidence: "+c+"\n"))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("confidence %s: unexpected error: %v", c, err)
		}
	}
}

func TestLoad_BadKEnv(t *testing.T) {
	t.Setenv("SHOPLENS_K", "four")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for unparseable SHOPLENS_K")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "source: [")); err == nil {
		t.Error("expected parse error")
	}
}
