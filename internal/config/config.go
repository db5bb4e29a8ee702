package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ShopLens/internal/forecast"
	"ShopLens/internal/loader"
	"ShopLens/internal/model"
	"ShopLens/internal/pipeline"
	"ShopLens/internal/rfm"
	"ShopLens/internal/segment"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Source struct {
		Type   string `yaml:"type" validate:"oneof=csv http sql"`
		Path   string `yaml:"path" validate:"required_if=Type csv"`
		URL    string `yaml:"url" validate:"required_if=Type http"`
		Driver string `yaml:"driver" validate:"omitempty,oneof=mysql postgres sqlite"`
		DSN    string `yaml:"dsn" validate:"required_if=Type sql"`
		Query  string `yaml:"query"`
	} `yaml:"source"`
	Analysis struct {
		ReferenceDate string `yaml:"reference_date" validate:"omitempty,datetime=2006-01-02"`
		Bins          int    `yaml:"bins" validate:"min=1,max=100"`
		ChurnDays     int    `yaml:"churn_days" validate:"min=3"`
		Segments      struct {
			K             int      `yaml:"k" validate:"min=0"`
			AutoK         bool     `yaml:"auto_k"`
			Seed          int64    `yaml:"seed"`
			MaxIterations int      `yaml:"max_iterations" validate:"min=1"`
			Restarts      int      `yaml:"restarts" validate:"min=1"`
			UseScores     bool     `yaml:"use_scores"`
			Names         []string `yaml:"names" validate:"dive,required"`
		} `yaml:"segments"`
		Forecast struct {
			Granularity  string  `yaml:"granularity" validate:"oneof=daily weekly monthly"`
			Horizon      int     `yaml:"horizon" validate:"min=1"`
			Method       string  `yaml:"method" validate:"oneof=holt holt_winters moving_average"`
			Alpha        float64 `yaml:"alpha" validate:"gte=0,lte=1"`
			Beta         float64 `yaml:"beta" validate:"gte=0,lte=1"`
			Gamma        float64 `yaml:"gamma" validate:"gte=0,lte=1"`
			SeasonLength int     `yaml:"season_length" validate:"min=0"`
			Window       int     `yaml:"window" validate:"min=1"`
			Confidence   float64 `yaml:"confidence" validate:"confidence"`
		} `yaml:"forecast"`
	} `yaml:"analysis"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Export struct {
		SQLitePath string `yaml:"sqlite_path"`
		JSONDir    string `yaml:"json_dir"`
	} `yaml:"export"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SHOPLENS_SOURCE_PATH"); v != "" {
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			cfg.Source.Type = "http"
			cfg.Source.URL = v
		} else {
			cfg.Source.Type = "csv"
			cfg.Source.Path = v
		}
	}
	if v := os.Getenv("SHOPLENS_DSN"); v != "" {
		cfg.Source.Type = "sql"
		cfg.Source.DSN = v
	}
	if v := os.Getenv("SHOPLENS_REFERENCE_DATE"); v != "" {
		cfg.Analysis.ReferenceDate = v
	}
	if v := os.Getenv("SHOPLENS_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("SHOPLENS_K"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SHOPLENS_K: %w", err)
		}
		cfg.Analysis.Segments.K = k
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Export.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Defaults
	if cfg.Source.Type == "" {
		cfg.Source.Type = "csv"
	}
	if cfg.Source.Type == "csv" && cfg.Source.Path == "" {
		cfg.Source.Path = "data/master_dataset.csv"
	}
	if cfg.Source.Type == "sql" && cfg.Source.Driver == "" {
		cfg.Source.Driver = driverFromDSN(cfg.Source.DSN)
	}
	if cfg.Analysis.Bins == 0 {
		cfg.Analysis.Bins = rfm.DefaultBins
	}
	if cfg.Analysis.ChurnDays == 0 {
		cfg.Analysis.ChurnDays = rfm.DefaultChurnDays
	}
	seg := &cfg.Analysis.Segments
	if seg.K == 0 && !seg.AutoK {
		seg.K = segment.DefaultK
	}
	if seg.Seed == 0 {
		seg.Seed = segment.DefaultSeed
	}
	if seg.MaxIterations == 0 {
		seg.MaxIterations = segment.DefaultMaxIterations
	}
	if seg.Restarts == 0 {
		seg.Restarts = segment.DefaultRestarts
	}
	fc := &cfg.Analysis.Forecast
	if fc.Granularity == "" {
		fc.Granularity = string(model.Monthly)
	}
	if fc.Horizon == 0 {
		fc.Horizon = forecast.DefaultHorizon
	}
	if fc.Method == "" {
		fc.Method = forecast.MethodHolt
	}
	if fc.Window == 0 {
		fc.Window = forecast.DefaultWindow
	}
	if fc.Confidence == 0 {
		fc.Confidence = forecast.DefaultConfidence
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	return cfg, nil
}

// driverFromDSN guesses the SQL driver from a URL-style DSN. Anything else is
// treated as a SQLite file path.
func driverFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		return "mysql"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("confidence", func(fl validator.FieldLevel) bool {
		return forecast.SupportsConfidence(fl.Field().Float())
	}); err != nil {
		return fmt.Errorf("register confidence rule: %w", err)
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Schedule.Cron != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	if f := c.Analysis.Forecast; f.Method == forecast.MethodHoltWinters && f.SeasonLength < 2 {
		return fmt.Errorf("analysis.forecast.season_length must be at least 2 for holt_winters")
	}
	return nil
}

// TelegramEnabled reports whether chat notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Params converts the analysis section into pipeline parameters.
func (c *Config) Params() (pipeline.Params, error) {
	var p pipeline.Params
	a := c.Analysis
	if a.ReferenceDate != "" {
		ref, err := time.Parse("2006-01-02", a.ReferenceDate)
		if err != nil {
			return p, fmt.Errorf("%w: reference_date: %v", model.ErrInvalidParameter, err)
		}
		p.ReferenceDate = ref
	}
	p.RFM = rfm.Options{Bins: a.Bins, ChurnDays: a.ChurnDays}
	p.Segment = segment.Options{
		K:             a.Segments.K,
		AutoK:         a.Segments.AutoK,
		Seed:          a.Segments.Seed,
		MaxIterations: a.Segments.MaxIterations,
		Restarts:      a.Segments.Restarts,
		UseScores:     a.Segments.UseScores,
		Names:         append([]string(nil), a.Segments.Names...),
	}
	p.Forecast = forecast.Options{
		Granularity:  model.Granularity(a.Forecast.Granularity),
		Horizon:      a.Forecast.Horizon,
		Method:       a.Forecast.Method,
		Alpha:        a.Forecast.Alpha,
		Beta:         a.Forecast.Beta,
		Gamma:        a.Forecast.Gamma,
		SeasonLength: a.Forecast.SeasonLength,
		Window:       a.Forecast.Window,
		Confidence:   a.Forecast.Confidence,
	}
	return p, nil
}

// DataSource builds the configured transaction source.
func (c *Config) DataSource() (loader.Source, error) {
	switch c.Source.Type {
	case "http":
		return loader.NewHTTPSource(c.Source.URL, c.Proxy), nil
	case "sql":
		return loader.NewSQLSource(c.Source.Driver, c.Source.DSN, c.Source.Query)
	default:
		return loader.NewCSVSource(c.Source.Path), nil
	}
}
