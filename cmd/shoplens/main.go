package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ShopLens/internal/api"
	"ShopLens/internal/config"
	"ShopLens/internal/notifier"
	"ShopLens/internal/pipeline"
	"ShopLens/internal/recorder"
	"ShopLens/internal/report"
	"ShopLens/internal/scheduler"

	"github.com/gin-gonic/gin"
)

func main() {
	once := flag.Bool("once", false, "run the analysis once, print the summary and exit")
	serve := flag.Bool("serve", false, "serve the dashboard HTTP API")
	progress := flag.Bool("progress", false, "show a progress bar while analysing")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] ShopLens starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("[FATAL] analysis parameters: %v", err)
	}

	// Init source and runner
	src, err := cfg.DataSource()
	if err != nil {
		log.Fatalf("[FATAL] init data source: %v", err)
	}
	log.Printf("[INFO] data source: %s", src.Name())
	runner := pipeline.NewRunner(src)
	runner.Progress = *progress

	// Init recorder
	rec := openRecorder(cfg)
	defer rec.Close()

	// Init notifier
	var tn *notifier.TelegramNotifier
	var n notifier.Notifier = notifier.NoopNotifier{}
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, runner, params, n, rec)

	if *once {
		rep, err := sched.RunNow()
		if err != nil {
			rec.Close()
			log.Fatalf("[FATAL] analysis: %v", err)
		}
		fmt.Println(report.FormatSummary(rep))
		fmt.Println(report.FormatSegments(rep))
		fmt.Println(report.FormatForecast(rep))
		return
	}

	if _, err := sched.RunNow(); err != nil {
		log.Printf("[ERROR] initial analysis failed: %v", err)
	}

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	var srv *http.Server
	if *serve {
		gin.SetMode(gin.ReleaseMode)
		srv = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewRouter(api.NewHandler(sched, params)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[INFO] serving API on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("[FATAL] http server: %v", err)
			}
		}()
	}

	log.Println("[INFO] ShopLens is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] http shutdown: %v", err)
		}
		done()
	}
	cancel()
	log.Println("[INFO] ShopLens stopped")
}

// openRecorder builds the configured exporters. Nothing is exported unless a
// SQLite path or JSON directory is set.
func openRecorder(cfg *config.Config) recorder.Recorder {
	var recs recorder.Multi
	if cfg.Export.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Export.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, skipping: %v", err)
		} else {
			recs = append(recs, sr)
		}
	}
	if cfg.Export.JSONDir != "" {
		recs = append(recs, recorder.NewJSONRecorder(cfg.Export.JSONDir))
	}
	if len(recs) == 0 {
		return recorder.NewNoopRecorder()
	}
	return recs
}
