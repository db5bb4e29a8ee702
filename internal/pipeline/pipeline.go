package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ShopLens/internal/forecast"
	"ShopLens/internal/loader"
	"ShopLens/internal/model"
	"ShopLens/internal/report"
	"ShopLens/internal/rfm"
	"ShopLens/internal/segment"

	"github.com/schollz/progressbar/v3"
)

// Stage names used in errors, logs and metrics.
const (
	StageLoad     = "load"
	StageRFM      = "rfm"
	StageSegment  = "segment"
	StageForecast = "forecast"
	StageAssemble = "assemble"
)

// Params are the analysis parameters of one run. ReferenceDate applies to
// every stage; a zero value means the day after the latest transaction.
type Params struct {
	ReferenceDate time.Time
	RFM           rfm.Options
	Segment       segment.Options
	Forecast      forecast.Options
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Segment:  segment.DefaultOptions(),
		Forecast: forecast.Options{Granularity: model.Monthly},
	}
}

// StageError wraps the error kind returned by a stage with the stage name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Runner executes load → rfm → (segment ∥ forecast) → assemble over one source.
type Runner struct {
	Source   loader.Source
	Progress bool // draw a progress bar on stdout
}

// NewRunner creates a runner over src.
func NewRunner(src loader.Source) *Runner {
	return &Runner{Source: src}
}

// Run performs one complete analysis. Each call loads a fresh snapshot and
// returns a new report; on error no partial report is returned.
func (r *Runner) Run(ctx context.Context, p Params) (rep *report.Report, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		runsTotal.WithLabelValues(outcome).Inc()
	}()

	var bar *progressbar.ProgressBar
	if r.Progress {
		bar = progressbar.Default(4, "analysis")
	}
	step := func(desc string) {
		if bar != nil {
			bar.Describe(desc)
			_ = bar.Add(1)
		}
	}

	var ds *model.Dataset
	if err := timed(StageLoad, func() error {
		var lerr error
		ds, lerr = loader.NewLoader(r.Source).Load(ctx)
		return lerr
	}); err != nil {
		return nil, err
	}
	step(StageLoad)

	rfmOpts := p.RFM
	if !p.ReferenceDate.IsZero() {
		rfmOpts.ReferenceDate = p.ReferenceDate
	}
	var scores *model.RFMResult
	if err := timed(StageRFM, func() error {
		var rerr error
		scores, rerr = rfm.Calculate(ds, rfmOpts)
		return rerr
	}); err != nil {
		return nil, err
	}
	step(StageRFM)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Segmentation and forecasting only read the dataset and RFM result.
	fcOpts := p.Forecast
	fcOpts.ReferenceDate = scores.ReferenceDate
	var (
		wg            sync.WaitGroup
		seg           *model.SegmentResult
		fc            *model.ForecastResult
		segErr, fcErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		segErr = timed(StageSegment, func() error {
			var e error
			seg, e = segment.Segment(scores, p.Segment)
			return e
		})
	}()
	go func() {
		defer wg.Done()
		fcErr = timed(StageForecast, func() error {
			var e error
			fc, e = forecast.Forecast(ds, fcOpts)
			return e
		})
	}()
	wg.Wait()
	if segErr != nil {
		return nil, segErr
	}
	if fcErr != nil {
		return nil, fcErr
	}
	step("segment+forecast")

	if err := timed(StageAssemble, func() error {
		var aerr error
		rep, aerr = report.Assemble(ds, scores, seg, fc)
		return aerr
	}); err != nil {
		return nil, err
	}
	step(StageAssemble)

	lastCustomers.Set(float64(rep.CustomerCount()))
	lastSegments.Set(float64(len(seg.Segments)))
	log.Printf("[INFO] analysis %s done in %s: %d customers, %d segments, %s forecast (%d points)",
		rep.ID(), time.Since(start).Round(time.Millisecond), rep.CustomerCount(),
		len(seg.Segments), fc.Method, len(fc.Points))
	return rep, nil
}

func timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	runDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("[ERROR] %s stage: %v", stage, err)
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
