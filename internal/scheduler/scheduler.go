package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"ShopLens/internal/notifier"
	"ShopLens/internal/pipeline"
	"ShopLens/internal/recorder"
	"ShopLens/internal/report"

	"github.com/robfig/cron/v3"
)

// ErrNoReport is returned by readers before the first successful run.
var ErrNoReport = errors.New("no report available yet")

// Runner produces one report per call.
type Runner interface {
	Run(ctx context.Context, p pipeline.Params) (*report.Report, error)
}

// Scheduler re-runs the analysis on a cron schedule and keeps the latest
// report. Readers always see a complete prior report while a new one is
// being computed.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Params   pipeline.Params
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Ctx      context.Context

	latest atomic.Pointer[report.Report]
	runMu  sync.Mutex
}

// NewScheduler creates a new Scheduler. A nil notifier or recorder disables
// that output.
func NewScheduler(ctx context.Context, runner Runner, params pipeline.Params, n notifier.Notifier, rec recorder.Recorder) *Scheduler {
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		Runner:   runner,
		Params:   params,
		Notifier: n,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// Register schedules periodic runs. An empty spec leaves the scheduler idle.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	log.Printf("[INFO] analysis scheduled: %s", spec)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Latest returns the most recent report, or nil before the first run.
func (s *Scheduler) Latest() *report.Report {
	return s.latest.Load()
}

// RunNow runs the analysis with the configured parameters.
func (s *Scheduler) RunNow() (*report.Report, error) {
	return s.RunWith(s.Ctx, s.Params)
}

// RunWith runs the analysis with p, records the report and publishes it as
// the latest. Runs are serialized; a failed run leaves the previous report
// in place.
func (s *Scheduler) RunWith(ctx context.Context, p pipeline.Params) (*report.Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	rep, err := s.Runner.Run(ctx, p)
	if err != nil {
		return nil, err
	}
	s.latest.Store(rep)
	if err := s.Recorder.RecordReport(rep); err != nil {
		log.Printf("[ERROR] record report %s: %v", rep.ID(), err)
	}
	return rep, nil
}

func (s *Scheduler) scheduledRun() {
	log.Println("[INFO] running scheduled analysis")
	rep, err := s.RunNow()
	if err != nil {
		log.Printf("[ERROR] scheduled analysis: %v", err)
		s.tryNotify(failure(err))
		return
	}
	s.tryNotify(notifier.HTML(report.FormatSummary(rep) + "\n" + report.FormatSegments(rep)))
}

func (s *Scheduler) tryNotify(msg notifier.Message) {
	if err := s.Notifier.Notify(s.Ctx, msg); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
