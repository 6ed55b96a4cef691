package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"AlertWatch/internal/model"
	"AlertWatch/internal/notifier"
	"AlertWatch/internal/scanner"
)

// Scanner is the part of the orchestrator the scheduler drives.
type Scanner interface {
	RunCycle(ctx context.Context) (model.CycleReport, error)
	SendMockAlert(ctx context.Context) error
	Stats() model.ScanStats
}

// Scheduler triggers scan cycles on a fixed interval.
type Scheduler struct {
	Cron      *cron.Cron
	Scanner   Scanner
	Formatter notifier.Formatter
	Ctx       context.Context
}

// cronLogger routes cron's internal messages through logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	log.WithField("kv", kv).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	log.WithError(err).WithField("kv", kv).Error("cron: " + msg)
}

// NewScheduler creates a new Scheduler. Overlapping runs are skipped at the
// cron layer as well as by the scanner itself.
func NewScheduler(ctx context.Context, sc Scanner, f notifier.Formatter) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		Cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Scanner:   sc,
		Formatter: f,
		Ctx:       ctx,
	}
}

// Register adds the scan job running every interval.
func (s *Scheduler) Register(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	spec := "@every " + interval.String()
	if _, err := s.Cron.AddFunc(spec, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	log.WithField("interval", interval).Info("scan task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

// RunNow executes a scan immediately (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.scanTask()
}

func (s *Scheduler) scanTask() {
	if s.Ctx.Err() != nil {
		return
	}
	if _, err := s.Scanner.RunCycle(s.Ctx); err != nil {
		if errors.Is(err, scanner.ErrCycleInProgress) {
			log.Info("previous scan still running, skipping tick")
			return
		}
		log.WithError(err).Error("scan cycle")
	}
}

const helpText = "Available commands:\n• /status\n• /scan\n• /mock"

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/status":
		return s.Formatter.FormatStats(s.Scanner.Stats())
	case "/scan":
		rep, err := s.Scanner.RunCycle(ctx)
		if errors.Is(err, scanner.ErrCycleInProgress) {
			return "A scan is already running."
		}
		if err != nil {
			return fmt.Sprintf("Scan failed: %v", err)
		}
		return fmt.Sprintf("Scan %s: %d/%d tickers, %d alerts, %d errors",
			rep.Outcome, rep.TickersScanned, rep.TickersTotal, rep.AlertsFired, rep.TickerErrors)
	case "/mock":
		if err := s.Scanner.SendMockAlert(ctx); err != nil {
			return fmt.Sprintf("Mock alert failed: %v", err)
		}
		return "Mock alert sent."
	default:
		return helpText
	}
}
