package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertWatch/internal/model"
	"AlertWatch/internal/notifier"
	"AlertWatch/internal/scanner"
)

type fakeScanner struct {
	runs    int32
	runErr  error
	mockErr error
	report  model.CycleReport
}

func (f *fakeScanner) RunCycle(context.Context) (model.CycleReport, error) {
	atomic.AddInt32(&f.runs, 1)
	return f.report, f.runErr
}

func (f *fakeScanner) SendMockAlert(context.Context) error { return f.mockErr }

func (f *fakeScanner) Stats() model.ScanStats {
	return model.ScanStats{CyclesRun: 7, AlertsFired: 3}
}

func TestHandleCommand(t *testing.T) {
	fs := &fakeScanner{report: model.CycleReport{
		Outcome: model.OutcomeCompleted, TickersTotal: 4, TickersScanned: 4, AlertsFired: 1,
	}}
	s := NewScheduler(context.Background(), fs, notifier.Formatter{})
	ctx := context.Background()

	tests := []struct {
		cmd  string
		want string
	}{
		{"/status", "Cycles: 7"},
		{"/scan", "Scan completed: 4/4 tickers, 1 alerts"},
		{"/mock", "Mock alert sent."},
		{"/unknown", "Available commands"},
	}
	for _, tt := range tests {
		assert.Contains(t, s.HandleCommand(ctx, tt.cmd), tt.want, tt.cmd)
	}
}

func TestHandleCommandErrors(t *testing.T) {
	fs := &fakeScanner{runErr: scanner.ErrCycleInProgress, mockErr: errors.New("webhook down")}
	s := NewScheduler(context.Background(), fs, notifier.Formatter{})

	assert.Equal(t, "A scan is already running.", s.HandleCommand(context.Background(), "/scan"))
	assert.Contains(t, s.HandleCommand(context.Background(), "/mock"), "webhook down")
}

func TestRegisterRejectsBadInterval(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeScanner{}, notifier.Formatter{})
	assert.Error(t, s.Register(0))
	require.NoError(t, s.Register(5*time.Minute))
	assert.Len(t, s.Cron.Entries(), 1)
}

func TestScheduledScanRuns(t *testing.T) {
	fs := &fakeScanner{}
	s := NewScheduler(context.Background(), fs, notifier.Formatter{})
	require.NoError(t, s.Register(time.Second))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&fs.runs) >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestRunNowSkipsWhenContextDone(t *testing.T) {
	fs := &fakeScanner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler(ctx, fs, notifier.Formatter{})
	s.RunNow()
	assert.Zero(t, atomic.LoadInt32(&fs.runs))
}
