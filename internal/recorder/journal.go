package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"AlertWatch/internal/model"
)

// journalRow is one CSV line of the daily alert journal.
type journalRow struct {
	Timestamp    string  `csv:"timestamp"`
	ID           string  `csv:"id"`
	Ticker       string  `csv:"ticker"`
	Entry        float64 `csv:"entry"`
	StopLoss     float64 `csv:"stop_loss"`
	TakeProfit   float64 `csv:"take_profit"`
	Confidence   float64 `csv:"confidence"`
	ATR          float64 `csv:"atr"`
	Invalidation string  `csv:"invalidation"`
	Allocation   string  `csv:"allocation_pct"`
	Test         bool    `csv:"test"`
}

// CSVJournal appends signals to alerts_YYYYMMDD.csv files in Dir.
// Cycle reports are not journaled.
type CSVJournal struct {
	Dir string
	mu  sync.Mutex
}

// NewCSVJournal creates the journal directory if needed.
func NewCSVJournal(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	log.WithField("dir", dir).Info("csv journal opened")
	return &CSVJournal{Dir: dir}, nil
}

// PathFor returns the journal file for the day of t (UTC).
func (j *CSVJournal) PathFor(t time.Time) string {
	return filepath.Join(j.Dir, "alerts_"+t.UTC().Format("20060102")+".csv")
}

func optional(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}

func (j *CSVJournal) RecordSignal(sig *model.Signal) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := j.PathFor(sig.Timestamp)
	_, statErr := os.Stat(path)
	exists := statErr == nil

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	rows := []*journalRow{{
		Timestamp:    sig.Timestamp.UTC().Format(time.RFC3339),
		ID:           sig.ID,
		Ticker:       sig.Ticker,
		Entry:        sig.Entry,
		StopLoss:     sig.StopLoss,
		TakeProfit:   sig.TakeProfit,
		Confidence:   sig.Confidence,
		ATR:          sig.ATR,
		Invalidation: optional(sig.InvalidationLevel),
		Allocation:   optional(sig.AllocationPct),
		Test:         sig.Test,
	}}
	if exists {
		err = gocsv.MarshalWithoutHeaders(rows, f)
	} else {
		err = gocsv.MarshalFile(rows, f)
	}
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func (j *CSVJournal) RecordCycle(_ *model.CycleReport) error { return nil }
func (j *CSVJournal) Close() error                           { return nil }
