package model

import "time"

// CycleOutcome describes how a scan cycle ended.
type CycleOutcome string

const (
	OutcomeCompleted     CycleOutcome = "completed"
	OutcomeOutsideWindow CycleOutcome = "outside_window"
	OutcomeNoTickers     CycleOutcome = "no_tickers"
	OutcomeCancelled     CycleOutcome = "cancelled"
)

// CycleReport summarises a single scan cycle.
type CycleReport struct {
	CycleID          string       `json:"cycle_id"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	Outcome          CycleOutcome `json:"outcome"`
	TickersTotal     int          `json:"tickers_total"`
	TickersScanned   int          `json:"tickers_scanned"`
	TickersSkipped   int          `json:"tickers_skipped"`
	TickerErrors     int          `json:"ticker_errors"`
	AlertsFired      int          `json:"alerts_fired"`
	AlertsSuppressed int          `json:"alerts_suppressed"`
	NotifyFailures   int          `json:"notify_failures"`
	APICalls         int          `json:"api_calls"`
	Batches          int          `json:"batches"`
}

// ScanStats accumulates counters across cycles. Readers receive a copy.
type ScanStats struct {
	StartedAt      time.Time    `json:"started_at"`
	LastScanAt     time.Time    `json:"last_scan_at"`
	LastReport     *CycleReport `json:"last_report,omitempty"`
	CyclesRun      int          `json:"cycles_run"`
	TickersScanned int          `json:"tickers_scanned"`
	AlertsFired    int          `json:"alerts_fired"`
	APICallsUsed   int          `json:"api_calls_used"`
	NotifyFailures int          `json:"notify_failures"`
	Running        bool         `json:"running"`
}
