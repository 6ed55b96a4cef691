// Package recorder persists emitted signals and scan cycle summaries.
package recorder

import (
	"errors"

	"AlertWatch/internal/model"
)

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordSignal(sig *model.Signal) error
	RecordCycle(rep *model.CycleReport) error
	Close() error
}

// Multi fans out to several recorders. Every recorder is attempted; errors are joined.
type Multi []Recorder

func (m Multi) RecordSignal(sig *model.Signal) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordSignal(sig))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordCycle(rep *model.CycleReport) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordCycle(rep))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
