package recorder

import "AlertWatch/internal/model"

// NoopRecorder is a no-op implementation used when no history backend is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSignal(_ *model.Signal) error      { return nil }
func (n *NoopRecorder) RecordCycle(_ *model.CycleReport) error { return nil }
func (n *NoopRecorder) Close() error                           { return nil }
