package recorder

import "context"

// NoopRecorder is used when no sink is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(context.Context, *Run) error { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
