package recorder

import "ShopLens/internal/report"

// NoopRecorder is a no-op implementation used when no export is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordReport(_ *report.Report) error { return nil }
func (n *NoopRecorder) Close() error                        { return nil }
