package recorder

import "ShopLens/internal/report"

// Recorder exports finished reports. Nothing is persisted unless a recorder
// other than NoopRecorder is configured.
type Recorder interface {
	RecordReport(rep *report.Report) error
	Close() error
}

// Multi fans a report out to several recorders and returns the first error.
type Multi []Recorder

func (m Multi) RecordReport(rep *report.Report) error {
	var first error
	for _, r := range m {
		if err := r.RecordReport(rep); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
