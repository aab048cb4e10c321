package metrics

import coremetrics "github.com/transitionlab/fleetpath/core/metrics"

// MultiSink fans run records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the record to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordRun(r coremetrics.RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordYears forwards year records when supported by the sink.
func (m *MultiSink) RecordYears(years []coremetrics.YearResult) error {
	for _, s := range m.Sinks {
		if yr, ok := s.(coremetrics.YearRecorder); ok {
			if err := yr.RecordYears(years); err != nil {
				return err
			}
		}
	}
	return nil
}
