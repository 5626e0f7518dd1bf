// Package output publishes the harvested collection.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/innerscore/internal/domain/model"
	"github.com/okian/innerscore/pkg/metrics"
)

// Sink receives the full collection at the end of every pass.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, records []model.Repository) error
}

// Encode renders records the way the portal reads them: a JSON array
// indented by four spaces.
func Encode(records []model.Repository) ([]byte, error) {
	if records == nil {
		records = []model.Repository{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding collection: %w", err)
	}
	return append(data, '\n'), nil
}

// MultiSink writes to every sink and joins their errors.
type MultiSink struct {
	sinks []Sink
}

var _ Sink = (*MultiSink)(nil)

// NewMultiSink fans out to sinks; nil entries are dropped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name implements Sink.
func (m *MultiSink) Name() string { return "multi" }

// Len returns the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Write implements Sink. Every sink is attempted even when one fails.
func (m *MultiSink) Write(ctx context.Context, runID string, records []model.Repository) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, runID, records); err != nil {
			metrics.RecordSinkWrite(s.Name(), "error")
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		metrics.RecordSinkWrite(s.Name(), "success")
	}
	return errors.Join(errs...)
}
