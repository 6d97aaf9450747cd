package node

import (
	"errors"

	"github.com/sweeney/motion-detector/internal/logic"
)

// MultiSink publishes to every sink in order. A failing sink does not stop
// delivery to the rest; the errors are joined.
type MultiSink []Sink

// PublishValue implements Sink.
func (m MultiSink) PublishValue(channel string, typ logic.ValueType, value float64) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishValue(channel, typ, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishEventCount implements Sink.
func (m MultiSink) PublishEventCount(kind logic.CountKind, count uint32) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishEventCount(kind, count); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
