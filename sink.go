package reconcile

import (
	"context"
	"errors"
)

// Sink persists or publishes progress snapshots. Implementations must be safe
// for concurrent use by independent sessions. Upsert failures are reported to
// the Controller, which logs and swallows them.
type Sink interface {
	Upsert(ctx context.Context, sessionID string, p Progress) error
}

// MultiSink fans every upsert out to each sink in order. A failing sink does
// not prevent later sinks from receiving the snapshot; all failures are
// joined into the returned error.
type MultiSink []Sink

// Interface compliance check.
var _ Sink = MultiSink(nil)

// Upsert implements Sink.
func (m MultiSink) Upsert(ctx context.Context, sessionID string, p Progress) error {
	var errs []error
	for _, s := range m {
		if err := s.Upsert(ctx, sessionID, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
