package publishers

import (
	"context"
	"errors"
	"fmt"
)

// Fanout delivers every harvested item to all enabled sinks.
type Fanout struct {
	sinks []Publisher
}

// NewFanout drops nil entries and keeps the rest in order.
func NewFanout(pubs []Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		if p != nil {
			f.sinks = append(f.sinks, p)
		}
	}
	return f
}

// Publish hands evt to each sink and reports how many accepted it. Sink
// failures are joined; a cancelled context stops the remaining deliveries.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}

	delivered := 0
	var failures []error
	for _, sink := range f.sinks {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		err := sink.Publish(ctx, evt)
		if err == nil {
			delivered++
			continue
		}
		failures = append(failures, fmt.Errorf("%s publisher[%s]: %w", sink.Type(), sink.ID(), err))
	}
	return delivered, errors.Join(failures...)
}

// Size returns the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks that hold background resources.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.sinks)
}
