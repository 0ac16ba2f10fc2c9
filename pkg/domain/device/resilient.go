package device

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/propsync/fieldtask/pkg/domain/geo"
)

// DefaultPositionTimeout bounds how long a submit-time position read may
// take before the completion flow gives up.
const DefaultPositionTimeout = 10 * time.Second

// ResilientLocator wraps a Locator with a fail-fast timeout so a stalled
// geolocation read cannot hang a completion indefinitely.
type ResilientLocator struct {
	inner Locator
	limit time.Duration
}

// NewResilientLocator wraps inner with the given read limit. A non-positive
// limit falls back to DefaultPositionTimeout.
func NewResilientLocator(inner Locator, limit time.Duration) *ResilientLocator {
	if limit <= 0 {
		limit = DefaultPositionTimeout
	}
	return &ResilientLocator{inner: inner, limit: limit}
}

// ReadPosition reads the live position, failing with ErrPositionTimeout when
// the device does not answer within the limit.
func (l *ResilientLocator) ReadPosition(ctx context.Context) (geo.Point, error) {
	t := timeout.New[geo.Point](timeout.Config{
		DefaultTimeout: l.limit,
	})

	p, err := t.Execute(ctx, l.limit, func(ctx context.Context) (geo.Point, error) {
		return l.inner.ReadPosition(ctx)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return geo.Point{}, &CapabilityError{
				Capability:  "geolocation",
				Remediation: "move to open sky and retry the submission",
				Err:         ErrPositionTimeout,
			}
		}
		return geo.Point{}, err
	}
	return p, nil
}
