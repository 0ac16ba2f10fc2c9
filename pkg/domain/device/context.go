package device

import (
	"context"

	"github.com/propsync/fieldtask/pkg/domain/geo"
)

type positionKey struct{}

// WithPosition returns a context carrying the device-reported position.
// Transport layers stash the position a client submitted alongside its
// request; ContextLocator picks it up downstream.
func WithPosition(ctx context.Context, p geo.Point) context.Context {
	return context.WithValue(ctx, positionKey{}, p)
}

// PositionFromContext extracts a previously stashed position.
func PositionFromContext(ctx context.Context) (geo.Point, bool) {
	p, ok := ctx.Value(positionKey{}).(geo.Point)
	return p, ok
}

// ContextLocator reads the position from the request context. Off-device
// deployments cannot query GPS hardware themselves; the client reads its own
// position and sends it with the submission. An optional fallback locator
// serves on-device deployments where the context carries nothing.
type ContextLocator struct {
	Fallback Locator
}

func (l ContextLocator) ReadPosition(ctx context.Context) (geo.Point, error) {
	if p, ok := PositionFromContext(ctx); ok {
		return p, nil
	}
	if l.Fallback != nil {
		return l.Fallback.ReadPosition(ctx)
	}
	return geo.Point{}, &CapabilityError{
		Capability:  "geolocation",
		Remediation: "include latitude and longitude in the submission",
		Err:         ErrHardwareUnavailable,
	}
}
