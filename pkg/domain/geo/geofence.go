package geo

import "fmt"

// Fence decides whether a live position is acceptably close to a target
// position. The threshold is deployment policy: it is supplied by
// configuration, never hardcoded at a call site.
type Fence struct {
	MaxDistanceMeters float64
}

// NewFence creates a Fence with the given threshold in meters.
// A non-positive threshold is a configuration error.
func NewFence(maxDistanceMeters float64) (Fence, error) {
	if maxDistanceMeters <= 0 {
		return Fence{}, fmt.Errorf("geofence threshold must be positive, got %v", maxDistanceMeters)
	}
	return Fence{MaxDistanceMeters: maxDistanceMeters}, nil
}

// Result is the outcome of a geofence check.
type Result struct {
	Valid          bool    `json:"valid"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Validate checks the live position against the target. It is run twice per
// completion: once at scan time (informational) and once immediately before
// the completion transition commits (authoritative).
func (f Fence) Validate(target, live Point) Result {
	d := Distance(target, live)
	return Result{
		Valid:          d <= f.MaxDistanceMeters,
		DistanceMeters: d,
	}
}
