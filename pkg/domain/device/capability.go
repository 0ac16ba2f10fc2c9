// Package device defines the narrow contracts the workflow uses to reach
// worker-device capabilities: camera capture, geolocation, scanner sessions,
// and evidence upload. The core never touches rendering or hardware
// directly; implementations live with the client.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/propsync/fieldtask/pkg/domain/geo"
)

// Capability failure sentinels. Every failure carries a specific remediation
// message through CapabilityError; none are silently swallowed.
var (
	// ErrPermissionDenied indicates the worker declined a device permission.
	ErrPermissionDenied = errors.New("device permission denied")

	// ErrHardwareUnavailable indicates the capability's hardware is absent.
	ErrHardwareUnavailable = errors.New("device hardware unavailable")

	// ErrPositionTimeout indicates the position read did not finish within
	// the fail-fast limit.
	ErrPositionTimeout = errors.New("position read timed out")
)

// CapabilityError reports which capability failed and what the worker can do
// about it.
type CapabilityError struct {
	Capability  string
	Remediation string
	Err         error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s unavailable: %v (%s)", e.Capability, e.Err, e.Remediation)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// Camera captures a single photo. The acquisition is scoped: implementations
// acquire the stream, capture, and release on every exit path including
// cancellation.
type Camera interface {
	CapturePhoto(ctx context.Context) ([]byte, error)
}

// Locator reads the device's live position. Reads are expected to fail fast
// rather than hang the completion flow; see ResilientLocator.
type Locator interface {
	ReadPosition(ctx context.Context) (geo.Point, error)
}

// EvidenceStore uploads captured evidence bytes and returns a stable URL.
type EvidenceStore interface {
	UploadEvidence(ctx context.Context, name string, data []byte) (string, error)
}

// CancelFunc stops a scanner session and releases the camera stream.
type CancelFunc func()

// Scanner owns a decode session over the device camera. The caller owns the
// UI surface; the core only receives decoded text or errors.
type Scanner interface {
	StartSession(ctx context.Context, onDecoded func(code string), onError func(err error)) (CancelFunc, error)
}
