package apperr

import (
	"github.com/pkg/errors"
)

// Validation errors. These are user-correctable and never reach the platform layer.
var (
	ErrInvalidFormat      = errors.New("phone number must contain digits only")
	ErrInvalidLength      = errors.New("phone number must be 10-15 digits long")
	ErrUnknownCountryCode = errors.New("unknown country calling code")
)

// Lifecycle errors surfaced to the owner at the supervisor boundary.
var (
	ErrConnectionSetup      = errors.New("connection setup failed")
	ErrNoActiveConnection   = errors.New("no active whatsapp connection")
	ErrPairingRequestFailed = errors.New("pairing code request failed")
)

// Per-candidate auto-accept errors. They never abort a batch.
var (
	ErrApprovalFailed   = errors.New("approve participant failed")
	ErrLeaveGroupFailed = errors.New("leave group failed")
)

// Wrap attaches a sentinel to an underlying cause so that errors.Is matches
// the sentinel while the message still carries the cause.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &wrapped{sentinel: sentinel, cause: cause}
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Is(target error) bool {
	return target == w.sentinel
}

func (w *wrapped) Unwrap() error {
	return w.cause
}
