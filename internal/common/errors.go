package common

import "errors"

var (
	// ErrModelNotReady is returned when inference or training is requested
	// before the classifier has been initialized.
	ErrModelNotReady = errors.New("model not ready")

	// ErrDataUnavailable wraps failures of external historical data lookups.
	// The engine logs it and continues with neutral defaults.
	ErrDataUnavailable = errors.New("historical data unavailable")

	// ErrInvalidMatch is returned by request validation at the API boundary.
	ErrInvalidMatch = errors.New("invalid match")
)
