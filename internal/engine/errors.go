package engine

import "errors"

// Control-surface errors. All are recoverable: they are reported to the
// caller and leave pipeline state untouched.
var (
	// ErrAlreadyCalibrating is returned when a calibration session is
	// requested while another is active.
	ErrAlreadyCalibrating = errors.New("calibration already in progress")

	// ErrNotCalibrated is returned by Start when no network has a usable
	// baseline yet.
	ErrNotCalibrated = errors.New("no calibrated baselines; run calibration first")

	// ErrInvalidSensitivity is returned for zero or negative sensitivity.
	ErrInvalidSensitivity = errors.New("sensitivity must be positive")

	// ErrUnknownNetwork is returned by queries that reference a network the
	// engine has never observed.
	ErrUnknownNetwork = errors.New("unknown network")
)
