package detector

import "errors"

var (
	// ErrSensorUnavailable means the sample source could not be subscribed.
	// Fatal to Start.
	ErrSensorUnavailable = errors.New("sensor unavailable")

	// ErrClassifierInit means the classifier failed to load. Fatal to Start.
	ErrClassifierInit = errors.New("classifier init failed")

	// ErrClassifierInvocation wraps a failed Classify call. The cycle is
	// skipped and the detector keeps running.
	ErrClassifierInvocation = errors.New("classifier invocation failed")

	// ErrAlreadyRunning is returned by Start on a running detector.
	ErrAlreadyRunning = errors.New("detector already running")
)
