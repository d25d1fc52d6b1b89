package models

import "errors"

// Error taxonomy shared across the service. Callers wrap these with
// fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrValidation marks malformed input (phone, date, rule). It is handled
	// where it occurs and degrades to "no match" or "skip".
	ErrValidation = errors.New("validation error")

	// ErrTransientDelivery marks a failed send to a single recipient.
	ErrTransientDelivery = errors.New("transient delivery error")

	// ErrConfiguration marks a feed or channel that is misconfigured.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataUnavailable marks canonical data that could not be loaded.
	ErrDataUnavailable = errors.New("data unavailable")

	ErrNotFound       = errors.New("not found")
	ErrAlreadyClaimed = errors.New("reminder already processed")
)
