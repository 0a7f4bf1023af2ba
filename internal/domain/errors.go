package domain

import "errors"

var (
	// ErrUnknownEventType is returned for event types outside the closed enum.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMalformedPayload is returned when a payload does not match the
	// shape required by its event type.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrConsentDenied is returned when the consent gate vetoes processing.
	// Fail closed: a missing record is indistinguishable from a denial.
	ErrConsentDenied = errors.New("consent denied")

	// ErrDuplicate is returned when an event id was already seen within the
	// dedupe window.
	ErrDuplicate = errors.New("duplicate event")

	// ErrShed is returned when the gateway sheds load under backpressure.
	// The caller should retry after the advertised delay.
	ErrShed = errors.New("load shed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
