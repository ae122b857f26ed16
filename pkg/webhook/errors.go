package webhook

import "errors"

var (
	// ErrSignatureMismatch is returned when an inbound request fails
	// signature or token verification.
	ErrSignatureMismatch = errors.New("webhook signature verification failed")

	// ErrMissingSignature is returned when the expected signature header
	// or auth token is absent from the request.
	ErrMissingSignature = errors.New("webhook signature is missing")
)
