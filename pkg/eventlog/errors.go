package eventlog

import "errors"

var (
	ErrEventNotFound    = errors.New("webhook event not found")
	ErrAlreadyProcessed = errors.New("webhook event already processed")
	ErrEventNil         = errors.New("webhook event cannot be nil")

	ErrFailedToCreateEvent = errors.New("failed to persist webhook event")
	ErrFailedToUpdateEvent = errors.New("failed to update webhook event")
	ErrFailedToListEvents  = errors.New("failed to list webhook events")
)
