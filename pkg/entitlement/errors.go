package entitlement

import "errors"

var (
	ErrConfigNotFound     = errors.New("app configuration not found")
	ErrFailedToSaveConfig = errors.New("failed to save app configuration")
	ErrFlagsNotFound      = errors.New("user premium flags not found")
	ErrFailedToSaveFlags  = errors.New("failed to save user premium flags")
)
