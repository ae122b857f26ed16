package license

import "errors"

var (
	// ErrInvalidLicense is returned when the key is unknown.
	ErrInvalidLicense = errors.New("license key not found")

	// ErrAlreadyActivated is returned when activation is attempted by a
	// user other than the one the license is bound to. First writer wins;
	// the binding never moves.
	ErrAlreadyActivated = errors.New("license already activated by another user")

	// ErrLicenseExpired is returned when the validity window has closed.
	ErrLicenseExpired = errors.New("license is outside its validity window")

	ErrFailedToSaveLicense  = errors.New("failed to save license")
	ErrFailedToListLicenses = errors.New("failed to list licenses")
)
