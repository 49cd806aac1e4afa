package service

import "errors"

// Pipeline error taxonomy. Handlers map these onto HTTP statuses with
// errors.Is; repositories keep their own not-found sentinels which services
// wrap or translate.
var (
	// ErrValidation covers missing or malformed request parameters.
	ErrValidation = errors.New("validation failed")
	// ErrSignature covers a tracking-link signature mismatch.
	ErrSignature = errors.New("signature mismatch")
	// ErrWindowExpired covers a conversion attempted after the click's window.
	ErrWindowExpired = errors.New("conversion window expired")
	// ErrDuplicateConversion covers a conversion blocked by the duplicate policy.
	ErrDuplicateConversion = errors.New("duplicate conversion")
	// ErrDelivery covers a network, timeout, or non-2xx postback send failure.
	ErrDelivery = errors.New("postback delivery failed")
)
