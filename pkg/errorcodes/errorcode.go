// Package errorcodes defines the error taxonomy shared by the DUKPT, PIN block
// and key transport packages. HSMError holds the two-character code reported
// by the demo host and a human-readable description.
package errorcodes

import "errors"

// Failure classes. Packages wrap these with fmt.Errorf("%w: ...") so callers
// can match either the specific sentinel or the class with errors.Is.
var (
	ErrInvalidInputLength = HSMError{"80", "Data length error"}
	ErrMissingParameter   = HSMError{"15", "Invalid input data (required parameter missing)"}
	ErrInvalidKeyLength   = HSMError{"27", "Incompatible key length"}
	ErrCipherFailure      = HSMError{"42", "Cipher failure"}
	ErrDecodeFailure      = HSMError{
		"15",
		"Invalid input data (invalid format, invalid characters, or not enough data provided)",
	}
)

// Host protocol codes.
var (
	Err00                  = HSMError{"00", "No error"}
	ErrVerificationFailure = HSMError{"01", "Verification failure"}
	ErrInvalidPinBlock     = HSMError{"20", "PIN block does not contain valid values"}
	ErrInvalidAccount      = HSMError{"22", "Invalid account number"}
	ErrInvalidFormat       = HSMError{"23", "Invalid PIN block format code"}
	ErrInvalidPinLength    = HSMError{"24", "PIN is fewer than 4 or more than 12 digits in length"}
	ErrInvalidKeyUsage     = HSMError{"A6", "Invalid key usage"}
	ErrCounterExhausted    = HSMError{"A8", "Key serial number counter exhausted"}
	ErrUnknownCommand      = HSMError{"68", "Command has been disabled"}
)

// HSMError represents an error with its code and description.
type HSMError struct {
	Code        string // two-character error code
	Description string // human-readable description
}

// Error implements the Go error interface: "<Code>: <Description>".
func (e HSMError) Error() string {
	return e.Code + ": " + e.Description
}

// CodeOnly returns only the error code (e.g., "68"), for embedding in host responses.
func (e HSMError) CodeOnly() string {
	return e.Code
}

// From returns the first HSMError found in err's chain, or fallback when the
// chain carries none.
func From(err error, fallback HSMError) HSMError {
	var he HSMError
	if errors.As(err, &he) {
		return he
	}

	return fallback
}
