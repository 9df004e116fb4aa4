package dukpt

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

var (
	// ErrInvalidKSNLength is returned when a KSN is not exactly 24 hex characters.
	ErrInvalidKSNLength = fmt.Errorf(
		"%w: ksn must be %d hex characters",
		errorcodes.ErrInvalidInputLength,
		KSNLength*2,
	)
	// ErrInvalidKeyLength is returned when a key does not match its declared key type.
	ErrInvalidKeyLength = fmt.Errorf(
		"%w: key length does not match key type",
		errorcodes.ErrInvalidKeyLength,
	)
	// ErrInvalidInitialKeyID is returned when an initial key ID is not 8 bytes.
	ErrInvalidInitialKeyID = fmt.Errorf(
		"%w: initial key id must be %d bytes",
		errorcodes.ErrInvalidInputLength,
		InitialKeyIDLength,
	)
	// ErrInvalidDerivationData is returned when derivation data is not one AES block.
	ErrInvalidDerivationData = fmt.Errorf(
		"%w: derivation data must be %d bytes",
		errorcodes.ErrInvalidInputLength,
		derivationDataLength,
	)
	// ErrCounterExhausted is returned by KSN.Next when no usable counter value is left.
	ErrCounterExhausted = fmt.Errorf("%w: no counter value with at most %d one bits left", errorcodes.ErrCounterExhausted, MaxWorkingKeys)

	errUnknownKeyType  = fmt.Errorf("%w: unknown key type", errorcodes.ErrMissingParameter)
	errUnknownKeyUsage = fmt.Errorf("%w: unknown key usage", errorcodes.ErrInvalidKeyUsage)
)
