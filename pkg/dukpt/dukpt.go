// Package dukpt implements the ANSI X9.24-3-2017 AES DUKPT host derivation:
// base derivation key -> initial key -> intermediate derivation keys ->
// working key. All functions are pure; keys are fresh slices owned by the caller.
package dukpt

import (
	"crypto/aes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

const (
	derivationDataLength = aes.BlockSize
	derivationVersion    = 0x01
	counterHexLength     = 8
)

// DeriveKey runs the X9.24-3 key derivation function (6.3.1): one AES-ECB
// encryption of derivationData per 128 bits of output, with the key block
// counter (byte 1) set to 1, 2, ... The result is truncated to the key type length.
func DeriveKey(derivationKey []byte, keyType KeyType, derivationData []byte) ([]byte, error) {
	if !keyType.valid() {
		return nil, errUnknownKeyType
	}
	if len(derivationData) != derivationDataLength {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidDerivationData, len(derivationData))
	}
	if err := checkAESKey(derivationKey); err != nil {
		return nil, err
	}

	blocks := (keyType.Bits() + 127) / 128
	result := make([]byte, 0, blocks*aes.BlockSize)
	data := make([]byte, derivationDataLength)
	for i := 1; i <= blocks; i++ {
		copy(data, derivationData)
		data[1] = byte(i)

		out, err := cryptoutils.EncryptECB(data, derivationKey)
		if err != nil {
			return nil, fmt.Errorf("derive key block %d: %w", i, err)
		}
		result = append(result, out...)
	}

	return result[:keyType.Length()], nil
}

// CreateDerivationData builds the 16-byte derivation data block (6.3.2):
// version || key block counter || usage || algorithm || length || context.
// The context is the initial key ID when deriving an initial key, otherwise
// the rightmost 4 bytes of the initial key ID followed by the counter.
func CreateDerivationData(
	usage KeyUsage,
	keyType KeyType,
	initialKeyID []byte,
	counter uint32,
) ([]byte, error) {
	if !usage.valid() {
		return nil, errUnknownKeyUsage
	}
	if !keyType.valid() {
		return nil, errUnknownKeyType
	}
	if len(initialKeyID) != InitialKeyIDLength {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidInitialKeyID, len(initialKeyID))
	}

	data := make([]byte, derivationDataLength)
	data[0] = derivationVersion
	data[1] = 0x01
	binary.BigEndian.PutUint16(data[2:4], usage.indicator)
	binary.BigEndian.PutUint16(data[4:6], keyType.algorithm)
	binary.BigEndian.PutUint16(data[6:8], keyType.bits)

	if usage == KeyDerivationInitialKey {
		copy(data[8:], initialKeyID)
	} else {
		copy(data[8:12], initialKeyID[4:])
		binary.BigEndian.PutUint32(data[12:], counter)
	}

	return data, nil
}

// CreateDerivationDataHex is CreateDerivationData for callers holding the
// initial key ID and counter as hex. counterHex is left-padded with zeros to
// 8 characters and ignored for KeyDerivationInitialKey.
func CreateDerivationDataHex(
	usage KeyUsage,
	keyType KeyType,
	initialKeyIDHex string,
	counterHex string,
) ([]byte, error) {
	if len(initialKeyIDHex) != InitialKeyIDLength*2 {
		return nil, fmt.Errorf("%w (got %d hex characters)", ErrInvalidInitialKeyID, len(initialKeyIDHex))
	}
	ikid, err := hex.DecodeString(initialKeyIDHex)
	if err != nil {
		return nil, fmt.Errorf("%w: initial key id: %v", errorcodes.ErrDecodeFailure, err)
	}

	var counter uint32
	if usage != KeyDerivationInitialKey {
		if len(counterHex) > counterHexLength {
			return nil, fmt.Errorf(
				"%w: counter must be at most %d hex characters",
				errorcodes.ErrInvalidInputLength,
				counterHexLength,
			)
		}
		raw := make([]byte, 4)
		if _, err := hex.Decode(raw, []byte(strings.Repeat("0", counterHexLength-len(counterHex))+counterHex)); err != nil {
			return nil, fmt.Errorf("%w: counter: %v", errorcodes.ErrDecodeFailure, err)
		}
		counter = binary.BigEndian.Uint32(raw)
	}

	return CreateDerivationData(usage, keyType, ikid, counter)
}

// DeriveInitialKeyByBDK derives the initial DUKPT key loaded into a terminal
// from the base derivation key and the 8-byte initial key ID (6.4.1).
func DeriveInitialKeyByBDK(bdk []byte, keyType KeyType, initialKeyID []byte) ([]byte, error) {
	if err := checkKeyLength(bdk, keyType); err != nil {
		return nil, fmt.Errorf("bdk: %w", err)
	}
	data, err := CreateDerivationData(KeyDerivationInitialKey, keyType, initialKeyID, 0)
	if err != nil {
		return nil, err
	}

	return DeriveKey(bdk, keyType, data)
}

// DeriveWorkingKeyByInitialKey derives the working key for ksn from an
// initial key (6.4.3). Each one bit of the transaction counter, taken from the
// most significant down, adds one intermediate derivation key; the working key
// is then derived from the last intermediate key with the requested usage and type.
func DeriveWorkingKeyByInitialKey(
	initialKey []byte,
	deriveKeyType KeyType,
	workingUsage KeyUsage,
	workingKeyType KeyType,
	ksn KSN,
) ([]byte, error) {
	if err := checkKeyLength(initialKey, deriveKeyType); err != nil {
		return nil, fmt.Errorf("initial key: %w", err)
	}
	if !workingKeyType.valid() {
		return nil, errUnknownKeyType
	}
	if !workingUsage.valid() {
		return nil, errUnknownKeyUsage
	}

	initialKeyID := ksn.InitialKeyID()
	counter := ksn.Counter()

	derivationKey := initialKey
	var workingCounter uint32
	for mask := uint32(1) << 31; mask > 0; mask >>= 1 {
		if counter&mask == 0 {
			continue
		}
		workingCounter |= mask

		data, err := CreateDerivationData(KeyDerivation, deriveKeyType, initialKeyID, workingCounter)
		if err != nil {
			return nil, err
		}
		derivationKey, err = DeriveKey(derivationKey, deriveKeyType, data)
		if err != nil {
			return nil, fmt.Errorf("intermediate key %08X: %w", workingCounter, err)
		}
	}

	data, err := CreateDerivationData(workingUsage, workingKeyType, initialKeyID, counter)
	if err != nil {
		return nil, err
	}

	return DeriveKey(derivationKey, workingKeyType, data)
}

// DeriveWorkingKeyByBDK derives the initial key for the KSN's initial key ID
// and then the working key for the full KSN.
func DeriveWorkingKeyByBDK(
	bdk []byte,
	bdkKeyType KeyType,
	workingKeyType KeyType,
	workingUsage KeyUsage,
	ksn KSN,
) ([]byte, error) {
	initialKey, err := DeriveInitialKeyByBDK(bdk, bdkKeyType, ksn.InitialKeyID())
	if err != nil {
		return nil, err
	}

	return DeriveWorkingKeyByInitialKey(initialKey, bdkKeyType, workingUsage, workingKeyType, ksn)
}

func checkKeyLength(key []byte, keyType KeyType) error {
	if !keyType.valid() {
		return errUnknownKeyType
	}
	if len(key) != keyType.Length() {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidKeyLength, keyType, keyType.Length(), len(key))
	}

	return nil
}

func checkAESKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return fmt.Errorf("%w: aes key must be 16, 24 or 32 bytes, got %d", ErrInvalidKeyLength, len(key))
	}
}
