package dukpt

import (
	"fmt"
	"strings"
)

// KeyType is an AES key type as encoded in X9.24-3 derivation data (Table 2).
// The zero value is invalid; use AES128, AES192 or AES256.
type KeyType struct {
	name      string
	algorithm uint16
	bits      uint16
}

// KeyUsage is a key usage indicator as encoded in X9.24-3 derivation data (Table 3).
// The zero value is invalid; use one of the package-level usages.
type KeyUsage struct {
	name      string
	indicator uint16
}

var (
	AES128 = KeyType{name: "AES128", algorithm: 0x0002, bits: 0x0080}
	AES192 = KeyType{name: "AES192", algorithm: 0x0003, bits: 0x00C0}
	AES256 = KeyType{name: "AES256", algorithm: 0x0004, bits: 0x0100}
)

var (
	KeyEncryptionKey        = KeyUsage{name: "KeyEncryptionKey", indicator: 0x0002}
	PinEncryption           = KeyUsage{name: "PinEncryption", indicator: 0x1000}
	MacGenerate             = KeyUsage{name: "MacGenerate", indicator: 0x2000}
	MacVerify               = KeyUsage{name: "MacVerify", indicator: 0x2001}
	MacBoth                 = KeyUsage{name: "MacBoth", indicator: 0x2002}
	DataEncrypt             = KeyUsage{name: "DataEncrypt", indicator: 0x3000}
	DataDecrypt             = KeyUsage{name: "DataDecrypt", indicator: 0x3001}
	DataBoth                = KeyUsage{name: "DataBoth", indicator: 0x3002}
	KeyDerivation           = KeyUsage{name: "KeyDerivation", indicator: 0x8000}
	KeyDerivationInitialKey = KeyUsage{name: "KeyDerivationInitialKey", indicator: 0x8001}
)

var (
	keyTypes  = []KeyType{AES128, AES192, AES256}
	keyUsages = []KeyUsage{
		KeyEncryptionKey,
		PinEncryption,
		MacGenerate,
		MacVerify,
		MacBoth,
		DataEncrypt,
		DataDecrypt,
		DataBoth,
		KeyDerivation,
		KeyDerivationInitialKey,
	}
)

// KeyTypes returns all supported key types.
func KeyTypes() []KeyType {
	return append([]KeyType(nil), keyTypes...)
}

// KeyUsages returns all supported key usages.
func KeyUsages() []KeyUsage {
	return append([]KeyUsage(nil), keyUsages...)
}

// AlgorithmIndicator returns the 2-byte algorithm indicator.
func (k KeyType) AlgorithmIndicator() uint16 { return k.algorithm }

// Bits returns the key length in bits.
func (k KeyType) Bits() int { return int(k.bits) }

// Length returns the key length in bytes.
func (k KeyType) Length() int { return int(k.bits) / 8 }

func (k KeyType) String() string { return k.name }

func (k KeyType) valid() bool { return k.bits != 0 }

// Indicator returns the 2-byte usage indicator.
func (u KeyUsage) Indicator() uint16 { return u.indicator }

func (u KeyUsage) String() string { return u.name }

func (u KeyUsage) valid() bool { return u.name != "" }

// ParseKeyType accepts a key type name ("AES128", "aes-256") or its
// algorithm indicator in hex ("0002").
func ParseKeyType(s string) (KeyType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for _, kt := range keyTypes {
		if norm == kt.name || norm == fmt.Sprintf("%04X", kt.algorithm) {
			return kt, nil
		}
	}

	return KeyType{}, fmt.Errorf("%w: %q", errUnknownKeyType, s)
}

// ParseKeyUsage accepts a usage name (case-insensitive) or its 4 hex digit indicator.
func ParseKeyUsage(s string) (KeyUsage, error) {
	norm := strings.TrimSpace(s)
	for _, ku := range keyUsages {
		if strings.EqualFold(norm, ku.name) || strings.EqualFold(norm, fmt.Sprintf("%04X", ku.indicator)) {
			return ku, nil
		}
	}

	return KeyUsage{}, fmt.Errorf("%w: %q", errUnknownKeyUsage, s)
}
