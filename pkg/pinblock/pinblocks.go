// Package pinblock implements ISO 9564-1 PIN block formats 0 to 4.
//
// Formats 0 to 3 produce a clear 8-byte block that the caller enciphers
// separately. Format 4 is enciphered here under a 16-byte AES PIN key.
package pinblock

import (
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// Format is an ISO 9564-1 PIN block format. The zero value is invalid.
type Format struct {
	name   string
	nibble byte
	thales string
}

var (
	ISO0 = Format{name: "ISO0", nibble: 0, thales: "01"} // Thales 01, ANSI X9.8.
	ISO1 = Format{name: "ISO1", nibble: 1, thales: "05"} // Thales 05.
	ISO2 = Format{name: "ISO2", nibble: 2, thales: "34"} // Thales 34, chip offline PIN.
	ISO3 = Format{name: "ISO3", nibble: 3, thales: "47"} // Thales 47.
	ISO4 = Format{name: "ISO4", nibble: 4, thales: "48"} // Thales 48, AES.
)

var formats = []Format{ISO0, ISO1, ISO2, ISO3, ISO4}

const (
	// MinPinLength and MaxPinLength bound the PIN digits a block can carry.
	MinPinLength = 4
	MaxPinLength = 12
	// MinPanLength and MaxPanLength bound the primary account number.
	MinPanLength = 12
	MaxPanLength = 19

	// BlockLength is the size of a format 0 to 3 PIN block in bytes.
	BlockLength = 8
	// ISO4BlockLength is the size of a format 4 PIN block in bytes.
	ISO4BlockLength = 16
	// PinKeyLength is the AES-128 PIN key size required by format 4.
	PinKeyLength = 16
)

var (
	ErrInvalidPinLength = fmt.Errorf(
		"%w: pin must be %d to %d digits",
		errorcodes.ErrInvalidInputLength,
		MinPinLength,
		MaxPinLength,
	)
	ErrInvalidPanLength = fmt.Errorf(
		"%w: pan must be %d to %d digits",
		errorcodes.ErrInvalidInputLength,
		MinPanLength,
		MaxPanLength,
	)
	ErrInvalidPinBlockLength = fmt.Errorf("%w: invalid pin block length", errorcodes.ErrInvalidInputLength)
	ErrMissingPan            = fmt.Errorf("%w: pan is required for this format", errorcodes.ErrMissingParameter)
	ErrMissingPinKey         = fmt.Errorf("%w: pin key is required for format 4", errorcodes.ErrMissingParameter)
	ErrInvalidKeyLength      = fmt.Errorf("%w: pin key must be %d bytes", errorcodes.ErrInvalidKeyLength, PinKeyLength)
	ErrInvalidFormat         = fmt.Errorf("%w: unsupported pin block format", errorcodes.ErrInvalidFormat)
	ErrPinBlockDecoding      = fmt.Errorf("%w: pin block decoding failed", errorcodes.ErrInvalidPinBlock)

	errNonDigitPin = fmt.Errorf("%w: pin contains non-digit characters", errorcodes.ErrDecodeFailure)
	errNonDigitPan = fmt.Errorf("%w: pan contains non-digit characters", errorcodes.ErrDecodeFailure)
)

func (f Format) String() string { return f.name }

// Nibble returns the format tag stored in the first nibble of the clear PIN field.
func (f Format) Nibble() byte { return f.nibble }

// ThalesCode returns the two-digit Thales PIN block format code.
func (f Format) ThalesCode() string { return f.thales }

// RequiresPan reports whether the format binds the block to the account number.
func (f Format) RequiresPan() bool {
	return f == ISO0 || f == ISO3 || f == ISO4
}

// BlockLength returns the PIN block size in bytes.
func (f Format) BlockLength() int {
	if f == ISO4 {
		return ISO4BlockLength
	}

	return BlockLength
}

func (f Format) valid() bool { return f.name != "" }

// SupportedFormats returns every format this package encodes.
func SupportedFormats() []Format {
	return append([]Format(nil), formats...)
}

// ParseFormat accepts a format number ("0".."4"), a name ("iso0", "ISO-4")
// or a Thales format code ("01", "05", "34", "47", "48").
func ParseFormat(s string) (Format, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	for _, f := range formats {
		if norm == f.name || norm == f.thales || norm == string(rune('0'+f.nibble)) {
			return f, nil
		}
	}

	return Format{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Encode builds a PIN block. pan is required for formats 0, 3 and 4 and
// pinKey for format 4. Formats 1 and 2 do not use the PAN but still reject
// a malformed one when given.
func Encode(pin string, format Format, pan string, pinKey []byte) ([]byte, error) {
	if !format.valid() {
		return nil, ErrInvalidFormat
	}
	if format.RequiresPan() && pan == "" {
		return nil, ErrMissingPan
	}
	if format == ISO4 {
		if err := checkPinKey(pinKey); err != nil {
			return nil, err
		}
	}

	pinField, err := PreparePIN(pin, format)
	if err != nil {
		return nil, err
	}
	panField, err := preparePANIfSet(pan, format)
	if err != nil {
		return nil, err
	}
	if !format.RequiresPan() {
		return pinField, nil
	}

	if format == ISO4 {
		return encipherISO4(pinField, panField, pinKey)
	}

	return cryptoutils.XOR(pinField, panField)
}

// GetPinBlock is Encode returning an uppercase hex string.
func GetPinBlock(pin string, format Format, pan string, pinKey []byte) (string, error) {
	block, err := Encode(pin, format, pan, pinKey)
	if err != nil {
		return "", err
	}

	return cryptoutils.Raw2Str(block), nil
}

// Decode recovers the PIN from a clear format 0 to 3 block. Format 4 blocks
// are always enciphered; see DangerouslyDecryptISO4ToPIN.
func Decode(block []byte, format Format, pan string) (string, error) {
	if !format.valid() || format == ISO4 {
		return "", ErrInvalidFormat
	}
	if len(block) != BlockLength {
		return "", fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidPinBlockLength, format, BlockLength, len(block))
	}

	if format.RequiresPan() && pan == "" {
		return "", ErrMissingPan
	}
	panField, err := preparePANIfSet(pan, format)
	if err != nil {
		return "", err
	}

	pinField := block
	if format.RequiresPan() {
		if pinField, err = cryptoutils.XOR(block, panField); err != nil {
			return "", err
		}
	}

	return parsePinField(cryptoutils.Raw2Str(pinField), format)
}

// DecodeHex is Decode for a hex encoded block.
func DecodeHex(blockHex string, format Format, pan string) (string, error) {
	block, err := cryptoutils.Str2Raw(blockHex)
	if err != nil {
		return "", err
	}

	return Decode(block, format, pan)
}

func preparePANIfSet(pan string, format Format) ([]byte, error) {
	if pan == "" {
		return nil, nil
	}

	return PreparePAN(pan, format)
}

func checkPinKey(pinKey []byte) error {
	if len(pinKey) == 0 {
		return ErrMissingPinKey
	}
	if len(pinKey) != PinKeyLength {
		return fmt.Errorf("%w (got %d)", ErrInvalidKeyLength, len(pinKey))
	}

	return nil
}
