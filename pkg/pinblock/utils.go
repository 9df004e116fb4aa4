package pinblock

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	iso4FillDigit = 'A'
	panFieldZeros = "0000"
)

// PreparePIN builds the clear PIN field: format nibble, PIN length nibble,
// the PIN digits and the format's fill. Formats 0 to 3 yield 8 bytes and
// format 4 yields 16 bytes, the second half random.
func PreparePIN(pin string, format Format) ([]byte, error) {
	if !format.valid() {
		return nil, ErrInvalidFormat
	}
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPinLength, len(pin))
	}
	if !isDigits(pin) {
		return nil, errNonDigitPin
	}

	field := fmt.Sprintf("%X%X%s", format.nibble, len(pin), pin)
	switch format {
	case ISO0, ISO2:
		field = padRight(field, 'F', 16)
	case ISO1, ISO3:
		field = (field + randomHex(8))[:16]
	case ISO4:
		field = (padRight(field, iso4FillDigit, 16) + randomHex(8))[:32]
	}

	return hex.DecodeString(field)
}

// PreparePAN builds the account number field. Formats 0 to 3 use "0000"
// followed by the rightmost 12 digits excluding the check digit, left padded
// with zeros when the PAN is shorter. Format 4 uses the PAN length minus 12,
// the full PAN and zero fill to 16 bytes.
func PreparePAN(pan string, format Format) ([]byte, error) {
	if !format.valid() {
		return nil, ErrInvalidFormat
	}
	if len(pan) < MinPanLength || len(pan) > MaxPanLength {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPanLength, len(pan))
	}
	if !isDigits(pan) {
		return nil, errNonDigitPan
	}

	var field string
	if format == ISO4 {
		field = padRight(fmt.Sprintf("%X%s", len(pan)-MinPanLength, pan), '0', 32)
	} else {
		field = panFieldZeros + get12PanDigits(pan)
	}

	return hex.DecodeString(field)
}

// get12PanDigits returns the rightmost 12 digits of pan excluding the check digit.
func get12PanDigits(pan string) string {
	body := pan[:len(pan)-1]
	if len(body) < 12 {
		return strings.Repeat("0", 12-len(body)) + body
	}

	return body[len(body)-12:]
}

func padRight(s string, c byte, n int) string {
	if len(s) >= n {
		return s
	}

	return s + strings.Repeat(string(c), n-len(s))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// randomBytes panics when the system random source fails; a PIN block
// must never be built from predictable fill.
func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("pinblock: secure random source unavailable: %v", err))
	}

	return b
}

// randomHex returns n random bytes as uppercase hex.
func randomHex(n int) string {
	return strings.ToUpper(hex.EncodeToString(randomBytes(n)))
}
