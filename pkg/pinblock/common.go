package pinblock

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePinField validates a clear PIN field in uppercase hex and returns the PIN.
func parsePinField(field string, format Format) (string, error) {
	want := 2 * BlockLength
	if format == ISO4 {
		want = 2 * ISO4BlockLength
	}
	if len(field) != want {
		return "", fmt.Errorf("%w: %s field must be %d hex characters", ErrInvalidPinBlockLength, format, want)
	}

	if field[0] != '0'+format.nibble {
		return "", fmt.Errorf(
			"%w: %s block has invalid format prefix %q",
			ErrPinBlockDecoding,
			format,
			field[0],
		)
	}

	pinLen, err := strconv.ParseUint(field[1:2], 16, 8)
	if err != nil || pinLen < MinPinLength || pinLen > MaxPinLength {
		return "", fmt.Errorf("%w: %s block has invalid pin length", ErrPinBlockDecoding, format)
	}

	end := 2 + int(pinLen)
	pin := field[2:end]
	if !isDigits(pin) {
		return "", fmt.Errorf("%w: %s block contains non-numeric pin characters", ErrPinBlockDecoding, format)
	}

	// Fill of the first 8 bytes; the second half of a format 4 field is random.
	fill := field[end:16]
	var allowed string
	switch format {
	case ISO0, ISO2:
		allowed = "F"
	case ISO4:
		allowed = string(iso4FillDigit)
	default:
		allowed = "0123456789ABCDEF"
	}
	for _, r := range fill {
		if !strings.ContainsRune(allowed, r) {
			return "", fmt.Errorf("%w: %s block has invalid fill %q", ErrPinBlockDecoding, format, r)
		}
	}

	return pin, nil
}
