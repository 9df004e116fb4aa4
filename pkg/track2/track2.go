// Package track2 decrypts and parses EMV track 2 equivalent data (tag 57)
// delivered by a terminal under a DUKPT data working key.
package track2

import (
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// IVLength is the size of the CBC initialization vector sent with the ciphertext.
const IVLength = 16

var (
	ErrInvalidIV     = fmt.Errorf("%w: iv must be %d bytes", errorcodes.ErrInvalidInputLength, IVLength)
	ErrNoSeparator   = fmt.Errorf("%w: track 2 has no field separator", errorcodes.ErrDecodeFailure)
	ErrEmptyPayload  = fmt.Errorf("%w: ciphertext is empty", errorcodes.ErrMissingParameter)
	errInvalidPANLen = fmt.Errorf("%w: track 2 pan must be 12 to 19 digits", errorcodes.ErrInvalidInputLength)
)

// Data is decrypted track 2 data in its packed nibble form.
type Data []byte

// Decrypt deciphers AES-CBC-PKCS5 track 2 ciphertext under a data working key.
func Decrypt(workingKey, iv, ciphertext []byte) (Data, error) {
	if len(iv) != IVLength {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidIV, len(iv))
	}
	if len(ciphertext) == 0 {
		return nil, ErrEmptyPayload
	}

	plain, err := cryptoutils.Decrypt(ciphertext, workingKey, cryptoutils.CBC, cryptoutils.PKCS5Padding, iv)
	if err != nil {
		return nil, fmt.Errorf("track 2: %w", err)
	}

	return Data(plain), nil
}

// DecryptWithBDK derives the DataBoth working key for ksn from bdk and
// deciphers the track 2 payload under it.
func DecryptWithBDK(
	d dukpt.Deriver,
	bdk []byte,
	bdkKeyType dukpt.KeyType,
	workingKeyType dukpt.KeyType,
	ksn dukpt.KSN,
	iv []byte,
	ciphertext []byte,
) (Data, error) {
	key, err := d.DeriveWorkingKeyByBDK(bdk, bdkKeyType, workingKeyType, dukpt.DataBoth, ksn)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	return Decrypt(key, iv, ciphertext)
}

// String returns the track as lowercase hex, the separator shown as 'd'.
func (t Data) String() string {
	return strings.ToLower(cryptoutils.Raw2Str(t))
}

// PAN returns the primary account number: every nibble before the 'D' separator.
func (t Data) PAN() (string, error) {
	s := t.String()
	idx := strings.IndexByte(s, 'd')
	if idx < 0 {
		return "", ErrNoSeparator
	}
	pan := s[:idx]
	if len(pan) < 12 || len(pan) > 19 {
		return "", fmt.Errorf("%w (got %d)", errInvalidPANLen, len(pan))
	}

	return pan, nil
}

// Expiry returns the YYMM expiration date following the separator, when present.
func (t Data) Expiry() (string, bool) {
	s := t.String()
	idx := strings.IndexByte(s, 'd')
	if idx < 0 || len(s) < idx+5 {
		return "", false
	}

	return s[idx+1 : idx+5], true
}
