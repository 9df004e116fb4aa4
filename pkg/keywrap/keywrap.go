// Package keywrap wraps DUKPT initial keys under an RSA public key for
// injection into a terminal key store. Only the wrapping side lives here;
// the key store holding the private key performs the unwrap.
package keywrap

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// WrappingMethod selects the RSA encryption scheme used to wrap a key.
type WrappingMethod int

const (
	// RSA is RSAES-PKCS1-v1_5.
	RSA WrappingMethod = iota + 1
	// RSAOAEPSHA256 is RSAES-OAEP with SHA-256 and MGF1-SHA-256.
	RSAOAEPSHA256
)

var (
	ErrInvalidPublicKey = fmt.Errorf("%w: invalid rsa public key", errorcodes.ErrDecodeFailure)
	ErrMissingKey       = fmt.Errorf("%w: key to wrap is empty", errorcodes.ErrMissingParameter)
	ErrUnknownMethod    = fmt.Errorf("%w: unknown wrapping method", errorcodes.ErrMissingParameter)

	errNotRSA = errors.New("public key is not rsa")
)

func (m WrappingMethod) String() string {
	switch m {
	case RSA:
		return "RSA"
	case RSAOAEPSHA256:
		return "RSA_OAEP_SHA256"
	default:
		return fmt.Sprintf("WrappingMethod(%d)", int(m))
	}
}

// MarshalText encodes the method by name so records stay readable.
func (m WrappingMethod) MarshalText() ([]byte, error) {
	if m != RSA && m != RSAOAEPSHA256 {
		return nil, ErrUnknownMethod
	}

	return []byte(m.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (m *WrappingMethod) UnmarshalText(b []byte) error {
	parsed, err := ParseWrappingMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed

	return nil
}

// ParseWrappingMethod accepts "rsa", "pkcs1", "oaep" or "rsa_oaep_sha256" in any case.
func ParseWrappingMethod(s string) (WrappingMethod, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "RSA", "PKCS1":
		return RSA, nil
	case "OAEP", "RSA_OAEP_SHA256", "RSA_OAEP":
		return RSAOAEPSHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// ParsePublicKeyPEM parses an RSA SubjectPublicKeyInfo given either as a PEM
// "PUBLIC KEY" block or as bare base64 with the armour already stripped.
func ParsePublicKeyPEM(s string) (*rsa.PublicKey, error) {
	var der []byte
	if block, _ := pem.Decode([]byte(strings.TrimSpace(s))); block != nil {
		der = block.Bytes
	} else {
		stripped := strings.NewReplacer("\n", "", "\r", "", " ", "", "\t", "").Replace(s)
		raw, err := base64.StdEncoding.DecodeString(stripped)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		der = raw
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, errNotRSA)
	}

	return rsaPub, nil
}

// Wrap encrypts key under pub with the requested method.
func Wrap(pub *rsa.PublicKey, key []byte, method WrappingMethod) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: nil key", ErrInvalidPublicKey)
	}
	if len(key) == 0 {
		return nil, ErrMissingKey
	}

	var (
		wrapped []byte
		err     error
	)
	switch method {
	case RSA:
		wrapped, err = rsa.EncryptPKCS1v15(rand.Reader, pub, key)
	case RSAOAEPSHA256:
		wrapped, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s wrap: %v", errorcodes.ErrCipherFailure, method, err)
	}

	return wrapped, nil
}
