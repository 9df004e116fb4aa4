package cryptoutils

import (
	"crypto/aes"
	"fmt"
)

// KCVLength is the number of CMAC bytes kept as an AES key check value.
const KCVLength = 5

// KeyCheckValue computes the AES key check value: the leftmost five bytes of
// the AES-CMAC of a block of binary zeros under key.
func KeyCheckValue(key []byte) ([]byte, error) {
	mac, err := CMAC(key, make([]byte, aes.BlockSize))
	if err != nil {
		return nil, fmt.Errorf("failed to compute CMAC for check value: %w", err)
	}

	return mac[:KCVLength], nil
}

// KeyCheckValueHex is KeyCheckValue encoded as uppercase hex.
func KeyCheckValueHex(key []byte) (string, error) {
	kcv, err := KeyCheckValue(key)
	if err != nil {
		return "", err
	}

	return Raw2Str(kcv), nil
}
