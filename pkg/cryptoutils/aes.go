package cryptoutils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// Mode selects the AES mode of operation.
type Mode int

// Padding selects how plaintext is aligned to the AES block size.
type Padding int

const (
	ECB Mode = iota // Electronic codebook.
	CBC             // Cipher block chaining, requires a 16-byte IV.
)

const (
	NoPadding    Padding = iota // Data must already be block aligned.
	PKCS5Padding                // PKCS#5/PKCS#7 on a 16-byte block.
)

var (
	// ErrInvalidBlockLength is returned when unpadded data is not a multiple of the block size.
	ErrInvalidBlockLength = fmt.Errorf(
		"%w: data length is not a multiple of the aes block size",
		errorcodes.ErrInvalidInputLength,
	)
	errInvalidIV      = errors.New("cbc mode requires a 16-byte iv")
	errInvalidPadding = errors.New("invalid pkcs5 padding")
	errUnknownMode    = errors.New("unsupported cipher mode")
	errUnknownPadding = errors.New("unsupported padding mode")
)

func (m Mode) String() string {
	switch m {
	case ECB:
		return "ECB"
	case CBC:
		return "CBC"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (p Padding) String() string {
	switch p {
	case NoPadding:
		return "NoPadding"
	case PKCS5Padding:
		return "PKCS5Padding"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// Encrypt enciphers data under an AES key. iv is only consulted in CBC mode.
func Encrypt(data, key []byte, mode Mode, padding Padding, iv []byte) ([]byte, error) {
	block, err := newAESCipher(key)
	if err != nil {
		return nil, err
	}

	switch padding {
	case NoPadding:
		if len(data)%aes.BlockSize != 0 {
			return nil, ErrInvalidBlockLength
		}
	case PKCS5Padding:
		data = padPKCS5(data, aes.BlockSize)
	default:
		return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, errUnknownPadding)
	}

	bm, err := blockMode(block, mode, iv, true)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	bm.CryptBlocks(out, data)

	return out, nil
}

// Decrypt deciphers data under an AES key, removing padding when requested.
func Decrypt(data, key []byte, mode Mode, padding Padding, iv []byte) ([]byte, error) {
	block, err := newAESCipher(key)
	if err != nil {
		return nil, err
	}

	if len(data)%aes.BlockSize != 0 {
		return nil, ErrInvalidBlockLength
	}
	if padding != NoPadding && padding != PKCS5Padding {
		return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, errUnknownPadding)
	}

	bm, err := blockMode(block, mode, iv, false)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	bm.CryptBlocks(out, data)

	if padding == PKCS5Padding {
		return unpadPKCS5(out, aes.BlockSize)
	}

	return out, nil
}

// EncryptECB enciphers block-aligned data in ECB mode without padding.
func EncryptECB(data, key []byte) ([]byte, error) {
	return Encrypt(data, key, ECB, NoPadding, nil)
}

// DecryptECB deciphers block-aligned data in ECB mode without padding.
func DecryptECB(data, key []byte) ([]byte, error) {
	return Decrypt(data, key, ECB, NoPadding, nil)
}

func newAESCipher(key []byte) (cipher.Block, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, err)
	}

	return block, nil
}

func blockMode(block cipher.Block, mode Mode, iv []byte, encrypt bool) (cipher.BlockMode, error) {
	switch mode {
	case ECB:
		if encrypt {
			return NewECBEncrypter(block), nil
		}

		return NewECBDecrypter(block), nil
	case CBC:
		if len(iv) != aes.BlockSize {
			return nil, fmt.Errorf("%w: %v (got %d bytes)", errorcodes.ErrCipherFailure, errInvalidIV, len(iv))
		}
		if encrypt {
			return cipher.NewCBCEncrypter(block, iv), nil
		}

		return cipher.NewCBCDecrypter(block, iv), nil
	default:
		return nil, fmt.Errorf("%w: %v %s", errorcodes.ErrCipherFailure, errUnknownMode, mode)
	}
}

// padPKCS5 appends n bytes of value n so the result is a multiple of blockSize.
// Block-aligned input gains a full block of padding.
func padPKCS5(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)

	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpadPKCS5(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, errInvalidPadding)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, errInvalidPadding)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: %v", errorcodes.ErrCipherFailure, errInvalidPadding)
		}
	}

	return data[:len(data)-n], nil
}
