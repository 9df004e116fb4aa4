package pinblock

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
)

// encipherISO4 implements ISO 9564-1:2017 format 4: the PIN field is
// enciphered, XORed with the PAN field and enciphered again.
func encipherISO4(pinField, panField, pinKey []byte) ([]byte, error) {
	blockA, err := cryptoutils.EncryptECB(pinField, pinKey)
	if err != nil {
		return nil, fmt.Errorf("iso4 block a: %w", err)
	}
	blockB, err := cryptoutils.XOR(blockA, panField)
	if err != nil {
		return nil, err
	}
	epb, err := cryptoutils.EncryptECB(blockB, pinKey)
	if err != nil {
		return nil, fmt.Errorf("iso4 block b: %w", err)
	}

	return epb, nil
}

// DangerouslyDecryptISO4ToPIN reverses a format 4 enciphered PIN block and
// returns the clear PIN.
//
// This exposes a clear PIN outside any tamper-resistant boundary. It exists
// for test and demo verification only and must not be used to process live
// cardholder PINs.
func DangerouslyDecryptISO4ToPIN(pinKey, epb []byte, pan string) (string, error) {
	if err := checkPinKey(pinKey); err != nil {
		return "", err
	}
	if len(epb) != ISO4BlockLength {
		return "", fmt.Errorf("%w: iso4 needs %d bytes, got %d", ErrInvalidPinBlockLength, ISO4BlockLength, len(epb))
	}
	if pan == "" {
		return "", ErrMissingPan
	}
	panField, err := PreparePAN(pan, ISO4)
	if err != nil {
		return "", err
	}

	blockB, err := cryptoutils.DecryptECB(epb, pinKey)
	if err != nil {
		return "", fmt.Errorf("iso4 block b: %w", err)
	}
	blockA, err := cryptoutils.XOR(blockB, panField)
	if err != nil {
		return "", err
	}
	pinField, err := cryptoutils.DecryptECB(blockA, pinKey)
	if err != nil {
		return "", fmt.Errorf("iso4 block a: %w", err)
	}

	return parsePinField(cryptoutils.Raw2Str(pinField), ISO4)
}
