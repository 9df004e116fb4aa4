package keywrap

import (
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

const (
	// UsageDUKPTInitialKey marks a record as a DUKPT initial key.
	UsageDUKPTInitialKey = "DUKPT_INITIAL_KEY"
	// DefaultWrappingKeyAlias names the key store's RSA key encryption key.
	DefaultWrappingKeyAlias = "kek"
)

// Record is a wrapped key ready for injection into a terminal key store.
// WrappedKey is base64 encoded when marshalled to JSON.
type Record struct {
	KeyAlias         string         `json:"keyAlias"`
	WrappedKey       []byte         `json:"wrappedKey"`
	KeyAlgorithm     string         `json:"keyAlgorithm"`
	KeyID            string         `json:"keyId"`
	WrappingKeyAlias string         `json:"wrappingKeyAlias"`
	WrappingMethod   WrappingMethod `json:"wrappingMethod"`
	KeyUsage         string         `json:"keyUsage"`
}

// InitialKeyRequest describes an initial key to derive and wrap.
type InitialKeyRequest struct {
	BDK              []byte
	KeyType          dukpt.KeyType
	InitialKeyID     []byte // 8 bytes; a random ID is generated when empty.
	KeyAlias         string // defaults to a random alias.
	WrappingKeyAlias string // defaults to DefaultWrappingKeyAlias.
	Method           WrappingMethod
}

// NewInitialKeyRecord derives the initial key for req from its BDK and wraps
// it under pub. The clear initial key never leaves this function.
func NewInitialKeyRecord(pub *rsa.PublicKey, req InitialKeyRequest) (Record, error) {
	if len(req.InitialKeyID) == 0 {
		req.InitialKeyID = NewInitialKeyID()
	}

	ik, err := dukpt.DeriveInitialKeyByBDK(req.BDK, req.KeyType, req.InitialKeyID)
	if err != nil {
		return Record{}, fmt.Errorf("derive initial key: %w", err)
	}
	defer clear(ik)

	return WrapInitialKey(pub, ik, req)
}

// WrapInitialKey wraps an initial key already derived for req.InitialKeyID.
// req.BDK is not used.
func WrapInitialKey(pub *rsa.PublicKey, ik []byte, req InitialKeyRequest) (Record, error) {
	if len(req.InitialKeyID) != dukpt.InitialKeyIDLength {
		return Record{}, dukpt.ErrInvalidInitialKeyID
	}

	wrapped, err := Wrap(pub, ik, req.Method)
	if err != nil {
		return Record{}, err
	}

	alias := req.KeyAlias
	if alias == "" {
		alias = "ik-" + uuid.NewString()
	}
	kekAlias := req.WrappingKeyAlias
	if kekAlias == "" {
		kekAlias = DefaultWrappingKeyAlias
	}

	return Record{
		KeyAlias:         alias,
		WrappedKey:       wrapped,
		KeyAlgorithm:     req.KeyType.String(),
		KeyID:            strings.ToUpper(hex.EncodeToString(req.InitialKeyID)),
		WrappingKeyAlias: kekAlias,
		WrappingMethod:   req.Method,
		KeyUsage:         UsageDUKPTInitialKey,
	}, nil
}

// NewInitialKeyID returns a random 8-byte initial key ID taken from a
// version 4 UUID.
func NewInitialKeyID() []byte {
	id := uuid.New()
	out := make([]byte, dukpt.InitialKeyIDLength)
	copy(out, id[:dukpt.InitialKeyIDLength])

	return out
}
