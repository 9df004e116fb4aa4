package dukpt

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

const (
	// KSNLength is the AES DUKPT key serial number length in bytes.
	KSNLength = 12
	// InitialKeyIDLength is the length of the initial key ID prefix of a KSN.
	InitialKeyIDLength = 8
	// MaxWorkingKeys is the highest number of one bits a terminal counter may carry.
	MaxWorkingKeys = 16
	// LegacyCounterBits is the width of the transaction counter in the TDES DUKPT KSN layout.
	LegacyCounterBits = 21
)

// KSN is an AES DUKPT key serial number: an 8-byte initial key ID followed by
// a 4-byte big-endian transaction counter.
type KSN [KSNLength]byte

// ParseKSN decodes a KSN from exactly 24 hex characters.
func ParseKSN(s string) (KSN, error) {
	var k KSN
	if len(s) != KSNLength*2 {
		return k, fmt.Errorf("%w (got %d)", ErrInvalidKSNLength, len(s))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return k, fmt.Errorf("%w: ksn: %v", errorcodes.ErrDecodeFailure, err)
	}

	return k, nil
}

// NewKSN builds a KSN from an 8-byte initial key ID and a counter.
func NewKSN(initialKeyID []byte, counter uint32) (KSN, error) {
	var k KSN
	if len(initialKeyID) != InitialKeyIDLength {
		return k, fmt.Errorf("%w (got %d)", ErrInvalidInitialKeyID, len(initialKeyID))
	}
	copy(k[:InitialKeyIDLength], initialKeyID)
	binary.BigEndian.PutUint32(k[InitialKeyIDLength:], counter)

	return k, nil
}

// InitialKeyID returns a copy of the first 8 bytes of the KSN.
func (k KSN) InitialKeyID() []byte {
	id := make([]byte, InitialKeyIDLength)
	copy(id, k[:InitialKeyIDLength])

	return id
}

// Counter returns the transaction counter.
func (k KSN) Counter() uint32 {
	return binary.BigEndian.Uint32(k[InitialKeyIDLength:])
}

// WithCounter returns a copy of the KSN carrying counter c.
func (k KSN) WithCounter(c uint32) KSN {
	binary.BigEndian.PutUint32(k[InitialKeyIDLength:], c)

	return k
}

// String returns the KSN as 24 uppercase hex characters.
func (k KSN) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// Next returns the KSN a terminal uses for its following transaction: the
// next counter value with at most MaxWorkingKeys one bits. A counter already
// holding MaxWorkingKeys one bits advances by its lowest set bit.
func (k KSN) Next() (KSN, error) {
	c := k.Counter()
	next := c + 1
	if bits.OnesCount32(c) >= MaxWorkingKeys {
		next = c + (c & -c)
	}
	for next > c && bits.OnesCount32(next) > MaxWorkingKeys {
		next += next & -next
	}
	if next <= c {
		return k, ErrCounterExhausted
	}

	return k.WithCounter(next), nil
}

// Derivations returns how many intermediate derivation keys a host computes
// for this KSN before deriving the working key.
func (k KSN) Derivations() int {
	return bits.OnesCount32(k.Counter())
}

// ExceedsLegacyCounter reports whether the counter uses bits above the
// 21-bit TDES DUKPT counter range. Such counters are derived with the full
// 32-bit walk but may not interoperate with peers that assume the legacy layout.
func (k KSN) ExceedsLegacyCounter() bool {
	return k.Counter()>>LegacyCounterBits != 0
}
