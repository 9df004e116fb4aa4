package message

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// Field sizes in characters.
const (
	KeysetSize       = 1
	UsageSize        = 4
	KSNSize          = 24
	InitialKeyIDSize = 16
	IVSize           = 32
	LengthSize       = 2
	DataLengthSize   = 4
	ISO4BlockSize    = 32
	FormatSize       = 1
)

// Field names.
const (
	FieldKeyset       = "Keyset"
	FieldUsage        = "Key Usage"
	FieldKSN          = "KSN"
	FieldInitialKeyID = "Initial Key ID"
	FieldIV           = "IV"
	FieldData         = "Encrypted Data"
	FieldPinBlock     = "PIN Block"
	FieldPAN          = "Account Number"
	FieldFormat       = "Format"
	FieldPIN          = "PIN"
)

var (
	// ErrShortMessage is returned when a payload ends before a mandatory field.
	ErrShortMessage = fmt.Errorf("%w: message too short", errorcodes.ErrInvalidInputLength)
	// ErrInvalidLength is returned when an embedded length field is not decimal.
	ErrInvalidLength = fmt.Errorf("%w: invalid length field", errorcodes.ErrDecodeFailure)
	// ErrTrailingData is returned when a payload carries bytes after its last field.
	ErrTrailingData = fmt.Errorf("%w: unexpected trailing data", errorcodes.ErrInvalidInputLength)

	errNegativeLength = errors.New("negative length")
)

type cursor struct {
	data []byte
	err  error
}

func (c *cursor) take(name string, n int) []byte {
	if c.err != nil {
		return nil
	}
	if len(c.data) < n {
		c.err = fmt.Errorf("%w: %s needs %d characters, %d left", ErrShortMessage, name, n, len(c.data))
		return nil
	}
	v := c.data[:n]
	c.data = c.data[n:]

	return v
}

func (c *cursor) length(name string, size int) int {
	raw := c.take(name+" length", size)
	if c.err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err == nil && n < 0 {
		err = errNegativeLength
	}
	if err != nil {
		c.err = fmt.Errorf("%w: %s: %v", ErrInvalidLength, name, err)
		return 0
	}

	return n
}

func (c *cursor) done() error {
	if c.err == nil && len(c.data) > 0 {
		c.err = fmt.Errorf("%w: %d characters", ErrTrailingData, len(c.data))
	}

	return c.err
}

// NewNC parses an NC diagnostics command. It carries no fields.
func NewNC(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("NC", "Perform diagnostics")
	c := &cursor{data: data}

	return m, c.done()
}

// NewI0 parses an I0 Derive Initial Key command: keyset + initial key ID.
func NewI0(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("I0", "Derive DUKPT initial key")
	c := &cursor{data: data}
	m.Fields[FieldKeyset] = c.take(FieldKeyset, KeysetSize)
	m.Fields[FieldInitialKeyID] = c.take(FieldInitialKeyID, InitialKeyIDSize)

	return m, c.done()
}

// NewK0 parses a K0 Working Key Check command: keyset + usage + KSN.
func NewK0(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("K0", "Working key check value")
	c := &cursor{data: data}
	m.Fields[FieldKeyset] = c.take(FieldKeyset, KeysetSize)
	m.Fields[FieldUsage] = c.take(FieldUsage, UsageSize)
	m.Fields[FieldKSN] = c.take(FieldKSN, KSNSize)

	return m, c.done()
}

// NewT0 parses a T0 Decrypt Track 2 command: KSN + IV + data length (4) + data.
func NewT0(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("T0", "Decrypt track 2 data")
	c := &cursor{data: data}
	m.Fields[FieldKSN] = c.take(FieldKSN, KSNSize)
	m.Fields[FieldIV] = c.take(FieldIV, IVSize)
	n := c.length(FieldData, DataLengthSize)
	m.Fields[FieldData] = c.take(FieldData, n)

	return m, c.done()
}

// NewP0 parses a P0 Decrypt Format 4 PIN Block command: KSN + EPB + PAN length (2) + PAN.
func NewP0(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("P0", "Decrypt ISO format 4 PIN block")
	c := &cursor{data: data}
	m.Fields[FieldKSN] = c.take(FieldKSN, KSNSize)
	m.Fields[FieldPinBlock] = c.take(FieldPinBlock, ISO4BlockSize)
	n := c.length(FieldPAN, LengthSize)
	m.Fields[FieldPAN] = c.take(FieldPAN, n)

	return m, c.done()
}

// NewP2 parses a P2 Build PIN Block command: format + PIN length (2) + PIN +
// PAN length (2) + PAN, followed by a KSN for format 4.
func NewP2(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("P2", "Build PIN block")
	c := &cursor{data: data}
	format := c.take(FieldFormat, FormatSize)
	m.Fields[FieldFormat] = format
	n := c.length(FieldPIN, LengthSize)
	m.SetMasked(FieldPIN, c.take(FieldPIN, n))
	n = c.length(FieldPAN, LengthSize)
	m.Fields[FieldPAN] = c.take(FieldPAN, n)
	if c.err == nil && string(format) == "4" {
		m.Fields[FieldKSN] = c.take(FieldKSN, KSNSize)
	}

	return m, c.done()
}

// NewN0 parses an N0 Next KSN command: KSN.
func NewN0(data []byte) (*BaseMessage, error) {
	m := NewBaseMessage("N0", "Next key serial number")
	c := &cursor{data: data}
	m.Fields[FieldKSN] = c.take(FieldKSN, KSNSize)

	return m, c.done()
}
