package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

func TestParsers(t *testing.T) {
	t.Parallel()

	const ksn = "123456789012345600000001"

	m, err := NewK0([]byte("P1000" + ksn))
	require.NoError(t, err)
	assert.Equal(t, "K0", m.CommandCode())
	assert.Equal(t, "P", string(m.Get(FieldKeyset)))
	assert.Equal(t, "1000", string(m.Get(FieldUsage)))
	assert.Equal(t, ksn, string(m.Get(FieldKSN)))

	m, err = NewI0([]byte("C1234567890123456"))
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456", string(m.Get(FieldInitialKeyID)))

	m, err = NewT0([]byte(ksn + "000102030405060708090A0B0C0D0E0F" + "0032" + "00112233445566778899AABBCCDDEEFF"))
	require.NoError(t, err)
	assert.Len(t, m.Get(FieldData), 32)

	m, err = NewP0([]byte(ksn + "00112233445566778899AABBCCDDEEFF" + "16" + "4321987654321098"))
	require.NoError(t, err)
	assert.Equal(t, "4321987654321098", string(m.Get(FieldPAN)))

	m, err = NewP2([]byte("0" + "06123456" + "17" + "43219876543210987"))
	require.NoError(t, err)
	assert.Equal(t, "123456", string(m.Get(FieldPIN)))
	assert.Nil(t, m.Get(FieldKSN))
	assert.NotContains(t, m.Trace(), "123456")
	assert.Contains(t, m.Trace(), "43219876543210987")

	m, err = NewP2([]byte("4" + "041234" + "16" + "4321987654321098" + ksn))
	require.NoError(t, err)
	assert.Equal(t, ksn, string(m.Get(FieldKSN)))

	m, err = NewN0([]byte(ksn))
	require.NoError(t, err)
	assert.Equal(t, "Next key serial number", m.Description())

	_, err = NewNC(nil)
	require.NoError(t, err)
}

func TestParserErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parse func([]byte) (*BaseMessage, error)
		data  string
		want  error
	}{
		{name: "k0 short", parse: NewK0, data: "P1000123", want: ErrShortMessage},
		{name: "k0 trailing", parse: NewK0, data: "P1000123456789012345600000001X", want: ErrTrailingData},
		{name: "t0 bad length", parse: NewT0, data: "123456789012345600000001000102030405060708090A0B0C0D0E0FXX12", want: ErrInvalidLength},
		{name: "p0 negative length", parse: NewP0, data: "123456789012345600000001" + "00112233445566778899AABBCCDDEEFF" + "-1", want: ErrInvalidLength},
		{name: "p2 short pin", parse: NewP2, data: "006123", want: ErrShortMessage},
		{name: "nc trailing", parse: NewNC, data: "X", want: ErrTrailingData},
		{name: "n0 empty", parse: NewN0, data: "", want: errorcodes.ErrInvalidInputLength},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
