package logic

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
	"github.com/andrei-cloud/go_dukpt/pkg/keywrap"
)

const (
	testBDK    = "FEDCBA9876543210F1F1F1F1F1F1F1F1"
	testKSN    = "12345678901234560001FFFE"
	testPAN    = "4321987654321098"
	testPinKSN = "123456789012345600000001"
)

var (
	rsaOnce sync.Once
	rsaKey  *rsa.PrivateKey
)

func wrappingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	rsaOnce.Do(func() {
		var err error
		rsaKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})

	return rsaKey
}

func newHost(t *testing.T, wrap bool) *host.Host {
	t.Helper()
	bdk, err := cryptoutils.Str2Raw(testBDK)
	require.NoError(t, err)

	opts := host.Options{
		CardBDK:        bdk,
		PinBDK:         bdk,
		BDKKeyType:     dukpt.AES128,
		WorkingKeyType: dukpt.AES128,
		KEKAlias:       "kek",
	}
	if wrap {
		opts.WrapKey = &wrappingKey(t).PublicKey
	}
	h, err := host.New(opts)
	require.NoError(t, err)

	return h
}

func kcv(t *testing.T, keyHex string) string {
	t.Helper()
	key, err := cryptoutils.Str2Raw(keyHex)
	require.NoError(t, err)
	v, err := cryptoutils.KeyCheckValueHex(key)
	require.NoError(t, err)

	return v
}

func TestResponseCode(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"NC": "ND",
		"K0": "K1",
		"P2": "P3",
		"AZ": "AA",
		"X":  "X",
	}
	for in, want := range tests {
		assert.Equal(t, want, ResponseCode(in), in)
	}
}

func TestCommandsRegistry(t *testing.T) {
	t.Parallel()

	cmds := Commands()
	codes := make([]string, 0, len(cmds))
	for _, c := range cmds {
		codes = append(codes, c.Code)
		assert.NotEmpty(t, c.Description)
		assert.NotNil(t, c.Execute)
	}
	assert.Equal(t, []string{"I0", "K0", "N0", "NC", "P0", "P2", "T0"}, codes)

	_, ok := Lookup("ZZ")
	assert.False(t, ok)
}

func TestExecuteUnknownCommand(t *testing.T) {
	t.Parallel()

	_, err := Execute("ZZ", nil, newHost(t, false))
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, "68", errorcodes.From(err, errorcodes.ErrCipherFailure).CodeOnly())
}

func TestExecuteNC(t *testing.T) {
	t.Parallel()

	resp, err := Execute("NC", nil, newHost(t, false))
	require.NoError(t, err)

	want := "ND00" + kcv(t, testBDK) + kcv(t, testBDK) + host.FirmwareVersion
	assert.Equal(t, want, string(resp))

	_, err = ExecuteNC([]byte("X"), newHost(t, false))
	assert.ErrorIs(t, err, errorcodes.ErrInvalidInputLength)
}

func TestExecuteI0(t *testing.T) {
	t.Parallel()

	resp, err := ExecuteI0([]byte("C1234567890123456"), newHost(t, false))
	require.NoError(t, err)
	assert.Equal(t, "I100"+kcv(t, "1273671EA26AC29AFA4D1084127652A1"), string(resp))

	_, err = ExecuteI0([]byte("X1234567890123456"), newHost(t, false))
	assert.ErrorIs(t, err, host.ErrUnknownKeyset)

	_, err = ExecuteI0([]byte("C12345678901234ZZ"), newHost(t, false))
	assert.ErrorIs(t, err, errorcodes.ErrDecodeFailure)
}

func TestExecuteI0Wrapped(t *testing.T) {
	t.Parallel()

	resp, err := ExecuteI0([]byte("P1234567890123456"), newHost(t, true))
	require.NoError(t, err)

	head := "I100" + kcv(t, "1273671EA26AC29AFA4D1084127652A1")
	require.Greater(t, len(resp), len(head)+4)
	assert.Equal(t, head, string(resp[:len(head)]))

	n, err := strconv.Atoi(string(resp[len(head) : len(head)+4]))
	require.NoError(t, err)
	wrapped := string(resp[len(head)+4:])
	assert.Len(t, wrapped, n)
	// 2048-bit RSA output.
	assert.Equal(t, 512, n)
}

// countingProvider records how often the initial key is derived and which
// key reaches the wrapper.
type countingProvider struct {
	*host.Host
	derivations int
	wrappedKey  []byte
}

func (c *countingProvider) InitialKey(ks host.Keyset, ikid []byte) ([]byte, error) {
	c.derivations++

	return c.Host.InitialKey(ks, ikid)
}

func (c *countingProvider) WrapInitialKey(ks host.Keyset, ikid, ik []byte) (keywrap.Record, error) {
	c.wrappedKey = append([]byte(nil), ik...)

	return c.Host.WrapInitialKey(ks, ikid, ik)
}

func TestExecuteI0DerivesOnce(t *testing.T) {
	t.Parallel()

	p := &countingProvider{Host: newHost(t, true)}
	resp, err := ExecuteI0([]byte("P1234567890123456"), p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.derivations)
	assert.Equal(t, "1273671EA26AC29AFA4D1084127652A1", cryptoutils.Raw2Str(p.wrappedKey))

	head := "I100" + kcv(t, "1273671EA26AC29AFA4D1084127652A1")
	wrapped, err := cryptoutils.Str2Raw(string(resp[len(head)+4:]))
	require.NoError(t, err)
	ik, err := rsa.DecryptOAEP(sha256.New(), nil, wrappingKey(t), wrapped, nil)
	require.NoError(t, err)
	assert.Equal(t, "1273671EA26AC29AFA4D1084127652A1", cryptoutils.Raw2Str(ik))
}

func TestExecuteK0(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "pin key",
			input: "P1000" + testKSN,
			want:  "K100" + kcv(t, "DDF7E08A84B5478C498D007C743BF762") + "16",
		},
		{
			name:  "mac key",
			input: "C2000" + "123456789012345600000001",
			want:  "K100" + kcv(t, "A2DC23DE6FDE0824A2BC321E08E4B8B7") + "01",
		},
	}

	h := newHost(t, false)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := ExecuteK0([]byte(tt.input), h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(resp))
		})
	}
}

func TestExecuteK0Errors(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	_, err := ExecuteK0([]byte("P9999"+testKSN), h)
	require.ErrorIs(t, err, errorcodes.ErrInvalidKeyUsage)
	assert.Equal(t, "A6", errorcodes.From(err, errorcodes.ErrCipherFailure).CodeOnly())

	_, err = ExecuteK0([]byte("P1000"+testKSN[:20]), h)
	assert.ErrorIs(t, err, errorcodes.ErrInvalidInputLength)

	_, err = ExecuteK0([]byte("P1000"+testKSN+"00"), h)
	assert.ErrorIs(t, err, errorcodes.ErrInvalidInputLength)
}

func TestExecuteT0(t *testing.T) {
	t.Parallel()

	const track = "4321987654321098d25122011234000012300f"

	h := newHost(t, false)
	ksn, err := dukpt.ParseKSN(testKSN)
	require.NoError(t, err)
	wk, err := h.WorkingKey(host.CardKeyset, dukpt.DataBoth, ksn)
	require.NoError(t, err)

	iv := make([]byte, 16)
	raw, err := cryptoutils.Str2Raw(track)
	require.NoError(t, err)
	ct, err := cryptoutils.Encrypt(raw, wk, cryptoutils.CBC, cryptoutils.PKCS5Padding, iv)
	require.NoError(t, err)
	ctHex := cryptoutils.Raw2Str(ct)

	input := testKSN + cryptoutils.Raw2Str(iv) + fmt.Sprintf("%04d", len(ctHex)) + ctHex
	resp, err := ExecuteT0([]byte(input), h)
	require.NoError(t, err)
	assert.Equal(t, "T100"+fmt.Sprintf("%04d", len(track))+track, string(resp))

	// Another KSN derives another key.
	other := "123456789012345600000001" + cryptoutils.Raw2Str(iv) + fmt.Sprintf("%04d", len(ctHex)) + ctHex
	resp, err = ExecuteT0([]byte(other), h)
	if err == nil {
		assert.NotEqual(t, "T100"+fmt.Sprintf("%04d", len(track))+track, string(resp))
	}
}

func TestExecuteP2(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	resp, err := ExecuteP2([]byte("0"+"06123456"+"17"+"43219876543210987"), h)
	require.NoError(t, err)
	assert.Equal(t, "P300"+"0612AC20ABCDEF67", string(resp))

	resp, err = ExecuteP2([]byte("2"+"06123456"+"00"), h)
	require.NoError(t, err)
	assert.Equal(t, "P300"+"26123456FFFFFFFF", string(resp))

	resp, err = ExecuteP2([]byte("1"+"041234"+"00"), h)
	require.NoError(t, err)
	assert.Len(t, resp, 4+16)
	assert.Equal(t, "P300141234", string(resp[:10]))
}

func TestExecuteP2Errors(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	tests := []struct {
		name  string
		input string
		code  string
	}{
		{name: "short pin", input: "0" + "03123" + "16" + testPAN, code: "24"},
		{name: "short pan", input: "0" + "041234" + "05" + "12345", code: "22"},
		{name: "iso2 short pan", input: "2" + "041234" + "03" + "123", code: "22"},
		{name: "unknown format", input: "7" + "041234" + "16" + testPAN, code: "23"},
		{name: "bad length field", input: "0" + "xx1234", code: "15"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExecuteP2([]byte(tt.input), h)
			require.Error(t, err)
			assert.Equal(t, tt.code, errorcodes.From(err, errorcodes.ErrCipherFailure).CodeOnly())
		})
	}
}

func TestFormat4RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	for _, pin := range []string{"1234", "98765432", "123456789012"} {
		input := fmt.Sprintf("4%02d%s%02d%s%s", len(pin), pin, len(testPAN), testPAN, testPinKSN)
		resp, err := ExecuteP2([]byte(input), h)
		require.NoError(t, err)
		require.Len(t, resp, 4+32)
		assert.Equal(t, "P300", string(resp[:4]))

		epb := string(resp[4:])
		resp, err = ExecuteP0([]byte(testPinKSN+epb+fmt.Sprintf("%02d", len(testPAN))+testPAN), h)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("P100%02d%s", len(pin), pin), string(resp))

		// Decrypting under another counter yields garbage.
		_, err = ExecuteP0([]byte(testKSN+epb+fmt.Sprintf("%02d", len(testPAN))+testPAN), h)
		assert.Error(t, err)
	}
}

func TestExecuteP0Errors(t *testing.T) {
	t.Parallel()

	h := newHost(t, false)
	epb := "00000000000000000000000000000000"

	_, err := ExecuteP0([]byte(testPinKSN+epb+"05"+"12345"), h)
	require.Error(t, err)
	assert.Equal(t, "22", errorcodes.From(err, errorcodes.ErrCipherFailure).CodeOnly())

	_, err = ExecuteP0([]byte(testPinKSN+epb[:30]), h)
	assert.ErrorIs(t, err, errorcodes.ErrInvalidInputLength)
}

func TestExecuteN0(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ksn  string
		want string
	}{
		{name: "increment", ksn: "123456789012345600000001", want: "123456789012345600000002"},
		{name: "skips counters over sixteen bits", ksn: "12345678901234560000FFFF", want: "123456789012345600010000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := ExecuteN0([]byte(tt.ksn), nil)
			require.NoError(t, err)
			assert.Equal(t, "N100"+tt.want, string(resp))
		})
	}

	_, err := ExecuteN0([]byte("1234567890123456FFFF0000"), nil)
	require.ErrorIs(t, err, dukpt.ErrCounterExhausted)
	assert.Equal(t, "A8", errorcodes.From(err, errorcodes.ErrCipherFailure).CodeOnly())
}
