//nolint:all
package server_test

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/andrei-cloud/anet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	server "github.com/andrei-cloud/go_dukpt/internal/server"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

const testAddr = "127.0.0.1:1515"

func newHost(t *testing.T) *host.Host {
	t.Helper()
	bdk, err := cryptoutils.Str2Raw("FEDCBA9876543210F1F1F1F1F1F1F1F1")
	require.NoError(t, err)
	h, err := host.New(host.Options{
		CardBDK:        bdk,
		PinBDK:         bdk,
		BDKKeyType:     dukpt.AES128,
		WorkingKeyType: dukpt.AES128,
	})
	require.NoError(t, err)

	return h
}

// startTestServer starts the host server for testing.
func startTestServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(testAddr, newHost(t))
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		require.NoError(t, err, "server start error")
	case <-time.After(1 * time.Second):
		// Allow some time for the server to start
	}

	time.Sleep(100 * time.Millisecond)

	return srv
}

// newClient returns a send function backed by an anet pool and broker.
func newClient(t *testing.T) func(req []byte) ([]byte, error) {
	t.Helper()

	factory := func(addr string) (anet.PoolItem, error) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err != nil {
			return nil, err
		}

		if err := conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
			conn.Close()

			return nil, err
		}

		return conn, nil
	}

	pool := anet.NewPool(1, factory, testAddr, nil)
	t.Cleanup(func() { pool.Close() })

	broker := anet.NewBroker([]anet.Pool{pool}, 1, nil, nil)
	go broker.Start()
	t.Cleanup(func() { broker.Close() })

	return func(req []byte) ([]byte, error) {
		return broker.Send(&req)
	}
}

// TestCommands sends each command type through a live server in turn.
func TestCommands(t *testing.T) {
	srv := startTestServer(t)
	defer srv.Stop()

	send := newClient(t)

	wk, err := cryptoutils.Str2Raw("DDF7E08A84B5478C498D007C743BF762")
	require.NoError(t, err)
	kcv, err := cryptoutils.KeyCheckValueHex(wk)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  string
		want string
	}{
		{name: "working key check", req: "K0P100012345678901234560001FFFE", want: "K100" + kcv + "16"},
		{name: "next ksn", req: "N0123456789012345600000001", want: "N100123456789012345600000002"},
		{name: "pin block", req: "P2006123456" + "17" + "43219876543210987", want: "P3000612AC20ABCDEF67"},
		{name: "unknown command", req: "ZZ0123", want: "ZA68"},
		{name: "short pin", req: "P2003123" + "16" + "4321987654321098", want: "P324"},
		{name: "bad usage", req: "K0P999912345678901234560001FFFE", want: "K1A6"},
		{name: "exhausted counter", req: "N01234567890123456FFFF0000", want: "N1A8"},
	}

	for _, tt := range tests {
		resp, err := send([]byte(tt.req))
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, string(resp), tt.name)
	}
}

// TestDiagnostics verifies NC reports both check values and the firmware version.
func TestDiagnostics(t *testing.T) {
	srv := startTestServer(t)
	defer srv.Stop()

	send := newClient(t)

	resp, err := send([]byte("NC"))
	require.NoError(t, err)

	require.Len(t, resp, 4+20+len(host.FirmwareVersion))
	assert.Equal(t, "ND00", string(resp[:4]))
	assert.Equal(t, host.FirmwareVersion, string(resp[24:]))
}

func TestNewServerRequiresProvider(t *testing.T) {
	_, err := server.NewServer(testAddr, nil)
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// TestDebugLogsMaskPIN runs a P2 request with debug logging and checks the
// clear PIN is never written.
func TestDebugLogsMaskPIN(t *testing.T) {
	var out syncBuffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&out)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	srv := startTestServer(t)
	send := newClient(t)

	const pin = "987654321098"
	resp, err := send([]byte("P2" + "0" + "12" + pin + "17" + "43219876543210987"))
	require.NoError(t, err)
	assert.Equal(t, "P300", string(resp[:4]))

	srv.Stop()

	logs := out.String()
	assert.Contains(t, logs, "request_received")
	assert.Contains(t, logs, "command_logic")
	assert.NotContains(t, logs, pin)
	assert.NotContains(t, logs, "393837363534333231303938")
}
