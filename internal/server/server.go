// Package server exposes the demo host commands over TCP using anet framing.
package server

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	anetserver "github.com/andrei-cloud/anet/server"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_dukpt/internal/host/logic"
	"github.com/andrei-cloud/go_dukpt/internal/logging"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// ErrMalformedRequest is returned for frames shorter than a command code.
var ErrMalformedRequest = errors.New("malformed request")

// logAdapter implements anet.Logger using zerolog.
type logAdapter struct{}

// Server wraps the anet TCP server and the host command logic.
type Server struct {
	address     string
	srv         *anetserver.Server
	provider    atomic.Value // stores providerBox
	activeConns int32
}

type providerBox struct{ p logic.KeyProvider }

func (l logAdapter) Print(v ...any) {
	log.Info().Msg(fmt.Sprint(v...))
}

func (l logAdapter) Printf(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Infof(format string, v ...any) {
	log.Info().Msgf(format, v...)
}

func (l logAdapter) Warnf(format string, v ...any) {
	log.Warn().Msgf(format, v...)
}

func (l logAdapter) Errorf(format string, v ...any) {
	log.Error().Msgf(format, v...)
}

// NewServer configures and returns the host server instance.
func NewServer(address string, p logic.KeyProvider) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: key provider", errorcodes.ErrMissingParameter)
	}

	cfg := &anetserver.ServerConfig{
		MaxConns:        100,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     0 * time.Second, // disable idle connection closure.
		ShutdownTimeout: 5 * time.Second,
		Logger:          logAdapter{},
	}

	s := &Server{address: address}
	s.provider.Store(providerBox{p: p})

	srv, err := anetserver.NewServer(address, anetserver.HandlerFunc(s.handle), cfg)
	if err != nil {
		return nil, fmt.Errorf("server setup failed: %w", err)
	}
	s.srv = srv

	return s, nil
}

// Start begins listening for connections.
func (s *Server) Start() error {
	log.Info().Str("address", s.address).Msg("server started")

	return s.srv.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.srv.Stop()
}

// SetProvider swaps the key provider used by subsequent requests, e.g. after
// a configuration reload.
func (s *Server) SetProvider(p logic.KeyProvider) {
	if p == nil {
		return
	}
	s.provider.Store(providerBox{p: p})
	log.Info().Str("event", "provider_swapped").Msg("key provider replaced")
}

func (s *Server) keyProvider() logic.KeyProvider {
	return s.provider.Load().(providerBox).p //nolint:forcetypeassert // only providerBox is stored
}

// ActiveConnections returns the number of requests being handled.
func (s *Server) ActiveConnections() int {
	return int(atomic.LoadInt32(&s.activeConns))
}

// errorResponse builds the incremented command code followed by the two-character error code.
func errorResponse(cmd string, err error) (resp []byte, code string) {
	code = errorcodes.From(err, errorcodes.ErrDecodeFailure).CodeOnly()

	return []byte(logic.ResponseCode(cmd) + code), code
}

// responseCode returns the error code carried in bytes 2 and 3 of a response.
func responseCode(resp []byte) string {
	if len(resp) < 4 {
		return ""
	}

	return string(resp[2:4])
}

func (s *Server) handle(conn *anetserver.ServerConn, data []byte) ([]byte, error) {
	client := conn.Conn.RemoteAddr().String()
	atomic.AddInt32(&s.activeConns, 1)
	defer atomic.AddInt32(&s.activeConns, -1)

	start := time.Now()
	traceID := uuid.NewString()

	if len(data) < 2 {
		log.Error().
			Str("event", "malformed_request").
			Str("trace_id", traceID).
			Str("client_ip", client).
			Int("length", len(data)).
			Msg("request shorter than a command code")

		return nil, ErrMalformedRequest
	}

	cmd := string(data[:2])
	logging.LogRequest(traceID, client, cmd, data, s.ActiveConnections())

	resp, err := logic.Execute(cmd, data[2:], s.keyProvider())
	if err != nil {
		var code string
		resp, code = errorResponse(cmd, err)
		if errors.Is(err, logic.ErrUnknownCommand) {
			log.Warn().
				Str("event", "unknown_command").
				Str("trace_id", traceID).
				Str("client_ip", client).
				Str("command", cmd).
				Msg("command not recognized, responding with error code")
		} else {
			log.Error().
				Str("event", "command_error").
				Str("trace_id", traceID).
				Str("client_ip", client).
				Str("command", cmd).
				Str("error_code", code).
				Err(err).
				Msg("command execution failed")
		}
	}

	logging.LogResponse(
		traceID,
		client,
		cmd,
		logic.ResponseCode(cmd),
		responseCode(resp),
		time.Since(start),
		s.ActiveConnections(),
	)

	return resp, nil
}
