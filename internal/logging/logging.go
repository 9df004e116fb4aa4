package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var output io.Writer = os.Stdout

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).With().Timestamp().Logger()
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339Nano,
		})
	} else {
		log.Logger = base
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Setup initializes the logger from the configured level and format names.
// Unknown levels fall back to info; any format other than "json" is human readable.
func Setup(level, format string) {
	InitLogger(false, !strings.EqualFold(format, "json"))
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// LogRequest logs a received command with structured fields. The payload
// itself is not logged since it may carry a clear PIN.
func LogRequest(
	traceID string,
	clientIP string,
	command string,
	requestData []byte,
	activeConns int,
) {
	log.Info().
		Str("event", "request_received").
		Str("trace_id", traceID).
		Str("client_ip", clientIP).
		Str("command", command).
		Int("request_len", len(requestData)).
		Int("active_connections", activeConns).
		Msg("received command")
}

// LogResponse logs a sent response with structured fields.
func LogResponse(
	traceID string,
	clientIP string,
	command string,
	responseCommand string,
	errorCode string,
	duration time.Duration,
	activeConns int,
) {
	log.Info().
		Str("event", "response_sent").
		Str("trace_id", traceID).
		Str("client_ip", clientIP).
		Str("command", command).
		Str("response_command", responseCommand).
		Str("error_code", errorCode).
		Dur("duration", duration).
		Int("active_connections", activeConns).
		Msg("sent response")
}
