package logic

import (
	"fmt"
	"sort"

	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
)

// Handler executes one command payload and returns the full response.
type Handler func(input []byte, p KeyProvider) ([]byte, error)

// Command describes a registered host command.
type Command struct {
	Code        string
	Description string
	Execute     Handler
}

// ErrUnknownCommand is returned by Execute for codes with no handler.
var ErrUnknownCommand = fmt.Errorf("%w: unknown command", errorcodes.ErrUnknownCommand)

var commands = map[string]Command{
	"NC": {Code: "NC", Description: "Perform diagnostics", Execute: ExecuteNC},
	"I0": {Code: "I0", Description: "Derive DUKPT initial key", Execute: ExecuteI0},
	"K0": {Code: "K0", Description: "Working key check value", Execute: ExecuteK0},
	"T0": {Code: "T0", Description: "Decrypt track 2 data", Execute: ExecuteT0},
	"P0": {Code: "P0", Description: "Decrypt ISO format 4 PIN block", Execute: ExecuteP0},
	"P2": {Code: "P2", Description: "Build PIN block", Execute: ExecuteP2},
	"N0": {Code: "N0", Description: "Next key serial number", Execute: ExecuteN0},
}

// Lookup returns the command registered for code.
func Lookup(code string) (Command, bool) {
	c, ok := commands[code]

	return c, ok
}

// Commands returns all registered commands sorted by code.
func Commands() []Command {
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out
}

// Execute dispatches payload to the handler for code.
func Execute(code string, payload []byte, p KeyProvider) ([]byte, error) {
	c, ok := Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, code)
	}

	return c.Execute(payload, p)
}

// ResponseCode returns the response command code: the second character incremented.
func ResponseCode(cmd string) string {
	b := []byte(cmd)
	if len(b) < 2 {
		return cmd
	}
	if b[1] == 'Z' {
		b[1] = 'A'
	} else {
		b[1]++
	}

	return string(b)
}

func respond(cmd string, data ...string) []byte {
	out := []byte(ResponseCode(cmd) + errorcodes.Err00.CodeOnly())
	for _, d := range data {
		out = append(out, d...)
	}

	return out
}
