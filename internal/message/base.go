package message

import (
	"bytes"
	"fmt"
	"sort"
)

// Message defines the interface for host messages.
type Message interface {
	Get(field string) []byte
	Set(field string, val []byte)
	CommandCode() string
	Trace() string
}

// BaseMessage implements Message and holds command fields.
type BaseMessage struct {
	cmdCode     string
	description string
	Fields      map[string][]byte
	masked      map[string]bool
}

// NewBaseMessage creates a new BaseMessage with the given code and description.
func NewBaseMessage(cmdCode, description string) *BaseMessage {
	return &BaseMessage{
		cmdCode:     cmdCode,
		description: description,
		Fields:      make(map[string][]byte),
		masked:      make(map[string]bool),
	}
}

func (m *BaseMessage) Get(field string) []byte {
	return m.Fields[field]
}

func (m *BaseMessage) Set(field string, val []byte) {
	m.Fields[field] = val
}

// SetMasked stores a field that Trace must not print, such as a clear PIN.
func (m *BaseMessage) SetMasked(field string, val []byte) {
	m.Fields[field] = val
	m.masked[field] = true
}

func (m *BaseMessage) CommandCode() string {
	return m.cmdCode
}

func (m *BaseMessage) Description() string {
	return m.description
}

// Trace renders the message for debug logs with fields in name order.
func (m *BaseMessage) Trace() string {
	names := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Command: %s - %s\n", m.cmdCode, m.description)
	for _, k := range names {
		if m.masked[k] {
			fmt.Fprintf(&buf, "\t[%s]=<masked>\n", k)
			continue
		}
		fmt.Fprintf(&buf, "\t[%s]=%s\n", k, m.Fields[k])
	}

	return buf.String()
}
