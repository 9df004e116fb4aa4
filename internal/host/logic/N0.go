package logic

import (
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

// ExecuteN0 returns the KSN a terminal uses after the supplied one.
// Format: KSN (24 hex). Response: N100 + next KSN (24 hex).
func ExecuteN0(input []byte, _ KeyProvider) ([]byte, error) {
	msg, err := message.NewN0(input)
	if err != nil {
		return nil, err
	}
	ksn, err := dukpt.ParseKSN(string(msg.Get(message.FieldKSN)))
	if err != nil {
		return nil, err
	}

	next, err := ksn.Next()
	if err != nil {
		logError("N0", err, "counter exhausted")
		return nil, err
	}

	return respond("N0", next.String()), nil
}
