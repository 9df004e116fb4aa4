package logic

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

// ExecuteK0 derives a working key and reports its check value so a terminal
// integration can be verified without exposing the key.
// Format: keyset (1) + key usage indicator (4 hex) + KSN (24 hex).
// Response: K100 + check value (10) + intermediate derivations (2).
func ExecuteK0(input []byte, p KeyProvider) ([]byte, error) {
	msg, err := message.NewK0(input)
	if err != nil {
		logError("K0", err, "invalid payload")
		return nil, err
	}
	logDebug("K0", msg.Trace())

	ks, err := host.ParseKeyset(msg.Get(message.FieldKeyset))
	if err != nil {
		return nil, err
	}
	usage, err := dukpt.ParseKeyUsage(string(msg.Get(message.FieldUsage)))
	if err != nil {
		return nil, err
	}
	ksn, err := dukpt.ParseKSN(string(msg.Get(message.FieldKSN)))
	if err != nil {
		return nil, err
	}

	wk, err := p.WorkingKey(ks, usage, ksn)
	if err != nil {
		logError("K0", err, "working key derivation failed")
		return nil, err
	}
	defer clear(wk)

	kcv, err := cryptoutils.KeyCheckValueHex(wk)
	if err != nil {
		return nil, err
	}

	return respond("K0", kcv, fmt.Sprintf("%02d", ksn.Derivations())), nil
}
