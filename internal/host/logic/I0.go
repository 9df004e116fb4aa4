package logic

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
)

// ExecuteI0 derives an initial key and reports its check value.
// Format: keyset (1) + initial key ID (16 hex).
// Response: I100 + check value (10), followed by wrapped key length (4) and
// the wrapped key in hex when a wrapping public key is configured.
func ExecuteI0(input []byte, p KeyProvider) ([]byte, error) {
	msg, err := message.NewI0(input)
	if err != nil {
		logError("I0", err, "invalid payload")
		return nil, err
	}
	logDebug("I0", msg.Trace())

	ks, err := host.ParseKeyset(msg.Get(message.FieldKeyset))
	if err != nil {
		return nil, err
	}
	ikid, err := cryptoutils.Str2Raw(string(msg.Get(message.FieldInitialKeyID)))
	if err != nil {
		return nil, err
	}

	ik, err := p.InitialKey(ks, ikid)
	if err != nil {
		logError("I0", err, "initial key derivation failed")
		return nil, err
	}
	defer clear(ik)

	kcv, err := cryptoutils.KeyCheckValueHex(ik)
	if err != nil {
		return nil, err
	}

	if !p.CanWrap() {
		return respond("I0", kcv), nil
	}

	rec, err := p.WrapInitialKey(ks, ikid, ik)
	if err != nil {
		logError("I0", err, "initial key wrap failed")
		return nil, err
	}
	wrapped := cryptoutils.Raw2Str(rec.WrappedKey)

	return respond("I0", kcv, fmt.Sprintf("%04d", len(wrapped)), wrapped), nil
}
