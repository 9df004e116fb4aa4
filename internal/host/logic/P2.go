package logic

import (
	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/pinblock"
)

// ExecuteP2 builds a PIN block. Format 4 blocks are enciphered under the PIN
// keyset's PinEncryption working key for the supplied KSN.
// Format: format (1, "0"-"4") + PIN length (2) + PIN + PAN length (2) + PAN
// [+ KSN (24 hex) for format 4].
// Response: P300 + PIN block (16 or 32 hex).
func ExecuteP2(input []byte, p KeyProvider) ([]byte, error) {
	msg, err := message.NewP2(input)
	if err != nil {
		logError("P2", err, "invalid payload")
		return nil, err
	}
	logDebug("P2", msg.Trace())

	format, err := pinblock.ParseFormat(string(msg.Get(message.FieldFormat)))
	if err != nil {
		return nil, err
	}

	var pinKey []byte
	if format == pinblock.ISO4 {
		ksn, err := dukpt.ParseKSN(string(msg.Get(message.FieldKSN)))
		if err != nil {
			return nil, err
		}
		if pinKey, err = p.WorkingKey(host.PinKeyset, dukpt.PinEncryption, ksn); err != nil {
			logError("P2", err, "working key derivation failed")
			return nil, err
		}
		defer clear(pinKey)
	}

	block, err := pinblock.GetPinBlock(
		string(msg.Get(message.FieldPIN)),
		format,
		string(msg.Get(message.FieldPAN)),
		pinKey,
	)
	if err != nil {
		logError("P2", err, "pin block build failed")
		return nil, hostError(err)
	}

	return respond("P2", block), nil
}
