package logic

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/pinblock"
)

// ExecuteP0 reverses an ISO format 4 enciphered PIN block under the PIN
// keyset's PinEncryption working key and returns the clear PIN.
// This is a demo verification command and returns a clear PIN.
// Format: KSN (24 hex) + EPB (32 hex) + PAN length (2) + PAN.
// Response: P100 + PIN length (2) + PIN.
func ExecuteP0(input []byte, p KeyProvider) ([]byte, error) {
	msg, err := message.NewP0(input)
	if err != nil {
		logError("P0", err, "invalid payload")
		return nil, err
	}

	ksn, err := dukpt.ParseKSN(string(msg.Get(message.FieldKSN)))
	if err != nil {
		return nil, err
	}
	epb, err := cryptoutils.Str2Raw(string(msg.Get(message.FieldPinBlock)))
	if err != nil {
		return nil, err
	}

	wk, err := p.WorkingKey(host.PinKeyset, dukpt.PinEncryption, ksn)
	if err != nil {
		logError("P0", err, "working key derivation failed")
		return nil, err
	}
	defer clear(wk)

	pin, err := pinblock.DangerouslyDecryptISO4ToPIN(wk, epb, string(msg.Get(message.FieldPAN)))
	if err != nil {
		logError("P0", err, "pin block decryption failed")
		return nil, hostError(err)
	}
	logDebug("P0", "pin block decrypted")

	return respond("P0", fmt.Sprintf("%02d", len(pin)), pin), nil
}
