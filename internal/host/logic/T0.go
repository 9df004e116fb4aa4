package logic

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/track2"
)

// ExecuteT0 decrypts track 2 data enciphered by a terminal under the card
// keyset's DataBoth working key.
// Format: KSN (24 hex) + IV (32 hex) + data length (4) + data (hex).
// Response: T100 + track length (4) + track 2 (hex).
func ExecuteT0(input []byte, p KeyProvider) ([]byte, error) {
	msg, err := message.NewT0(input)
	if err != nil {
		logError("T0", err, "invalid payload")
		return nil, err
	}

	ksn, err := dukpt.ParseKSN(string(msg.Get(message.FieldKSN)))
	if err != nil {
		return nil, err
	}
	iv, err := cryptoutils.Str2Raw(string(msg.Get(message.FieldIV)))
	if err != nil {
		return nil, err
	}
	ciphertext, err := cryptoutils.Str2Raw(string(msg.Get(message.FieldData)))
	if err != nil {
		return nil, err
	}

	wk, err := p.WorkingKey(host.CardKeyset, dukpt.DataBoth, ksn)
	if err != nil {
		logError("T0", err, "working key derivation failed")
		return nil, err
	}
	defer clear(wk)

	data, err := track2.Decrypt(wk, iv, ciphertext)
	if err != nil {
		logError("T0", err, "track 2 decryption failed")
		return nil, err
	}
	logDebug("T0", "track 2 decrypted")

	track := data.String()

	return respond("T0", fmt.Sprintf("%04d", len(track)), track), nil
}
