package logic

import (
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/message"
)

// ExecuteNC runs diagnostics.
// Response: ND00 + card BDK check value (10) + PIN BDK check value (10) + firmware version.
func ExecuteNC(input []byte, p KeyProvider) ([]byte, error) {
	if _, err := message.NewNC(input); err != nil {
		logError("NC", err, "invalid payload")
		return nil, err
	}

	cardKCV, err := p.BDKCheckValue(host.CardKeyset)
	if err != nil {
		return nil, fmt.Errorf("card bdk check value: %w", err)
	}
	pinKCV, err := p.BDKCheckValue(host.PinKeyset)
	if err != nil {
		return nil, fmt.Errorf("pin bdk check value: %w", err)
	}
	logDebug("NC", "computed bdk check values")

	return respond("NC", cardKCV, pinKCV, p.Firmware()), nil
}
