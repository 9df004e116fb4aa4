// Package logic implements the demo host commands.
package logic

import (
	"errors"
	"fmt"

	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
	"github.com/andrei-cloud/go_dukpt/pkg/keywrap"
	"github.com/andrei-cloud/go_dukpt/pkg/pinblock"
)

// KeyProvider supplies the keys the commands operate on. *host.Host implements it.
type KeyProvider interface {
	Firmware() string
	BDKCheckValue(ks host.Keyset) (string, error)
	InitialKey(ks host.Keyset, ikid []byte) ([]byte, error)
	WorkingKey(ks host.Keyset, usage dukpt.KeyUsage, ksn dukpt.KSN) ([]byte, error)
	WrapInitialKey(ks host.Keyset, ikid, ik []byte) (keywrap.Record, error)
	CanWrap() bool
}

var _ KeyProvider = (*host.Host)(nil)

// hostError narrows PIN related failures to their dedicated host codes.
func hostError(err error) error {
	switch {
	case errors.Is(err, pinblock.ErrInvalidPinLength):
		return fmt.Errorf("%w: %v", errorcodes.ErrInvalidPinLength, err)
	case errors.Is(err, pinblock.ErrInvalidPanLength):
		return fmt.Errorf("%w: %v", errorcodes.ErrInvalidAccount, err)
	default:
		return err
	}
}
