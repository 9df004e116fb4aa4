// Package host provides the demo DUKPT host: the configured base derivation
// keys and the key derivations the host commands are built on.
package host

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/andrei-cloud/go_dukpt/internal/config"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/errorcodes"
	"github.com/andrei-cloud/go_dukpt/pkg/keywrap"
)

// FirmwareVersion is reported by the NC diagnostics command.
const FirmwareVersion = "0001-D100"

// Keyset selects which base derivation key a command uses.
type Keyset byte

const (
	CardKeyset Keyset = 'C' // protects track data
	PinKeyset  Keyset = 'P' // protects PIN blocks
)

var (
	ErrUnknownKeyset = fmt.Errorf("%w: unknown keyset", errorcodes.ErrDecodeFailure)
	ErrNoWrappingKey = fmt.Errorf("%w: no wrapping public key configured", errorcodes.ErrMissingParameter)
)

func (k Keyset) String() string {
	switch k {
	case CardKeyset:
		return "card"
	case PinKeyset:
		return "pin"
	default:
		return fmt.Sprintf("Keyset(%q)", byte(k))
	}
}

// ParseKeyset maps the one-character keyset field to a Keyset.
func ParseKeyset(b []byte) (Keyset, error) {
	if len(b) == 1 {
		switch ks := Keyset(b[0]); ks {
		case CardKeyset, PinKeyset:
			return ks, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKeyset, b)
}

// Options configures a Host.
type Options struct {
	FirmwareVersion string
	CardBDK         []byte
	PinBDK          []byte
	BDKKeyType      dukpt.KeyType
	WorkingKeyType  dukpt.KeyType
	WrapKey         *rsa.PublicKey
	WrapMethod      keywrap.WrappingMethod
	KEKAlias        string
	Deriver         dukpt.Deriver
}

// Host holds the demo base derivation keys. It is read-only after New and
// safe for concurrent use.
type Host struct {
	firmware       string
	bdks           map[Keyset][]byte
	bdkKeyType     dukpt.KeyType
	workingKeyType dukpt.KeyType
	wrapKey        *rsa.PublicKey
	wrapMethod     keywrap.WrappingMethod
	kekAlias       string
	deriver        dukpt.Deriver
}

// New validates opts and returns a Host.
func New(opts Options) (*Host, error) {
	if opts.FirmwareVersion == "" {
		opts.FirmwareVersion = FirmwareVersion
	}
	if opts.Deriver == nil {
		opts.Deriver = dukpt.NewEngine()
	}
	if opts.WrapMethod == 0 {
		opts.WrapMethod = keywrap.RSAOAEPSHA256
	}

	for ks, bdk := range map[Keyset][]byte{CardKeyset: opts.CardBDK, PinKeyset: opts.PinBDK} {
		if len(bdk) != opts.BDKKeyType.Length() || opts.BDKKeyType.Length() == 0 {
			return nil, fmt.Errorf(
				"%w: %s bdk is %d bytes, %s needs %d",
				dukpt.ErrInvalidKeyLength,
				ks,
				len(bdk),
				opts.BDKKeyType,
				opts.BDKKeyType.Length(),
			)
		}
	}
	if opts.WorkingKeyType.Length() == 0 {
		return nil, fmt.Errorf("%w: working key type", errorcodes.ErrMissingParameter)
	}

	return &Host{
		firmware: opts.FirmwareVersion,
		bdks: map[Keyset][]byte{
			CardKeyset: append([]byte(nil), opts.CardBDK...),
			PinKeyset:  append([]byte(nil), opts.PinBDK...),
		},
		bdkKeyType:     opts.BDKKeyType,
		workingKeyType: opts.WorkingKeyType,
		wrapKey:        opts.WrapKey,
		wrapMethod:     opts.WrapMethod,
		kekAlias:       opts.KEKAlias,
		deriver:        opts.Deriver,
	}, nil
}

// FromConfig builds a Host from the loaded configuration.
func FromConfig(cfg *config.Config) (*Host, error) {
	bdkType, err := dukpt.ParseKeyType(cfg.Dukpt.BDKKeyType)
	if err != nil {
		return nil, fmt.Errorf("dukpt.bdk_key_type: %w", err)
	}
	wkType, err := dukpt.ParseKeyType(cfg.Dukpt.WorkingKeyType)
	if err != nil {
		return nil, fmt.Errorf("dukpt.working_key_type: %w", err)
	}
	cardBDK, err := cryptoutils.Str2Raw(cfg.Keys.CardBDK)
	if err != nil {
		return nil, fmt.Errorf("keys.card_bdk: %w", err)
	}
	pinBDK, err := cryptoutils.Str2Raw(cfg.Keys.PinBDK)
	if err != nil {
		return nil, fmt.Errorf("keys.pin_bdk: %w", err)
	}

	opts := Options{
		CardBDK:        cardBDK,
		PinBDK:         pinBDK,
		BDKKeyType:     bdkType,
		WorkingKeyType: wkType,
		KEKAlias:       cfg.Keywrap.KEKAlias,
	}

	if cfg.Keywrap.PublicKeyFile != "" {
		pemData, err := os.ReadFile(cfg.Keywrap.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("keywrap.public_key_file: %w", err)
		}
		if opts.WrapKey, err = keywrap.ParsePublicKeyPEM(string(pemData)); err != nil {
			return nil, fmt.Errorf("keywrap.public_key_file: %w", err)
		}
		if opts.WrapMethod, err = keywrap.ParseWrappingMethod(cfg.Keywrap.Method); err != nil {
			return nil, fmt.Errorf("keywrap.method: %w", err)
		}
	}

	return New(opts)
}

// Firmware returns the reported firmware version.
func (h *Host) Firmware() string { return h.firmware }

// BDKKeyType returns the key type of both base derivation keys.
func (h *Host) BDKKeyType() dukpt.KeyType { return h.bdkKeyType }

// WorkingKeyType returns the type of derived working keys.
func (h *Host) WorkingKeyType() dukpt.KeyType { return h.workingKeyType }

// CanWrap reports whether a wrapping public key is configured.
func (h *Host) CanWrap() bool { return h.wrapKey != nil }

func (h *Host) bdk(ks Keyset) ([]byte, error) {
	bdk, ok := h.bdks[ks]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyset, ks)
	}

	return bdk, nil
}

// BDKCheckValue returns the check value of the keyset's base derivation key.
func (h *Host) BDKCheckValue(ks Keyset) (string, error) {
	bdk, err := h.bdk(ks)
	if err != nil {
		return "", err
	}

	return cryptoutils.KeyCheckValueHex(bdk)
}

// InitialKey derives the initial key for ikid from the keyset's BDK.
func (h *Host) InitialKey(ks Keyset, ikid []byte) ([]byte, error) {
	bdk, err := h.bdk(ks)
	if err != nil {
		return nil, err
	}

	return h.deriver.DeriveInitialKeyByBDK(bdk, h.bdkKeyType, ikid)
}

// WorkingKey derives the working key for ksn and usage from the keyset's BDK.
func (h *Host) WorkingKey(ks Keyset, usage dukpt.KeyUsage, ksn dukpt.KSN) ([]byte, error) {
	bdk, err := h.bdk(ks)
	if err != nil {
		return nil, err
	}
	if ksn.ExceedsLegacyCounter() {
		log.Warn().
			Str("event", "ksn_counter_above_21_bits").
			Str("ksn", ksn.String()).
			Msg("counter uses bits above the 21-bit range; peers assuming the legacy layout may disagree")
	}
	log.Debug().
		Str("event", "derive_working_key").
		Str("keyset", ks.String()).
		Str("usage", usage.String()).
		Int("derivations", ksn.Derivations()).
		Msg("deriving working key")

	return h.deriver.DeriveWorkingKeyByBDK(bdk, h.bdkKeyType, h.workingKeyType, usage, ksn)
}

// WrapInitialKey wraps ik, the initial key already derived for ikid, under
// the configured public key.
func (h *Host) WrapInitialKey(ks Keyset, ikid, ik []byte) (keywrap.Record, error) {
	if h.wrapKey == nil {
		return keywrap.Record{}, ErrNoWrappingKey
	}

	return keywrap.WrapInitialKey(h.wrapKey, ik, keywrap.InitialKeyRequest{
		KeyType:          h.bdkKeyType,
		InitialKeyID:     ikid,
		KeyAlias:         "client_" + ks.String() + "_key",
		WrappingKeyAlias: h.kekAlias,
		Method:           h.wrapMethod,
	})
}
