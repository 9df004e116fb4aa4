// Package keywrap provides the initial key transport command.
package keywrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/internal/config"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/keywrap"
)

var errNoPublicKey = errors.New("a wrapping public key is required (--pubkey or keywrap.public_key_file)")

// NewKeywrapCommand creates the keywrap command.
func NewKeywrapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywrap",
		Short: "Derive and wrap an initial key for injection",
		Long: `Derive a DUKPT initial key from a base derivation key and wrap it under
the key store's RSA public key. The result is printed as a JSON record for
remote key injection. The clear initial key is never printed.`,
		Example: `  go_dukpt keywrap --bdk FEDCBA9876543210F1F1F1F1F1F1F1F1 --ikid 1234567890123456 \
    --pubkey terminal.pem --method oaep`,
		RunE: runKeywrap,
	}

	cmd.Flags().String("bdk", "", "Base derivation key in hex")
	cmd.Flags().String("ikid", "", "Initial key ID, 16 hex characters (random if empty)")
	cmd.Flags().String("type", dukpt.AES128.String(), "BDK key type")
	cmd.Flags().String("pubkey", "", "RSA public key file, PEM or base64 (default: keywrap.public_key_file)")
	cmd.Flags().String("method", "", "Wrapping method: rsa or oaep (default: keywrap.method)")
	cmd.Flags().String("alias", "", "Key alias in the key store (random if empty)")
	cmd.Flags().String("kek-alias", "", "Alias of the wrapping key (default: keywrap.kek_alias)")

	if err := cmd.MarkFlagRequired("bdk"); err != nil {
		panic(err)
	}

	return cmd
}

func runKeywrap(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	bdkHex, _ := cmd.Flags().GetString("bdk")
	ikidHex, _ := cmd.Flags().GetString("ikid")
	typeName, _ := cmd.Flags().GetString("type")
	pubFile, _ := cmd.Flags().GetString("pubkey")
	methodName, _ := cmd.Flags().GetString("method")
	alias, _ := cmd.Flags().GetString("alias")
	kekAlias, _ := cmd.Flags().GetString("kek-alias")

	if pubFile == "" {
		pubFile = cfg.Keywrap.PublicKeyFile
	}
	if pubFile == "" {
		return errNoPublicKey
	}
	if methodName == "" {
		methodName = cfg.Keywrap.Method
	}
	if methodName == "" {
		methodName = keywrap.RSAOAEPSHA256.String()
	}
	if kekAlias == "" {
		kekAlias = cfg.Keywrap.KEKAlias
	}

	keyType, err := dukpt.ParseKeyType(typeName)
	if err != nil {
		return err
	}
	method, err := keywrap.ParseWrappingMethod(methodName)
	if err != nil {
		return err
	}
	bdk, err := cryptoutils.Str2Raw(bdkHex)
	if err != nil {
		return fmt.Errorf("invalid bdk: %w", err)
	}
	var ikid []byte
	if ikidHex != "" {
		if ikid, err = cryptoutils.Str2Raw(ikidHex); err != nil {
			return fmt.Errorf("invalid ikid: %w", err)
		}
	}

	pemData, err := os.ReadFile(pubFile)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	pub, err := keywrap.ParsePublicKeyPEM(string(pemData))
	if err != nil {
		return err
	}

	rec, err := keywrap.NewInitialKeyRecord(pub, keywrap.InitialKeyRequest{
		BDK:              bdk,
		KeyType:          keyType,
		InitialKeyID:     ikid,
		KeyAlias:         alias,
		WrappingKeyAlias: kekAlias,
		Method:           method,
	})
	if err != nil {
		return fmt.Errorf("failed to wrap initial key: %w", err)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))

	return nil
}
