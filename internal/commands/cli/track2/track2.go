// Package track2 provides the track 2 decryption command.
package track2

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/track2"
)

// NewTrack2Command creates the track2 command group.
func NewTrack2Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track2",
		Short: "Track 2 data operations",
	}

	decrypt := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt DUKPT protected track 2 data",
		Long: `Decrypt track 2 equivalent data (EMV tag 57) enciphered by a terminal
with AES-CBC under its DataBoth working key.`,
		Example: `  go_dukpt track2 decrypt --bdk F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1 \
    --ksn 112233445566778800000003 --iv 000102030405060708090A0B0C0D0E0F --data <hex>`,
		RunE: runDecrypt,
	}

	decrypt.Flags().String("bdk", "", "Base derivation key in hex")
	decrypt.Flags().String("ksn", "", "Key serial number, 24 hex characters")
	decrypt.Flags().String("iv", "", "Initialization vector, 32 hex characters")
	decrypt.Flags().String("data", "", "Enciphered track 2 data in hex")
	decrypt.Flags().String("bdk-type", dukpt.AES128.String(), "BDK key type")
	decrypt.Flags().String("wk-type", dukpt.AES128.String(), "Working key type")

	for _, name := range []string{"bdk", "ksn", "iv", "data"} {
		if err := decrypt.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(decrypt)

	return cmd
}

func runDecrypt(cmd *cobra.Command, _ []string) error {
	bdkHex, _ := cmd.Flags().GetString("bdk")
	ksnHex, _ := cmd.Flags().GetString("ksn")
	ivHex, _ := cmd.Flags().GetString("iv")
	dataHex, _ := cmd.Flags().GetString("data")
	bdkTypeName, _ := cmd.Flags().GetString("bdk-type")
	wkTypeName, _ := cmd.Flags().GetString("wk-type")

	bdkType, err := dukpt.ParseKeyType(bdkTypeName)
	if err != nil {
		return err
	}
	wkType, err := dukpt.ParseKeyType(wkTypeName)
	if err != nil {
		return err
	}
	ksn, err := dukpt.ParseKSN(ksnHex)
	if err != nil {
		return err
	}

	decoded := make(map[string][]byte, 3)
	for name, s := range map[string]string{"bdk": bdkHex, "iv": ivHex, "data": dataHex} {
		raw, err := cryptoutils.Str2Raw(s)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		decoded[name] = raw
	}

	data, err := track2.DecryptWithBDK(dukpt.NewEngine(), decoded["bdk"], bdkType, wkType, ksn, decoded["iv"], decoded["data"])
	if err != nil {
		return fmt.Errorf("failed to decrypt track 2: %w", err)
	}

	cmd.Printf("Track 2: %s\n", data)
	if pan, err := data.PAN(); err == nil {
		cmd.Printf("PAN: %s\n", pan)
	}
	if exp, ok := data.Expiry(); ok {
		cmd.Printf("Expiry (YYMM): %s\n", exp)
	}

	return nil
}
