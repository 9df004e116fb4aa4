// Package pb provides PIN block related commands.
package pb

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/pinblock"
)

var errKeyOrDukpt = errors.New("either --key or both --bdk and --ksn are required for format 4")

// NewPinBlockCommand creates the pinblock command with subcommands.
func NewPinBlockCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "pinblock",
		Short: "PIN block operations",
		Long: `ISO 9564-1 PIN block operations for formats 0 to 4.
Format 4 blocks are enciphered under an AES PIN key, given directly or derived
with DUKPT from a base derivation key and key serial number.`,
		Example: `  # Generate a PIN block
  go_dukpt pinblock create --pin 1234 --pan 4111111111111111 --format 0

  # Generate an enciphered format 4 PIN block under a DUKPT PIN key
  go_dukpt pinblock create --pin 1234 --pan 4111111111111111 --format 4 \
    --bdk FEDCBA9876543210F1F1F1F1F1F1F1F1 --ksn 123456789012345600000001

  # List supported formats
  go_dukpt pinblock formats`,
	}

	createCmd, err := newCreateCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'create' subcommand: %w", err)
	}
	cmd.AddCommand(createCmd)

	extractCmd, err := newExtractCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'extract' subcommand: %w", err)
	}
	cmd.AddCommand(extractCmd)

	decryptCmd, err := newDecryptCommand()
	if err != nil {
		return nil, fmt.Errorf("failed to create 'decrypt' subcommand: %w", err)
	}
	cmd.AddCommand(decryptCmd)

	cmd.AddCommand(newFormatsCommand())

	return cmd, nil
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "AES-128 PIN key in hex (format 4)")
	cmd.Flags().String("bdk", "", "Base derivation key in hex, derives the PIN key with --ksn")
	cmd.Flags().String("ksn", "", "Key serial number, 24 hex characters")
	cmd.Flags().String("bdk-type", dukpt.AES128.String(), "BDK key type")
	cmd.MarkFlagsMutuallyExclusive("key", "bdk")
	cmd.MarkFlagsRequiredTogether("bdk", "ksn")
}

func newCreateCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a PIN block",
		Long: `Generate a PIN block using specified PIN, PAN, and format.
The PIN should be 4-12 digits. A PAN is required for formats 0, 3 and 4.
The format may be given as a number (0-4), a name (ISO0) or a Thales code (01).`,
		Example: `  # Generate ISO Format 0 PIN block
  go_dukpt pinblock create --pin 1234 --pan 4111111111111111 --format 01

  # Generate ISO Format 4 PIN block under a clear AES key
  go_dukpt pinblock create --pin 1234 --pan 4111111111111111 --format 4 --key 00112233445566778899AABBCCDDEEFF`,
		RunE: runCreate,
	}

	cmd.Flags().String("pin", "", "PIN number (4-12 digits)")
	cmd.Flags().String("pan", "", "Primary Account Number (card number)")
	cmd.Flags().String("format", "", "PIN block format (0-4, ISO0-ISO4 or Thales code)")
	addKeyFlags(cmd)

	if err := cmd.MarkFlagRequired("pin"); err != nil {
		return nil, fmt.Errorf("failed to mark pin flag as required: %w", err)
	}
	if err := cmd.MarkFlagRequired("format"); err != nil {
		return nil, fmt.Errorf("failed to mark format flag as required: %w", err)
	}

	return cmd, nil
}

func newExtractCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract PIN from a clear PIN block",
		Long: `Extract the PIN from a clear format 0 to 3 PIN block.
Requires the PIN block as a hex string and, for formats 0 and 3, the PAN
used during generation.`,
		Example: `  go_dukpt pinblock extract --pinblock 0612AC20ABCDEF67 --pan 43219876543210987 --format 0`,
		RunE:    runExtract,
	}

	cmd.Flags().String("pinblock", "", "PIN block hex string to extract PIN from")
	cmd.Flags().String("pan", "", "Primary Account Number (card number)")
	cmd.Flags().String("format", "", "PIN block format (0-3)")

	if err := cmd.MarkFlagRequired("pinblock"); err != nil {
		return nil, fmt.Errorf("failed to mark pinblock flag as required: %w", err)
	}
	if err := cmd.MarkFlagRequired("format"); err != nil {
		return nil, fmt.Errorf("failed to mark format flag as required: %w", err)
	}

	return cmd, nil
}

func newDecryptCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a format 4 PIN block (test use only)",
		Long: `Decrypt an ISO format 4 enciphered PIN block and print the clear PIN.
This exposes a clear PIN and exists for test and demo verification only.`,
		Example: `  go_dukpt pinblock decrypt --epb <32 hex> --pan 4111111111111111 \
    --bdk FEDCBA9876543210F1F1F1F1F1F1F1F1 --ksn 123456789012345600000001`,
		RunE: runDecrypt,
	}

	cmd.Flags().String("epb", "", "Enciphered PIN block, 32 hex characters")
	cmd.Flags().String("pan", "", "Primary Account Number (card number)")
	addKeyFlags(cmd)

	if err := cmd.MarkFlagRequired("epb"); err != nil {
		return nil, fmt.Errorf("failed to mark epb flag as required: %w", err)
	}
	if err := cmd.MarkFlagRequired("pan"); err != nil {
		return nil, fmt.Errorf("failed to mark pan flag as required: %w", err)
	}

	return cmd, nil
}

func newFormatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List supported PIN block formats",
		Long: `List all supported PIN block formats.
Shows the format number, Thales code, block length and whether a PAN is needed.`,
		Example: `  go_dukpt pinblock formats`,
		RunE:    runFormats,
	}

	return cmd
}

// pinKey returns the format 4 PIN key from --key, or derives the
// PinEncryption working key from --bdk and --ksn.
func pinKey(cmd *cobra.Command) ([]byte, error) {
	keyHex, _ := cmd.Flags().GetString("key")
	bdkHex, _ := cmd.Flags().GetString("bdk")
	ksnHex, _ := cmd.Flags().GetString("ksn")
	bdkTypeName, _ := cmd.Flags().GetString("bdk-type")

	switch {
	case keyHex != "":
		return cryptoutils.Str2Raw(keyHex)
	case bdkHex != "" && ksnHex != "":
		bdkType, err := dukpt.ParseKeyType(bdkTypeName)
		if err != nil {
			return nil, err
		}
		bdk, err := cryptoutils.Str2Raw(bdkHex)
		if err != nil {
			return nil, fmt.Errorf("invalid bdk: %w", err)
		}
		ksn, err := dukpt.ParseKSN(ksnHex)
		if err != nil {
			return nil, err
		}

		return dukpt.DeriveWorkingKeyByBDK(bdk, bdkType, dukpt.AES128, dukpt.PinEncryption, ksn)
	default:
		return nil, errKeyOrDukpt
	}
}

func runCreate(cmd *cobra.Command, _ []string) error {
	pin, _ := cmd.Flags().GetString("pin")
	pan, _ := cmd.Flags().GetString("pan")
	formatName, _ := cmd.Flags().GetString("format")

	format, err := pinblock.ParseFormat(formatName)
	if err != nil {
		return err
	}

	var key []byte
	if format == pinblock.ISO4 {
		if key, err = pinKey(cmd); err != nil {
			return err
		}
		defer clear(key)
	}

	result, err := pinblock.GetPinBlock(pin, format, pan, key)
	if err != nil {
		return err
	}

	cmd.Printf("PIN block generated (format %s): %s\n", format, result)

	return nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	pinblockHex, _ := cmd.Flags().GetString("pinblock")
	pan, _ := cmd.Flags().GetString("pan")
	formatName, _ := cmd.Flags().GetString("format")

	format, err := pinblock.ParseFormat(formatName)
	if err != nil {
		return err
	}

	result, err := pinblock.DecodeHex(pinblockHex, format, pan)
	if err != nil {
		return err
	}

	cmd.Printf("PIN extracted (format %s): %s\n", format, result)

	return nil
}

func runDecrypt(cmd *cobra.Command, _ []string) error {
	epbHex, _ := cmd.Flags().GetString("epb")
	pan, _ := cmd.Flags().GetString("pan")

	epb, err := cryptoutils.Str2Raw(epbHex)
	if err != nil {
		return fmt.Errorf("invalid epb: %w", err)
	}
	key, err := pinKey(cmd)
	if err != nil {
		return err
	}
	defer clear(key)

	pin, err := pinblock.DangerouslyDecryptISO4ToPIN(key, epb, pan)
	if err != nil {
		return err
	}

	cmd.Printf("PIN decrypted (format %s): %s\n", pinblock.ISO4, pin)

	return nil
}

func runFormats(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "Format\tNumber\tThales\tBlock\tPAN")
	fmt.Fprintln(w, "------\t------\t------\t-----\t---")
	for _, f := range pinblock.SupportedFormats() {
		pan := "no"
		if f.RequiresPan() {
			pan = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", f, f.Nibble(), f.ThalesCode(), f.BlockLength(), pan)
	}

	return nil
}
