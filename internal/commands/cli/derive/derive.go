// Package derive provides the AES DUKPT derivation commands.
package derive

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
	"github.com/andrei-cloud/go_dukpt/pkg/keywrap"
)

// NewDukptCommand creates the dukpt command group.
func NewDukptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dukpt",
		Short: "AES DUKPT key derivation",
		Long: `AES DUKPT (ANSI X9.24-3) key derivation utilities.
Derive initial keys from a base derivation key, working keys for a key serial
number, walk the transaction counter and explore derivations interactively.`,
	}

	cmd.AddCommand(newInitialKeyCommand())
	cmd.AddCommand(newWorkingKeyCommand())
	cmd.AddCommand(newNextKSNCommand())
	cmd.AddCommand(newUsagesCommand())
	cmd.AddCommand(newExploreCommand())

	return cmd
}

func newInitialKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ik",
		Short: "Derive an initial key from a BDK",
		Long: `Derive the initial DUKPT key loaded into a terminal from the base
derivation key and an 8-byte initial key ID. A random initial key ID is
generated when none is given.`,
		Example: `  go_dukpt dukpt ik --bdk FEDCBA9876543210F1F1F1F1F1F1F1F1 --ikid 1234567890123456`,
		RunE:    runInitialKey,
	}

	cmd.Flags().String("bdk", "", "Base derivation key in hex")
	cmd.Flags().String("ikid", "", "Initial key ID, 16 hex characters (random if empty)")
	cmd.Flags().String("type", dukpt.AES128.String(), "BDK key type (AES128, AES192, AES256)")

	if err := cmd.MarkFlagRequired("bdk"); err != nil {
		panic(err)
	}

	return cmd
}

func newWorkingKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wk",
		Short: "Derive a working key for a KSN",
		Long: `Derive the working key for a key serial number, either from the base
derivation key (--bdk) or from the terminal's initial key (--ik).`,
		Example: `  go_dukpt dukpt wk --bdk FEDCBA9876543210F1F1F1F1F1F1F1F1 --ksn 123456789012345600000001 --usage PinEncryption
  go_dukpt dukpt wk --ik 1273671EA26AC29AFA4D1084127652A1 --ksn 12345678901234560001FFFE --usage 2000`,
		RunE: runWorkingKey,
	}

	cmd.Flags().String("bdk", "", "Base derivation key in hex")
	cmd.Flags().String("ik", "", "Initial key in hex")
	cmd.Flags().String("ksn", "", "Key serial number, 24 hex characters")
	cmd.Flags().String("usage", dukpt.PinEncryption.String(), "Working key usage name or indicator")
	cmd.Flags().String("type", dukpt.AES128.String(), "BDK or initial key type")
	cmd.Flags().String("wk-type", dukpt.AES128.String(), "Working key type")
	cmd.MarkFlagsOneRequired("bdk", "ik")
	cmd.MarkFlagsMutuallyExclusive("bdk", "ik")

	if err := cmd.MarkFlagRequired("ksn"); err != nil {
		panic(err)
	}

	return cmd
}

func newNextKSNCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-ksn",
		Short: "Advance a KSN the way a terminal does",
		Long: `Print the key serial numbers a terminal uses after the given one.
Counters with more than 16 one bits are skipped.`,
		Example: `  go_dukpt dukpt next-ksn --ksn 12345678901234560000FFFF --count 3`,
		RunE:    runNextKSN,
	}

	cmd.Flags().String("ksn", "", "Key serial number, 24 hex characters")
	cmd.Flags().Int("count", 1, "Number of key serial numbers to print")

	if err := cmd.MarkFlagRequired("ksn"); err != nil {
		panic(err)
	}

	return cmd
}

func newUsagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usages",
		Short: "List key types and key usages",
		RunE:  runUsages,
	}
}

func runInitialKey(cmd *cobra.Command, _ []string) error {
	bdkHex, _ := cmd.Flags().GetString("bdk")
	ikidHex, _ := cmd.Flags().GetString("ikid")
	typeName, _ := cmd.Flags().GetString("type")

	keyType, err := dukpt.ParseKeyType(typeName)
	if err != nil {
		return err
	}
	bdk, err := decodeHex("bdk", bdkHex)
	if err != nil {
		return err
	}

	var ikid []byte
	if ikidHex == "" {
		ikid = keywrap.NewInitialKeyID()
	} else if ikid, err = decodeHex("ikid", ikidHex); err != nil {
		return err
	}

	ik, err := dukpt.DeriveInitialKeyByBDK(bdk, keyType, ikid)
	if err != nil {
		return fmt.Errorf("failed to derive initial key: %w", err)
	}
	kcv, err := cryptoutils.KeyCheckValueHex(ik)
	if err != nil {
		return err
	}

	cmd.Printf("Key Type: %s\n", keyType)
	cmd.Printf("Initial Key ID: %s\n", cryptoutils.Raw2Str(ikid))
	cmd.Printf("Initial Key: %s\n", cryptoutils.Raw2Str(ik))
	cmd.Printf("KCV: %s\n", kcv)

	return nil
}

func runWorkingKey(cmd *cobra.Command, _ []string) error {
	bdkHex, _ := cmd.Flags().GetString("bdk")
	ikHex, _ := cmd.Flags().GetString("ik")
	ksnHex, _ := cmd.Flags().GetString("ksn")
	usageName, _ := cmd.Flags().GetString("usage")
	typeName, _ := cmd.Flags().GetString("type")
	wkTypeName, _ := cmd.Flags().GetString("wk-type")

	keyType, err := dukpt.ParseKeyType(typeName)
	if err != nil {
		return err
	}
	wkType, err := dukpt.ParseKeyType(wkTypeName)
	if err != nil {
		return err
	}
	usage, err := dukpt.ParseKeyUsage(usageName)
	if err != nil {
		return err
	}
	ksn, err := dukpt.ParseKSN(ksnHex)
	if err != nil {
		return err
	}

	var wk []byte
	if bdkHex != "" {
		bdk, err := decodeHex("bdk", bdkHex)
		if err != nil {
			return err
		}
		wk, err = dukpt.DeriveWorkingKeyByBDK(bdk, keyType, wkType, usage, ksn)
		if err != nil {
			return fmt.Errorf("failed to derive working key: %w", err)
		}
	} else {
		ik, err := decodeHex("ik", ikHex)
		if err != nil {
			return err
		}
		wk, err = dukpt.DeriveWorkingKeyByInitialKey(ik, keyType, usage, wkType, ksn)
		if err != nil {
			return fmt.Errorf("failed to derive working key: %w", err)
		}
	}

	kcv, err := cryptoutils.KeyCheckValueHex(wk)
	if err != nil {
		return err
	}

	cmd.Printf("KSN: %s\n", ksn)
	cmd.Printf("Usage: %s (%04X)\n", usage, usage.Indicator())
	cmd.Printf("Derivations: %d\n", ksn.Derivations())
	cmd.Printf("Working Key: %s\n", cryptoutils.Raw2Str(wk))
	cmd.Printf("KCV: %s\n", kcv)
	if ksn.ExceedsLegacyCounter() {
		cmd.Println("Warning: counter uses bits above the 21-bit legacy range")
	}

	return nil
}

func runNextKSN(cmd *cobra.Command, _ []string) error {
	ksnHex, _ := cmd.Flags().GetString("ksn")
	count, _ := cmd.Flags().GetInt("count")

	ksn, err := dukpt.ParseKSN(ksnHex)
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	for range count {
		if ksn, err = ksn.Next(); err != nil {
			return err
		}
		cmd.Println(ksn.String())
	}

	return nil
}

func runUsages(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "Key Type\tAlgorithm\tBits")
	fmt.Fprintln(w, "--------\t---------\t----")
	for _, kt := range dukpt.KeyTypes() {
		fmt.Fprintf(w, "%s\t%04X\t%d\n", kt, kt.AlgorithmIndicator(), kt.Bits())
	}

	fmt.Fprintln(w, "\t\t")
	fmt.Fprintln(w, "Key Usage\tIndicator\t")
	fmt.Fprintln(w, "---------\t---------\t")
	for _, ku := range dukpt.KeyUsages() {
		fmt.Fprintf(w, "%s\t%04X\t\n", ku, ku.Indicator())
	}

	return nil
}

func decodeHex(name, s string) ([]byte, error) {
	raw, err := cryptoutils.Str2Raw(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	return raw, nil
}
