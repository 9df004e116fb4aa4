// Package cli provides centralized command registration.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/internal/commands/cli/derive"
	"github.com/andrei-cloud/go_dukpt/internal/commands/cli/keywrap"
	"github.com/andrei-cloud/go_dukpt/internal/commands/cli/pb"
	"github.com/andrei-cloud/go_dukpt/internal/commands/cli/server"
	"github.com/andrei-cloud/go_dukpt/internal/commands/cli/track2"
)

// RegisterCommands registers all root commands.
func RegisterCommands(root *cobra.Command) error {
	root.AddCommand(derive.NewDukptCommand())

	pinblockCmd, err := pb.NewPinBlockCommand()
	if err != nil {
		return fmt.Errorf("failed to create pinblock command: %w", err)
	}
	root.AddCommand(pinblockCmd)

	root.AddCommand(track2.NewTrack2Command())
	root.AddCommand(keywrap.NewKeywrapCommand())
	root.AddCommand(server.NewServeCommand())

	return nil
}
