// Package server provides server-related CLI commands.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/internal/config"
	"github.com/andrei-cloud/go_dukpt/internal/host"
	"github.com/andrei-cloud/go_dukpt/internal/host/logic"
	"github.com/andrei-cloud/go_dukpt/internal/logging"
	"github.com/andrei-cloud/go_dukpt/internal/server"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo DUKPT host",
		Long: `Start the demo DUKPT host to process two-letter commands over TCP.
Keys are derived from the demo base derivation keys in the configuration.
Send SIGHUP to reload the configuration without dropping connections.`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 1500, "Server port")

	config.BindFlag("server.host", cmd.Flags().Lookup("host"))
	config.BindFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	h, err := host.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize host: %w", err)
	}
	logLoaded(h)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv, err := server.NewServer(serverAddr, h)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	// Reload configuration on SIGHUP.
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(reloadChan)
	go func() {
		for range reloadChan {
			log.Info().Msg("reloading configuration...")
			if err := config.Initialize(); err != nil {
				log.Error().Err(err).Msg("failed to reload configuration")
				continue
			}
			reloaded := config.Get()
			logging.Setup(reloaded.Log.Level, reloaded.Log.Format)

			newHost, err := host.FromConfig(reloaded)
			if err != nil {
				log.Error().Err(err).Msg("failed to rebuild host from configuration")
				continue
			}
			srv.SetProvider(newHost)
			logLoaded(newHost)
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	for {
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			errChan = nil
		case <-stopChan:
			log.Info().Msg("shutting down server...")
			if err := srv.Stop(); err != nil {
				log.Error().Err(err).Msg("error during server shutdown")
			}

			return nil
		case <-cmd.Context().Done():
			if err := srv.Stop(); err != nil {
				log.Error().Err(err).Msg("error during server shutdown")
			}

			return nil
		}
	}
}

// loadedKeys is the part of the host reported at startup and reload.
type loadedKeys interface {
	BDKCheckValue(ks host.Keyset) (string, error)
	BDKKeyType() dukpt.KeyType
	WorkingKeyType() dukpt.KeyType
	CanWrap() bool
}

func logLoaded(h loadedKeys) {
	ev := log.Info().
		Str("bdk_key_type", h.BDKKeyType().String()).
		Str("working_key_type", h.WorkingKeyType().String()).
		Bool("wrapping", h.CanWrap())
	for _, ks := range []host.Keyset{host.CardKeyset, host.PinKeyset} {
		field := ks.String() + "_bdk_kcv"
		kcv, err := h.BDKCheckValue(ks)
		if err != nil {
			log.Error().
				Str("event", "kcv_failed").
				Str("keyset", ks.String()).
				Err(err).
				Msg("cannot compute bdk check value")
		}
		ev = ev.Str(field, kcv)
	}
	ev.Msg("demo host keys loaded")

	for _, c := range logic.Commands() {
		log.Debug().
			Str("command", c.Code).
			Str("description", c.Description).
			Msg("command registered")
	}
}
