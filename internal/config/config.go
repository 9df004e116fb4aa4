package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const dirName = ".go_dukpt"

var (
	configData Config
	v          *viper.Viper
	configFile string
	bindings   = map[string]*pflag.Flag{}
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
	// DUKPT key types used by the demo host
	Dukpt struct {
		BDKKeyType     string `mapstructure:"bdk_key_type"`
		WorkingKeyType string `mapstructure:"working_key_type"`
	}
	// Demo base derivation keys, hex encoded. Never use these outside a lab.
	Keys struct {
		CardBDK string `mapstructure:"card_bdk"`
		PinBDK  string `mapstructure:"pin_bdk"`
	}
	// Initial key transport
	Keywrap struct {
		PublicKeyFile string `mapstructure:"public_key_file"`
		Method        string
		KEKAlias      string `mapstructure:"kek_alias"`
	}
}

// Initialize sets up the configuration system.
func Initialize() error {
	v = viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/" + dirName)
	v.AddConfigPath("/etc/go_dukpt/")

	setDefaults()

	for key, flag := range bindings {
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	// Environment variables: GODUKPT_SERVER_PORT, GODUKPT_KEYS_CARD_BDK, ...
	v.SetEnvPrefix("GODUKPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if err := ensureConfig(); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	configData = Config{}
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// SetConfigFile makes Initialize read path instead of searching the default locations.
func SetConfigFile(path string) {
	configFile = path
}

// BindFlag lets a command line flag override the configuration key when set.
func BindFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		bindings[key] = flag
	}
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")

	v.SetDefault("dukpt.bdk_key_type", "AES128")
	v.SetDefault("dukpt.working_key_type", "AES128")

	v.SetDefault("keys.card_bdk", strings.Repeat("F1", 16))
	v.SetDefault("keys.pin_bdk", strings.Repeat("F2", 16))

	v.SetDefault("keywrap.public_key_file", "")
	v.SetDefault("keywrap.method", "oaep")
	v.SetDefault("keywrap.kek_alias", "kek")
}

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	dir := filepath.Join(os.Getenv("HOME"), dirName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := `# GO DUKPT Configuration File
server:
  host: localhost
  port: 1500

log:
  level: info
  format: human

dukpt:
  bdk_key_type: AES128
  working_key_type: AES128

# DEMO ONLY base derivation keys. Load production BDKs from an HSM.
keys:
  card_bdk: F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1
  pin_bdk: F2F2F2F2F2F2F2F2F2F2F2F2F2F2F2F2

keywrap:
  public_key_file: ""
  method: oaep
  kek_alias: kek
`
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}
