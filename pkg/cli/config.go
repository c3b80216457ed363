package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the resolved configuration: flags override the environment,
// which overrides the config file.
type Config struct {
	StorePath string
	Backend   string
	LogLevel  string
	LogFormat string
	Addr      string
	BodyLimit string
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tarjama")
	}

	// TARJAMA_STORE_PATH, TARJAMA_SERVER_ADDR, ...
	viper.SetEnvPrefix("TARJAMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// LoadConfig reads the resolved configuration from viper.
func LoadConfig() (Config, error) {
	cfg := Config{
		StorePath: viper.GetString("store.path"),
		Backend:   strings.ToLower(viper.GetString("store.backend")),
		LogLevel:  viper.GetString("log.level"),
		LogFormat: viper.GetString("log.format"),
		Addr:      viper.GetString("server.addr"),
		BodyLimit: viper.GetString("server.body_limit"),
	}
	switch cfg.Backend {
	case "", BackendFile:
		cfg.Backend = BackendFile
	case BackendSQLite:
	default:
		return Config{}, fmt.Errorf("unknown store backend %q (want %s or %s)", cfg.Backend, BackendFile, BackendSQLite)
	}
	if cfg.StorePath == "" {
		return Config{}, fmt.Errorf("store path must be set")
	}
	return cfg, nil
}
