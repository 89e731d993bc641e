// Package conf handles the configuration of the panelsync tool. It defines
// the settings struct and functions to load and save the settings.
package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SQLiteSettings contains SQLite database connection settings.
type SQLiteSettings struct {
	Enabled bool   // true to use SQLite for this store
	Path    string // path to the SQLite database file
}

// MySQLSettings contains MySQL database connection settings.
type MySQLSettings struct {
	Enabled  bool   // true to use MySQL for this store
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL server host
	Port     string // MySQL server port
}

// StoreSettings selects and configures the backend for one database.
type StoreSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// MigrationSettings contains settings for the user reconciliation run.
type MigrationSettings struct {
	BatchSize      int    // number of legacy rows fetched per batch
	BadTokenPrefix string // tokens starting with this prefix are voided
}

// Settings is the complete configuration of a panelsync run.
type Settings struct {
	Debug bool // true to enable debug level logging

	Source    StoreSettings // legacy account database, read-only
	Target    StoreSettings // panel database being reconciled into
	Migration MigrationSettings
}

var (
	settingsInstance *Settings
	loadErr          error
	once             sync.Once
)

// Load reads the configuration from the config file, environment and
// defaults, in ascending order of precedence: defaults, config file,
// environment variables. The result, error included, is cached so every
// caller sees the same outcome.
func Load() (*Settings, error) {
	once.Do(func() {
		settingsInstance, loadErr = loadSettings()
	})
	return settingsInstance, loadErr
}

func loadSettings() (*Settings, error) {
	// A .env file is optional; ignore a missing one.
	_ = godotenv.Load()

	if err := initViper(); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	return settings, nil
}

func initViper() error {
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName("config")

	setDefaultConfig()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, create it from the defaults
		configPath := filepath.Join(configPaths[0], "config.yaml")
		if createErr := createDefaultConfig(configPath); createErr != nil {
			// A read-only config dir is not fatal, defaults still apply
			slog.Warn("unable to write default config file",
				"path", configPath, "error", createErr)
		}
	}

	return nil
}

// GetDefaultConfigPaths returns the config file search paths in priority
// order: current directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	return []string{".", filepath.Join(homeDir, ".config", "panelsync")}, nil
}

// createDefaultConfig writes the default settings to the given path so the
// operator has a template to edit.
func createDefaultConfig(configPath string) error {
	defaults := &Settings{}
	if err := viper.Unmarshal(defaults); err != nil {
		return fmt.Errorf("error unmarshaling default config: %w", err)
	}

	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	slog.Info("created default config file", "path", configPath)
	return nil
}
