// defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// DefaultBatchSize is the number of legacy rows fetched per batch during
// user reconciliation.
const DefaultBatchSize = 100

// DefaultBadTokenPrefix marks tokens issued by the compromised legacy
// panel; the token hygiene pass voids every token starting with it.
const DefaultBadTokenPrefix = "legacy-"

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("source.sqlite.enabled", false)
	viper.SetDefault("source.sqlite.path", "legacy.db")
	viper.SetDefault("source.mysql.enabled", true)
	viper.SetDefault("source.mysql.username", "user")
	viper.SetDefault("source.mysql.password", "")
	viper.SetDefault("source.mysql.database", "user")
	viper.SetDefault("source.mysql.host", "localhost")
	viper.SetDefault("source.mysql.port", "3306")

	viper.SetDefault("target.sqlite.enabled", false)
	viper.SetDefault("target.sqlite.path", "panel.db")
	viper.SetDefault("target.mysql.enabled", true)
	viper.SetDefault("target.mysql.username", "stellarfrp")
	viper.SetDefault("target.mysql.password", "")
	viper.SetDefault("target.mysql.database", "stellarfrp")
	viper.SetDefault("target.mysql.host", "localhost")
	viper.SetDefault("target.mysql.port", "3306")

	viper.SetDefault("migration.batchsize", DefaultBatchSize)
	viper.SetDefault("migration.badtokenprefix", DefaultBadTokenPrefix)
}

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string // Viper config key
	EnvVar    string // Environment variable name
}

// getEnvBindings returns all environment variable bindings. Credentials are
// deliberately env-overridable so they can be kept out of the config file.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "PANELSYNC_DEBUG"},

		{"source.mysql.username", "PANELSYNC_SOURCE_DB_USER"},
		{"source.mysql.password", "PANELSYNC_SOURCE_DB_PASSWORD"},
		{"source.mysql.database", "PANELSYNC_SOURCE_DB_NAME"},
		{"source.mysql.host", "PANELSYNC_SOURCE_DB_HOST"},
		{"source.mysql.port", "PANELSYNC_SOURCE_DB_PORT"},

		{"target.mysql.username", "PANELSYNC_TARGET_DB_USER"},
		{"target.mysql.password", "PANELSYNC_TARGET_DB_PASSWORD"},
		{"target.mysql.database", "PANELSYNC_TARGET_DB_NAME"},
		{"target.mysql.host", "PANELSYNC_TARGET_DB_HOST"},
		{"target.mysql.port", "PANELSYNC_TARGET_DB_PORT"},

		{"migration.batchsize", "PANELSYNC_BATCH_SIZE"},
		{"migration.badtokenprefix", "PANELSYNC_BAD_TOKEN_PREFIX"},
	}
}

// bindEnvVars sets up environment variable bindings (internal)
func bindEnvVars() {
	for _, binding := range getEnvBindings() {
		// BindEnv only fails on an empty key, which getEnvBindings never produces
		_ = viper.BindEnv(binding.ConfigKey, binding.EnvVar)
	}
}
