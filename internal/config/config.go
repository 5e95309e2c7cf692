// Package config loads the runner settings file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/rodneyphillip80/ScriptRunner"
)

// DefaultPath is used when no settings file is given.
const DefaultPath = "appsettings.json"

// EnvPrefix prefixes environment overrides, e.g. SCRIPTRUNNER_CONNECTION_PASSWORD.
const EnvPrefix = "SCRIPTRUNNER"

// Load reads the JSON settings file at path, applies environment overrides and
// validates the result. Every failure wraps scriptrunner.ErrConfiguration.
//
// A missing file at DefaultPath is tolerated so the runner can be configured
// entirely from the environment; a missing explicit path is an error.
func Load(path string) (scriptrunner.Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(path) {
			return scriptrunner.Config{}, fmt.Errorf("%w: failed to read config file: %w", scriptrunner.ErrConfiguration, err)
		}
	}

	var cfg scriptrunner.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return scriptrunner.Config{}, fmt.Errorf("%w: failed to unmarshal config: %w", scriptrunner.ErrConfiguration, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return scriptrunner.Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := scriptrunner.DefaultConfig
	v.SetDefault("driver", d.Driver)
	v.SetDefault("connection.server", d.Connection.Server)
	v.SetDefault("connection.port", 0)
	v.SetDefault("connection.database", "")
	v.SetDefault("connection.user", "")
	v.SetDefault("connection.password", "")
	v.SetDefault("scriptsDirectory", d.ScriptsDirectory)
	v.SetDefault("scriptExtension", d.ScriptExtension)
	v.SetDefault("historyTable", d.HistoryTable)
	v.SetDefault("client.command", "")
	v.SetDefault("client.args", []string{})
	v.SetDefault("client.env", []string{})
	v.SetDefault("client.timeout", "0s")
	v.SetDefault("runTimeout", "0s")
	v.SetDefault("haltOnFailure", false)
	v.SetDefault("persistDiagnostics", d.PersistDiagnostics)
	v.SetDefault("failOnScriptError", d.FailOnScriptError)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
}

func isNotExist(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}
