package scriptrunner

import (
	"fmt"
	"strings"
	"time"
)

// Supported values for Config.Driver.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "pg"
	DriverSQLite    = "sqlite3"
)

// Connection holds the parameters shared by the history store and the batch client.
type Connection struct {
	// Server is the host name (or host\instance for SQL Server).
	Server string `mapstructure:"server" json:"server,omitempty"`

	// Port is optional; zero means the driver default.
	Port int `mapstructure:"port" json:"port,omitempty"`

	// Database is the target database name, or the file path for SQLite.
	Database string `mapstructure:"database" json:"database,omitempty"`

	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`

	// Options are appended to the connection string query (e.g. sslmode, encrypt).
	Options map[string]string `mapstructure:"options" json:"options,omitempty"`
}

// ClientConfig describes how the external batch client is launched.
type ClientConfig struct {
	// Command is the client binary. Empty selects the dialect default.
	Command string `mapstructure:"command" json:"command,omitempty"`

	// Args are appended after the generated arguments.
	Args []string `mapstructure:"args" json:"args,omitempty"`

	// Env holds extra KEY=VALUE entries added to the client environment.
	Env []string `mapstructure:"env" json:"env,omitempty"`

	// Timeout bounds a single script execution. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty"`
}

// LoggingConfig is consumed by internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level,omitempty"`
	Format string `mapstructure:"format" json:"format,omitempty"`
	Output string `mapstructure:"output" json:"output,omitempty"`
}

// Config holds settings for a run.
type Config struct {
	// Driver selects the SQL dialect: "sqlserver", "pg" or "sqlite3".
	Driver string `mapstructure:"driver" json:"driver,omitempty"`

	Connection Connection `mapstructure:"connection" json:"connection"`

	// ScriptsDirectory is scanned (non-recursively) for scripts.
	ScriptsDirectory string `mapstructure:"scriptsDirectory" json:"scriptsDirectory,omitempty"`

	// ScriptExtension selects which files count as scripts.
	ScriptExtension string `mapstructure:"scriptExtension" json:"scriptExtension,omitempty"`

	// HistoryTable is the name of the table outcomes are recorded in.
	HistoryTable string `mapstructure:"historyTable" json:"historyTable,omitempty"`

	Client ClientConfig `mapstructure:"client" json:"client"`

	// RunTimeout bounds the whole run. Zero disables it.
	RunTimeout time.Duration `mapstructure:"runTimeout" json:"runTimeout,omitempty"`

	// HaltOnFailure stops the run after the first failed script.
	HaltOnFailure bool `mapstructure:"haltOnFailure" json:"haltOnFailure,omitempty"`

	// PersistDiagnostics stores the client's error output in the history table
	// instead of a generic placeholder.
	PersistDiagnostics bool `mapstructure:"persistDiagnostics" json:"persistDiagnostics,omitempty"`

	// FailOnScriptError makes the CLI exit non-zero when any script failed.
	FailOnScriptError bool `mapstructure:"failOnScriptError" json:"failOnScriptError,omitempty"`

	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	Driver:             DriverSQLServer,
	Connection:         Connection{Server: "localhost"},
	ScriptsDirectory:   "./Scripts",
	ScriptExtension:    ".sql",
	HistoryTable:       "MigrationHistory",
	PersistDiagnostics: true,
	FailOnScriptError:  true,
	Logging: LoggingConfig{
		Level:  "info",
		Format: "console",
		Output: "stdout",
	},
}

// Normalize fills empty fields from DefaultConfig and lower-cases the driver.
// Boolean switches are left as they are.
func (c *Config) Normalize() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DefaultConfig.Driver
	}
	if c.Connection.Server == "" {
		c.Connection.Server = DefaultConfig.Connection.Server
	}
	if c.ScriptsDirectory == "" {
		c.ScriptsDirectory = DefaultConfig.ScriptsDirectory
	}
	if c.ScriptExtension == "" {
		c.ScriptExtension = DefaultConfig.ScriptExtension
	}
	if !strings.HasPrefix(c.ScriptExtension, ".") {
		c.ScriptExtension = "." + c.ScriptExtension
	}
	if c.HistoryTable == "" {
		c.HistoryTable = DefaultConfig.HistoryTable
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultConfig.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultConfig.Logging.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultConfig.Logging.Output
	}
}

// Validate reports the first problem that would stop a run from starting.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLServer, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: driver '%s' not supported. Must be one of: sqlserver, pg or sqlite3", ErrConfiguration, c.Driver)
	}
	if strings.TrimSpace(c.Connection.Database) == "" {
		return fmt.Errorf("%w: connection.database is required", ErrConfiguration)
	}
	if strings.TrimSpace(c.ScriptsDirectory) == "" {
		return fmt.Errorf("%w: scriptsDirectory is required", ErrConfiguration)
	}
	if c.Client.Timeout < 0 {
		return fmt.Errorf("%w: client.timeout must not be negative", ErrConfiguration)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("%w: runTimeout must not be negative", ErrConfiguration)
	}
	if !isIdentifier(c.HistoryTable) {
		return fmt.Errorf("%w: historyTable '%s' is not a valid table name", ErrConfiguration, c.HistoryTable)
	}
	return nil
}

// isIdentifier accepts plain or schema-qualified names made of letters, digits and underscores.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
