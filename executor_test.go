package scriptrunner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOutcomeDiagnostic(t *testing.T) {
	assert.Equal(t, "boom", Outcome{Stderr: " boom\n", Stdout: "out"}.Diagnostic())
	assert.Equal(t, "out", Outcome{Stdout: "out\n"}.Diagnostic())
	assert.Equal(t, "exit code 3", Outcome{ExitCode: 3}.Diagnostic())
}

func TestNewClientExecutorUnknownDriver(t *testing.T) {
	cfg := DefaultConfig
	cfg.Driver = "oracle"
	_, err := NewClientExecutor(cfg, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestClientExecutorCommand(t *testing.T) {
	for driver, want := range map[string]string{
		DriverSQLServer: "sqlcmd",
		DriverPostgres:  "psql",
		DriverSQLite:    "sqlite3",
	} {
		cfg := DefaultConfig
		cfg.Driver = driver
		e, err := NewClientExecutor(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, want, e.Command())
	}

	cfg := DefaultConfig
	cfg.Client.Command = "/opt/mssql-tools18/bin/sqlcmd"
	e, err := NewClientExecutor(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/mssql-tools18/bin/sqlcmd", e.Command())
}

func TestClientExecutorArgs(t *testing.T) {
	script := Script{Name: "001_init.sql", Path: "/scripts/001_init.sql"}
	tests := []struct {
		name   string
		driver string
		conn   Connection
		extra  []string
		want   []string
		env    []string
	}{
		{
			name:   "sqlserver sql auth",
			driver: DriverSQLServer,
			conn:   Connection{Server: "db", Port: 1433, Database: "app", User: "sa", Password: "pw"},
			extra:  []string{"-C"},
			want:   []string{"-S", "db,1433", "-d", "app", "-U", "sa", "-P", "pw", "-b", "-i", "/scripts/001_init.sql", "-C"},
		},
		{
			name:   "sqlserver integrated auth",
			driver: DriverSQLServer,
			conn:   Connection{Server: "db", Database: "app"},
			want:   []string{"-S", "db", "-d", "app", "-E", "-b", "-i", "/scripts/001_init.sql"},
		},
		{
			name:   "pg",
			driver: DriverPostgres,
			conn:   Connection{Server: "db", Port: 5432, Database: "app", User: "deployer", Password: "pw"},
			want:   []string{"-X", "-q", "-v", "ON_ERROR_STOP=1", "-h", "db", "-p", "5432", "-d", "app", "-U", "deployer", "-f", "/scripts/001_init.sql"},
			env:    []string{"PGPASSWORD=pw"},
		},
		{
			name:   "sqlite3",
			driver: DriverSQLite,
			conn:   Connection{Database: "/data/app.db"},
			want:   []string{"-bail", "/data/app.db", ".read '/scripts/001_init.sql'"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig
			cfg.Driver = tt.driver
			cfg.Connection = tt.conn
			cfg.Client.Args = tt.extra
			e, err := NewClientExecutor(cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.args(script))
			assert.Equal(t, tt.env, e.env())
		})
	}
}

func TestSQLiteShellQuote(t *testing.T) {
	tests := map[string]string{
		"/scripts/001_init.sql":      `'/scripts/001_init.sql'`,
		"/home/o'brien/001_init.sql": `"/home/o'brien/001_init.sql"`,
		`C:\o'brien\say "hi".sql`:    `"C:\\o'brien\\say \"hi\".sql"`,
		`C:\Scripts\001 init.sql`:    `'C:\Scripts\001 init.sql'`,
	}
	for path, want := range tests {
		assert.Equal(t, want, sqliteShellQuote(path), path)
	}
}

func TestClientExecutorLaunchesConfiguredCommand(t *testing.T) {
	cfg, _ := fakeClientConfig(t)
	writeScript(t, cfg.ScriptsDirectory, "001_init.sql", "SELECT 1;")

	e, err := NewClientExecutor(cfg, nil)
	require.NoError(t, err)

	var gotName string
	var gotArgs []string
	e.execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName, gotArgs = name, args
		return exec.CommandContext(ctx, name, args...)
	}

	outcome, err := e.Execute(context.Background(), Script{Name: "001_init.sql", Path: filepath.Join(cfg.ScriptsDirectory, "001_init.sql")})
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, cfg.Client.Command, gotName)
	assert.Equal(t, "-bail", gotArgs[0])
}

func TestClientExecutorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		cfg, logPath := fakeClientConfig(t)
		writeScript(t, cfg.ScriptsDirectory, "001_init.sql", "CREATE TABLE t (id INT);")
		core, logs := observer.New(zap.InfoLevel)
		e, err := NewClientExecutor(cfg, zap.New(core))
		require.NoError(t, err)

		outcome, err := e.Execute(ctx, Script{Name: "001_init.sql", Path: filepath.Join(cfg.ScriptsDirectory, "001_init.sql")})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Contains(t, outcome.Stdout, "001_init.sql")
		assert.Equal(t, []string{"001_init.sql"}, executedScripts(t, logPath))
		assert.Equal(t, 1, logs.FilterMessage("client output").Len())
	})

	t.Run("path with a single quote", func(t *testing.T) {
		cfg, logPath := fakeClientConfig(t)
		dir := filepath.Join(cfg.ScriptsDirectory, "o'brien")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		writeScript(t, dir, "001_init.sql", "SELECT 1;")
		e, err := NewClientExecutor(cfg, nil)
		require.NoError(t, err)

		outcome, err := e.Execute(ctx, Script{Name: "001_init.sql", Path: filepath.Join(dir, "001_init.sql")})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded, outcome.Stderr)
		assert.Equal(t, []string{"001_init.sql"}, executedScripts(t, logPath))
	})

	t.Run("client reports failure", func(t *testing.T) {
		cfg, _ := fakeClientConfig(t)
		writeScript(t, cfg.ScriptsDirectory, "002_bad.sql", "-- fail\nSELECT * FROM missing;")
		core, logs := observer.New(zap.InfoLevel)
		e, err := NewClientExecutor(cfg, zap.New(core))
		require.NoError(t, err)

		outcome, err := e.Execute(ctx, Script{Name: "002_bad.sql", Path: filepath.Join(cfg.ScriptsDirectory, "002_bad.sql")})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Equal(t, 1, outcome.ExitCode)
		assert.Contains(t, outcome.Diagnostic(), "Invalid object name")
		assert.Equal(t, 1, logs.FilterMessage("client reported failure").Len())
	})

	t.Run("timeout is a failed outcome", func(t *testing.T) {
		cfg, _ := fakeClientConfig(t)
		cfg.Client.Timeout = 200 * time.Millisecond
		writeScript(t, cfg.ScriptsDirectory, "003_slow.sql", "-- sleep")
		e, err := NewClientExecutor(cfg, nil)
		require.NoError(t, err)

		outcome, err := e.Execute(ctx, Script{Name: "003_slow.sql", Path: filepath.Join(cfg.ScriptsDirectory, "003_slow.sql")})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.Contains(t, outcome.Diagnostic(), "timed out after 200ms")
	})

	t.Run("cancelled run is an error", func(t *testing.T) {
		cfg, _ := fakeClientConfig(t)
		writeScript(t, cfg.ScriptsDirectory, "003_slow.sql", "-- sleep")
		e, err := NewClientExecutor(cfg, nil)
		require.NoError(t, err)

		runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = e.Execute(runCtx, Script{Name: "003_slow.sql", Path: filepath.Join(cfg.ScriptsDirectory, "003_slow.sql")})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("missing client binary", func(t *testing.T) {
		cfg, _ := fakeClientConfig(t)
		cfg.Client.Command = filepath.Join(t.TempDir(), "no-such-sqlcmd")
		e, err := NewClientExecutor(cfg, nil)
		require.NoError(t, err)

		_, err = e.Execute(ctx, Script{Name: "001_init.sql", Path: "001_init.sql"})
		assert.ErrorIs(t, err, ErrExecutorUnavailable)
		assert.True(t, strings.Contains(err.Error(), "no-such-sqlcmd"))
	})
}
