package scriptrunner

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// fakeClientEnv switches the test binary into fake batch client mode.
const fakeClientEnv = "FAKE_SQL_CLIENT"

// TestMain lets the test binary stand in for sqlcmd, psql or sqlite3 when
// FAKE_SQL_CLIENT is set. The executor tests launch os.Args[0] as the client.
func TestMain(m *testing.M) {
	if os.Getenv(fakeClientEnv) == "1" {
		os.Exit(fakeClient(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// fakeClient finds the input file in args, appends its name to
// $FAKE_CLIENT_LOG and reacts to markers in the file content:
//
//	-- fail   write to stderr and exit 1
//	-- sleep  sleep long enough to trip a timeout
func fakeClient(args []string) int {
	path := scriptArg(args)
	if path == "" {
		fmt.Fprintln(os.Stderr, "fake client: no input file")
		return 64
	}
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake client: %v\n", err)
		return 65
	}
	if logPath := os.Getenv("FAKE_CLIENT_LOG"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintln(f, filepath.Base(path))
			f.Close()
		}
	}
	text := string(content)
	if strings.Contains(text, "-- sleep") {
		time.Sleep(10 * time.Second)
	}
	if strings.Contains(text, "-- fail") {
		fmt.Fprintf(os.Stderr, "Msg 208, Level 16, State 1: Invalid object name in %s\n", filepath.Base(path))
		return 1
	}
	fmt.Printf("(1 rows affected) %s\n", filepath.Base(path))
	return 0
}

// scriptArg returns the script path from a sqlcmd, psql or sqlite3 command line.
func scriptArg(args []string) string {
	for i, a := range args {
		switch {
		case (a == "-i" || a == "-f") && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(a, ".read \""):
			quoted := strings.TrimSuffix(strings.TrimPrefix(a, ".read \""), "\"")
			return strings.NewReplacer(`\\`, `\`, `\"`, `"`).Replace(quoted)
		case strings.HasPrefix(a, ".read "):
			return strings.Trim(strings.TrimPrefix(a, ".read "), "'")
		}
	}
	return ""
}

// fakeClientConfig returns a sqlite3 config whose batch client is the test
// binary, plus the path of the log listing executed scripts.
func fakeClientConfig(t *testing.T) (Config, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "executed.log")
	cfg := DefaultConfig
	cfg.Driver = DriverSQLite
	cfg.Connection.Database = filepath.Join(dir, "history.db")
	cfg.ScriptsDirectory = filepath.Join(dir, "Scripts")
	cfg.Client = ClientConfig{
		Command: os.Args[0],
		Env:     []string{fakeClientEnv + "=1", "FAKE_CLIENT_LOG=" + logPath},
	}
	require.NoError(t, os.MkdirAll(cfg.ScriptsDirectory, 0o755))
	return cfg, logPath
}

// executedScripts reads the fake client log.
func executedScripts(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// openSQLite opens a file backed SQLite database that is closed with the test.
func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
