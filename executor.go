package scriptrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Outcome is the result of running one script through the batch client.
type Outcome struct {
	ScriptName string
	Succeeded  bool
	ExitCode   int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// Diagnostic is the text worth recording for a failed attempt: stderr, then
// stdout, then the bare exit code.
func (o Outcome) Diagnostic() string {
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(o.Stdout); s != "" {
		return s
	}
	return fmt.Sprintf("exit code %d", o.ExitCode)
}

// Executor runs a single script against the target database.
//
// A script that runs and fails is reported through Outcome.Succeeded, not an
// error. An error means the script could not be run at all.
type Executor interface {
	Execute(ctx context.Context, script Script) (Outcome, error)
}

// defaultClients maps a driver to the batch client shipped with the database.
var defaultClients = map[string]string{
	DriverSQLServer: "sqlcmd",
	DriverPostgres:  "psql",
	DriverSQLite:    "sqlite3",
}

// ClientExecutor shells out to an external batch-capable SQL client such as sqlcmd.
type ClientExecutor struct {
	driver string
	conn   Connection
	client ClientConfig
	logger *zap.Logger

	// execCommand is swapped in tests.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewClientExecutor creates a ClientExecutor for cfg. A nil logger discards output.
func NewClientExecutor(cfg Config, logger *zap.Logger) (*ClientExecutor, error) {
	if _, ok := defaultClients[cfg.Driver]; !ok {
		return nil, fmt.Errorf("%w: no batch client known for driver '%s'", ErrConfiguration, cfg.Driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientExecutor{
		driver:      cfg.Driver,
		conn:        cfg.Connection,
		client:      cfg.Client,
		logger:      logger,
		execCommand: exec.CommandContext,
	}, nil
}

// Command returns the client binary that will be launched.
func (e *ClientExecutor) Command() string {
	if e.client.Command != "" {
		return e.client.Command
	}
	return defaultClients[e.driver]
}

// Execute runs script and waits for the client to exit.
func (e *ClientExecutor) Execute(ctx context.Context, script Script) (Outcome, error) {
	runCtx := ctx
	if e.client.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.client.Timeout)
		defer cancel()
	}

	outcome := Outcome{ScriptName: script.Name, ExitCode: -1}
	cmd := e.execCommand(runCtx, e.Command(), e.args(script)...) //nolint:gosec // client command comes from operator configuration
	cmd.Env = append(os.Environ(), e.env()...)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return outcome, fmt.Errorf("%w: start %s: %w", ErrExecutorUnavailable, e.Command(), err)
	}
	waitErr := cmd.Wait()
	outcome.Duration = time.Since(start)
	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case waitErr == nil:
		outcome.Succeeded = true
		e.logger.Info("client output",
			zap.String("script", script.Name),
			zap.String("stdout", strings.TrimSpace(outcome.Stdout)),
			zap.Duration("duration", outcome.Duration))
		return outcome, nil
	case ctx.Err() != nil:
		// The run itself was cancelled, not just this script.
		return outcome, fmt.Errorf("run %s: %w", script.Name, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		outcome.Stderr = strings.TrimSpace(outcome.Stderr + "\n" + fmt.Sprintf("timed out after %s", e.client.Timeout))
	default:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return outcome, fmt.Errorf("wait for %s: %w", e.Command(), waitErr)
		}
	}

	e.logger.Error("client reported failure",
		zap.String("script", script.Name),
		zap.Int("exit_code", outcome.ExitCode),
		zap.String("stdout", strings.TrimSpace(outcome.Stdout)),
		zap.String("stderr", strings.TrimSpace(outcome.Stderr)),
		zap.Duration("duration", outcome.Duration))
	return outcome, nil
}

// args builds the dialect specific command line for script.
func (e *ClientExecutor) args(script Script) []string {
	var args []string
	switch e.driver {
	case DriverSQLServer:
		server := e.conn.Server
		if e.conn.Port > 0 {
			server += "," + strconv.Itoa(e.conn.Port)
		}
		args = append(args, "-S", server, "-d", e.conn.Database)
		if e.conn.User != "" {
			args = append(args, "-U", e.conn.User, "-P", e.conn.Password)
		} else {
			args = append(args, "-E")
		}
		// -b makes sqlcmd exit non-zero when a batch raises an error.
		args = append(args, "-b", "-i", script.Path)
	case DriverPostgres:
		args = append(args, "-X", "-q", "-v", "ON_ERROR_STOP=1", "-h", e.conn.Server)
		if e.conn.Port > 0 {
			args = append(args, "-p", strconv.Itoa(e.conn.Port))
		}
		args = append(args, "-d", e.conn.Database)
		if e.conn.User != "" {
			args = append(args, "-U", e.conn.User)
		}
		args = append(args, "-f", script.Path)
	case DriverSQLite:
		args = append(args, "-bail", e.conn.Database, ".read "+sqliteShellQuote(script.Path))
	}
	return append(args, e.client.Args...)
}

// sqliteShellQuote quotes path as a sqlite3 dot-command argument. Single
// quotes take the text literally; a path containing one is double-quoted,
// where the shell resolves backslash escapes.
func sqliteShellQuote(path string) string {
	if !strings.Contains(path, "'") {
		return "'" + path + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(path) + `"`
}

// env returns the extra environment for the client process.
func (e *ClientExecutor) env() []string {
	var env []string
	if e.driver == DriverPostgres && e.conn.Password != "" {
		env = append(env, "PGPASSWORD="+e.conn.Password)
	}
	return append(env, e.client.Env...)
}
