package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"       // SQLite driver
	_ "github.com/microsoft/go-mssqldb"   // SQL Server driver
	"go.uber.org/zap"

	"github.com/rodneyphillip80/ScriptRunner"
	"github.com/rodneyphillip80/ScriptRunner/internal/config"
	"github.com/rodneyphillip80/ScriptRunner/internal/logger"
)

// Exit codes.
const (
	exitOK            = 0
	exitFatal         = 1
	exitScriptsFailed = 2
)

var versionString = scriptrunner.Version + " (" + scriptrunner.GitCommit + ")"

// usage prints the help text.
func usage() {
	header := `Usage:
  scriptrunner [options] [command] [arguments]

Commands:
  run                 Apply every script that has not succeeded yet (default).
  list                List scripts and whether each one has been applied.
  history             Print the history table.
  new <desc>          Create a new empty script with the provided description.
  drop-history        Drop the history table.

Exit status:
  0  all scripts applied or skipped
  1  configuration, database or client error
  2  one or more scripts failed (unless failOnScriptError is false)

Options:`
	fmt.Fprintln(os.Stderr, header)
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to JSON settings file (default \"appsettings.json\")")
	scriptsDir := flag.String("scripts", "", "Scripts directory. Overrides scriptsDirectory in the settings file.")
	mode := flag.String("mode", "int", "Numbering mode (\"int\" or \"timestamp\") when creating new scripts")
	envFile := flag.String("env-file", ".env", "Optional .env file loaded before the settings file")
	helpFlag := flag.Bool("help", false, "Show help message")
	versionFlag := flag.Bool("version", false, "Show version")

	flag.Usage = usage
	flag.Parse()

	// Safeguard: check for any flag-like arguments after positional arguments.
	for _, arg := range flag.Args() {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintln(os.Stderr, "Error: Flags must be specified before the command. Please reorder your arguments.")
			usage()
			return exitFatal
		}
	}

	if *helpFlag {
		usage()
		return exitOK
	}
	if *versionFlag {
		fmt.Println("scriptrunner version:", versionString)
		return exitOK
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		return exitFatal
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
		return exitFatal
	}
	if *scriptsDir != "" {
		cfg.ScriptsDirectory = *scriptsDir
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return exitFatal
	}
	defer func() { _ = zl.Sync() }()

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "run":
		return withHistory(cfg, zl, func(ctx context.Context, history scriptrunner.HistoryStore) int {
			return runScripts(ctx, cfg, history, zl)
		})
	case "list":
		return withHistory(cfg, zl, func(ctx context.Context, history scriptrunner.HistoryStore) int {
			return listScripts(ctx, cfg, history)
		})
	case "history":
		return withHistory(cfg, zl, func(ctx context.Context, history scriptrunner.HistoryStore) int {
			records, err := history.Records(ctx)
			if err != nil {
				zl.Error("failed to read history", zap.Error(err))
				return exitFatal
			}
			for _, rec := range records {
				line := fmt.Sprintf("%s  %-7s  %s", rec.AppliedOn.Format(time.RFC3339), rec.Status, rec.ScriptName)
				if rec.ErrorMessage != "" {
					line += "  " + firstLine(rec.ErrorMessage)
				}
				fmt.Println(line)
			}
			return exitOK
		})
	case "drop-history":
		return withHistory(cfg, zl, func(ctx context.Context, history scriptrunner.HistoryStore) int {
			if err := history.DropSchema(ctx); err != nil {
				zl.Error("failed to drop history table", zap.Error(err))
				return exitFatal
			}
			zl.Info("history table dropped", zap.String("table", cfg.HistoryTable))
			return exitOK
		})
	case "new":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: a description is required for the new command.")
			usage()
			return exitFatal
		}
		path, err := scriptrunner.CreateScript(cfg, args[1], *mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating new script: %v\n", err)
			return exitFatal
		}
		fmt.Println(path)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		return exitFatal
	}
}

// withHistory opens the history database and calls f with a history store.
func withHistory(cfg scriptrunner.Config, zl *zap.Logger, f func(ctx context.Context, history scriptrunner.HistoryStore) int) int {
	db, err := scriptrunner.OpenDB(cfg)
	if err != nil {
		zl.Error("failed to open database", zap.Error(err))
		return exitFatal
	}
	defer db.Close()

	history, err := scriptrunner.NewHistoryStore(cfg, db)
	if err != nil {
		zl.Error("failed to initialize history store", zap.Error(err))
		return exitFatal
	}
	return f(context.Background(), history)
}

func runScripts(ctx context.Context, cfg scriptrunner.Config, history scriptrunner.HistoryStore, zl *zap.Logger) int {
	executor, err := scriptrunner.NewClientExecutor(cfg, zl)
	if err != nil {
		zl.Error("failed to initialize client", zap.Error(err))
		return exitFatal
	}
	runner := scriptrunner.New(cfg, history, executor, scriptrunner.WithLogger(zl))

	summary, err := runner.RunAll(ctx)
	if err != nil {
		zl.Error("💥 run aborted", zap.String("run_id", runner.RunID()), zap.Error(err))
		return exitFatal
	}
	if err := summary.Err(); err != nil && cfg.FailOnScriptError {
		zl.Error("one or more scripts failed",
			zap.String("run_id", runner.RunID()),
			zap.Strings("failed", summary.Failed))
		return exitScriptsFailed
	}
	return exitOK
}

func listScripts(ctx context.Context, cfg scriptrunner.Config, history scriptrunner.HistoryStore) int {
	scripts, err := scriptrunner.ListScripts(cfg.ScriptsDirectory, cfg.ScriptExtension)
	if errors.Is(err, scriptrunner.ErrDirectoryNotFound) {
		fmt.Printf("Scripts directory %s not found.\n", cfg.ScriptsDirectory)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing scripts: %v\n", err)
		return exitFatal
	}
	fmt.Printf("Scripts in %s:\n", cfg.ScriptsDirectory)
	for _, s := range scripts {
		done, err := history.HasSucceeded(ctx, s.Name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			return exitFatal
		}
		state := "pending"
		if done {
			state = "applied"
		}
		fmt.Printf("  %-8s %s\n", state, s.Name)
	}
	return exitOK
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
