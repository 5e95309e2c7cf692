// SPDX-License-Identifier: MIT

// Package scriptrunner applies a directory of ordered SQL scripts to a
// database exactly once each. It is meant to run to completion on every
// container start or deploy: scripts that already succeeded are skipped,
// everything else is handed to the database's own batch client (sqlcmd,
// psql or sqlite3) and the outcome is appended to a history table.
//
// # Quick start
//
//	import (
//	    "context"
//
//	    _ "github.com/microsoft/go-mssqldb"
//	    "github.com/rodneyphillip80/ScriptRunner"
//	)
//
//	func main() {
//	    cfg := scriptrunner.DefaultConfig
//	    cfg.Connection.Database = "app"
//
//	    db, _ := scriptrunner.OpenDB(cfg)
//	    history, _ := scriptrunner.NewHistoryStore(cfg, db)
//	    executor, _ := scriptrunner.NewClientExecutor(cfg, nil)
//
//	    summary, err := scriptrunner.New(cfg, history, executor).RunAll(context.Background())
//	    ...
//	}
//
// # Scripts
//
// Every file with the configured extension (default ".sql") directly inside
// ScriptsDirectory is a script. Scripts run in case-insensitive name order,
// so prefix them with numbers:
//
//	001_init.sql
//	002_add_index.sql
//
// The file name is the identity recorded in history; renaming a script makes
// it new again. Content is never checksummed.
//
// # History
//
// The history table (default "MigrationHistory") has the columns ScriptName,
// AppliedOn, Status ("Success" or "Failed") and ErrorMessage. Every attempt
// appends a row; a script is skipped once any Success row exists for it.
// Failed scripts are retried on the next run.
//
// # Failures
//
// A script that exits non-zero is recorded as Failed and the run moves on
// (or stops, with HaltOnFailure). Problems that affect every script, such as
// an unreachable history database or a missing client binary, abort the run
// with ErrHistoryQueryFailed, ErrHistoryWriteFailed or ErrExecutorUnavailable.
//
// Only one runner per database is supported at a time; nothing locks the
// history table.
package scriptrunner
