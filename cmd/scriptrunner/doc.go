// SPDX-License-Identifier: MIT

// Package main provides scriptrunner, a command-line runner that applies every
// pending SQL script in a directory once, through the database's own batch
// client.
//
// # Install
//
//	go install github.com/rodneyphillip80/ScriptRunner/cmd/scriptrunner@latest
//
// # Synopsis
//
//	scriptrunner [options] [command] [arguments]
//
// # Commands
//
//	run                 Apply every script that has not succeeded yet (default).
//	list                List scripts and whether each one has been applied.
//	history             Print the history table.
//	new <desc>          Scaffold an empty script labelled *desc*.
//	drop-history        Delete the history table.
//
// # Global flags
//
//	-config string      JSON settings file (default "appsettings.json").
//	-scripts string     Scripts directory. Overrides scriptsDirectory.
//	-env-file string    .env file loaded before the settings file (default ".env").
//	-mode string        Numbering mode for *new*: "int" or "timestamp" (default "int").
//	-help               Show built-in help.
//	-version            Print scriptrunner version.
//
// Flags must come before the command.
//
// # Configuration file
//
//	{
//	  "driver": "sqlserver",
//	  "connection": { "server": "db", "database": "Inventory", "user": "sa" },
//	  "scriptsDirectory": "./Scripts",
//	  "historyTable": "MigrationHistory",
//	  "client": { "command": "sqlcmd", "args": ["-C"], "timeout": "5m" }
//	}
//
// # Environment
//
// Every setting can be overridden with a SCRIPTRUNNER_ variable, dots replaced
// by underscores:
//
//	SCRIPTRUNNER_CONNECTION_PASSWORD  keeps the password out of the file
//	SCRIPTRUNNER_SCRIPTSDIRECTORY     overrides scriptsDirectory
//
// Variables from -env-file are loaded first and never replace ones already set.
//
// # Exit status
//
//	0  all scripts applied or skipped
//	1  configuration, database or client error
//	2  one or more scripts failed (unless failOnScriptError is false)
package main
