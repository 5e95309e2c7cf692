package scriptrunner

import "errors"

var (
	// ErrConfiguration means the settings could not be read or are invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrDirectoryNotFound means the scripts directory does not exist.
	// A run treats it as "nothing to do".
	ErrDirectoryNotFound = errors.New("scripts directory not found")

	// ErrHistoryQueryFailed wraps failures reading the history table.
	ErrHistoryQueryFailed = errors.New("history query failed")

	// ErrHistoryWriteFailed wraps failures creating or writing the history table.
	ErrHistoryWriteFailed = errors.New("history write failed")

	// ErrExecutorUnavailable means the batch client could not be launched at all.
	ErrExecutorUnavailable = errors.New("sql client unavailable")

	// ErrScriptExecutionFailed marks a script that ran and exited non-zero.
	ErrScriptExecutionFailed = errors.New("script execution failed")
)
