package scriptrunner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	leadingDigits = regexp.MustCompile(`^[0-9]+`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

// CreateScript writes an empty script into cfg.ScriptsDirectory and returns its path.
// description: a human-readable description that will be snake_cased for the filename.
// mode: "int" for the next zero-padded number (default) or "timestamp" for the Unix time.
//
// The directory is created if needed; an existing file is never overwritten.
func CreateScript(cfg Config, description string, mode string) (string, error) {
	cfg.Normalize()
	name := snakeCase(description)
	if name == "" {
		return "", fmt.Errorf("description %q has no usable characters", description)
	}
	if err := os.MkdirAll(cfg.ScriptsDirectory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scripts directory %s: %w", cfg.ScriptsDirectory, err)
	}

	var prefix string
	if strings.ToLower(mode) == "timestamp" {
		prefix = strconv.FormatInt(time.Now().Unix(), 10)
	} else {
		scripts, err := ListScripts(cfg.ScriptsDirectory, cfg.ScriptExtension)
		if err != nil {
			return "", fmt.Errorf("failed to scan scripts: %w", err)
		}
		max := 0
		for _, s := range scripts {
			num, err := strconv.Atoi(leadingDigits.FindString(s.Name))
			if err != nil {
				continue
			}
			if num > max {
				max = num
			}
		}
		prefix = fmt.Sprintf("%03d", max+1)
	}

	path := filepath.Join(cfg.ScriptsDirectory, prefix+"_"+name+cfg.ScriptExtension)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create script file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString("-- Write your migration SQL here\n"); err != nil {
		return "", fmt.Errorf("failed to write script file %s: %w", path, err)
	}
	return path, nil
}

// snakeCase converts a string to snake_case.
func snakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
