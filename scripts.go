package scriptrunner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Script is a single migration file found in the scripts directory.
type Script struct {
	// Name is the file name. It is the key recorded in the history table.
	Name string

	// Path is what gets handed to the batch client.
	Path string
}

// ListScripts returns the scripts in dir with the given extension, ordered by
// case-insensitive name. Sub-directories are not searched.
//
// If dir does not exist the result is empty and the error is ErrDirectoryNotFound.
func ListScripts(dir, ext string) ([]Script, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Script{}, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return []Script{}, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	scripts := []Script{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		scripts = append(scripts, Script{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	sortScripts(scripts)
	return scripts, nil
}

// sortScripts orders scripts by upper-cased name, falling back to the raw name
// so that names differing only in case still sort the same way every time.
// Upper-casing puts letters before '_', so 001a_hotfix.sql runs before 001_init.sql.
func sortScripts(scripts []Script) {
	sort.SliceStable(scripts, func(i, j int) bool {
		a, b := strings.ToUpper(scripts[i].Name), strings.ToUpper(scripts[j].Name)
		if a != b {
			return a < b
		}
		return scripts[i].Name < scripts[j].Name
	})
}
