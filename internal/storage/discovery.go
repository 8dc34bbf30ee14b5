package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiscoverDatabase looks for .dupcheck/*.db in the current directory.
// Returns the absolute path to the database file, or an error if not
// found.
//
// Only the current directory is checked, never parents: a nested
// checkout must not silently operate on an enclosing project's contact
// store.
//
// DUPCHECK_DB_PATH is checked first to allow test isolation and
// explicit overrides; special values like ":memory:" pass through
// untouched.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("DUPCHECK_DB_PATH"); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .dupcheck/*.db in the specified
// directory only
func discoverDatabaseInDir(dir string) (string, error) {
	storeDir := filepath.Join(dir, ".dupcheck")

	if info, err := os.Stat(storeDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(storeDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					dbPath := filepath.Join(storeDir, entry.Name())
					absPath, err := filepath.Abs(dbPath)
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no .dupcheck/*.db found in %s\n"+
			"  Run 'dupcheck init' to create a contact store in this directory\n"+
			"  Or use --db to specify the database path explicitly",
		dir)
}
