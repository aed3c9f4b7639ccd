package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateStoragePath checks a config or database path before it is
// opened. Relative and absolute paths are both accepted (the client
// owns its storage location), but traversal segments are rejected so a
// hostile config file cannot point the store outside its directory.
func ValidateStoragePath(path string) error {
	if path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("storage path contains NUL byte")
	}

	clean := filepath.Clean(path)
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}

	return nil
}
