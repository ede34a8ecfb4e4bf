// logger/logpath.go
package logger

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureLogDirectory prepares the directory log files are exported to. A path naming an
// existing regular file resolves to its parent directory; a missing path is created.
func EnsureLogDirectory(logPath string) (string, error) {
	if logPath == "" {
		logPath = "."
	}
	logPath = filepath.Clean(logPath)

	info, err := os.Stat(logPath)
	switch {
	case err == nil && !info.IsDir():
		return filepath.Dir(logPath), nil
	case err == nil:
		return logPath, nil
	case !os.IsNotExist(err):
		return "", fmt.Errorf("log export path %s: %w", logPath, err)
	}

	if err := os.MkdirAll(logPath, 0o755); err != nil {
		return "", fmt.Errorf("creating log export path %s: %w", logPath, err)
	}
	return logPath, nil
}
