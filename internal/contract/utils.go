package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/huangsam/skysched/internal/logging"
)

// Exit codes used by the CLI.
const (
	ExitFailure    = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConnection = 4
)

// defaultDBName is the SQLite file used when no connection string is configured.
const defaultDBName = ".skysched.db"

// SelectOutputFile returns the file to write to, or stdout when no path is given.
// Missing parent directories are created.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", filePath, err)
	}
	return file, nil
}

// ExitCode maps an error to the CLI exit status of its kind.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidation):
		return ExitValidation
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrConnection):
		return ExitConnection
	default:
		return ExitFailure
	}
}

// LogFatal logs an error and exits with the code of its kind.
func LogFatal(msg string, err error) {
	logging.Error().Err(err).Msg(msg)
	os.Exit(max(ExitCode(err), ExitFailure))
}

// LogWarn logs a warning with its cause.
func LogWarn(msg string, err error) {
	logging.Warn().Err(err).Msg(msg)
}

// GetDBFilePath returns the path to the default SQLite database file.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultDBName
	}
	return filepath.Join(homeDir, defaultDBName)
}

// ParseBoolString parses yes/no style flag values (case-insensitive, surrounding space ignored).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "on", "1":
		return true, nil
	case "no", "n", "false", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %q (expected yes/no/true/false/on/off/1/0)", s)
	}
}
