package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadInput reads an upload payload from disk. The possible and dark period paths are
// optional; an empty name defaults to the schedule file name without its extension.
func LoadInput(name, schedulePath, possiblePath, darkPath string) (Input, error) {
	in := Input{Name: name}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(filepath.Base(schedulePath), filepath.Ext(schedulePath))
	}
	var err error
	if in.Schedule, err = os.ReadFile(schedulePath); err != nil {
		return in, fmt.Errorf("failed to read schedule: %w", err)
	}
	if possiblePath != "" {
		if in.PossiblePeriods, err = os.ReadFile(possiblePath); err != nil {
			return in, fmt.Errorf("failed to read possible periods: %w", err)
		}
	}
	if darkPath != "" {
		if in.DarkPeriods, err = os.ReadFile(darkPath); err != nil {
			return in, fmt.Errorf("failed to read dark periods: %w", err)
		}
	}
	return in, nil
}
