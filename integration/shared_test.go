//go:build basic || database || integration

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

var (
	// sharedBinaryPath holds the path to a skysched binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// Fixture paths relative to the project root, where commands run.
const (
	fixtureSchedule = "internal/ingest/testdata/schedule.json"
	fixturePossible = "internal/ingest/testdata/possible_periods.json"
	fixtureDark     = "internal/ingest/testdata/dark_periods.json"
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}
	os.Exit(code)
}

// getBinary returns the path to the skysched binary, building it once if needed.
func getBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "skysched-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binaryPath := filepath.Join(tempDir, "skysched")
		buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build skysched: %v", err))
		}
		sharedBinaryPath = binaryPath
	})

	return sharedBinaryPath
}

// runSkysched runs the CLI from the project root with extra environment and returns stdout.
func runSkysched(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = "../"
	cmd.Env = append(os.Environ(), env...)
	cmd.Env = append(cmd.Env, "SKYSCHED_COLOR=no", "SKYSCHED_LOG_LEVEL=warn")

	var stderr []byte
	output, err := cmd.Output()
	if exitErr, ok := err.(*exec.ExitError); ok {
		stderr = exitErr.Stderr
	}
	if err != nil {
		t.Logf("Command failed: %s\nOutput: %s\nStderr: %s", cmd.String(), string(output), string(stderr))
	}
	return string(output), err
}
