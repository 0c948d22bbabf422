package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1", " on "} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"no", "False", "0", "off"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("sometimes")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, ExitValidation, ExitCode(fmt.Errorf("failed to ingest: %w", &ValidationError{})))
	assert.Equal(t, ExitNotFound, ExitCode(&NotFoundError{Entity: "schedule", ID: 9}))
	assert.Equal(t, ExitConnection, ExitCode(&ConnectionError{Op: "ping", Err: errors.New("refused")}))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "nested", "out.json")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.FileExists(t, path)
}

func TestErrorTaxonomy(t *testing.T) {
	verr := &ValidationError{Violations: []Violation{
		{Block: "7", Field: "ra", Message: "must be in [0,360)"},
		{Field: "dark_periods[0]", Message: "start must be before stop"},
	}}
	wrapped := fmt.Errorf("failed to ingest: %w", verr)
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.Contains(t, verr.Error(), "2 violation(s)")
	assert.Contains(t, verr.Error(), "block 7: ra")

	var target *ValidationError
	assert.True(t, errors.As(wrapped, &target))
	assert.Len(t, target.Violations, 2)

	cause := errors.New("dial tcp: connection refused")
	cerr := &ConnectionError{Op: "ping", Attempts: 3, Err: cause}
	assert.ErrorIs(t, cerr, ErrConnection)
	assert.ErrorIs(t, cerr, cause)
	assert.True(t, IsRetryable(cerr))

	assert.ErrorIs(t, &NotFoundError{Entity: "schedule", ID: 4}, ErrNotFound)
	assert.ErrorIs(t, &ConflictError{Entity: "schedule", Key: "abc"}, ErrConflict)
	assert.True(t, IsRetryable(&TransientError{Op: "query", Err: cause}))
	assert.False(t, IsRetryable(&NotFoundError{Entity: "schedule", ID: 4}))
}
