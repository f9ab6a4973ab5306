package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitReady, exitCode(nil))
	assert.Equal(t, ExitNotReady, exitCode(&exitError{code: ExitNotReady}))
	assert.Equal(t, ExitConfigError, exitCode(&exitError{code: ExitConfigError}))
	assert.Equal(t, ExitInternalError, exitCode(&exitError{code: ExitInternalError}))
	assert.Equal(t, ExitInternalError, exitCode(fmt.Errorf("run: %w", &exitError{code: ExitInternalError})))

	// Anything cobra surfaces without an explicit code is a startup failure.
	assert.Equal(t, ExitConfigError, exitCode(errors.New("unknown flag")))
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []int{ExitReady, ExitNotReady, ExitConfigError, ExitInternalError}
	seen := make(map[int]bool)
	for _, c := range codes {
		assert.False(t, seen[c], "exit code %d reused", c)
		seen[c] = true
	}
}
