package audio

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
)

// CommandExecutor runs an external command to completion.
type CommandExecutor interface {
	// Run executes name with args and returns what the command wrote to
	// stdout and stderr.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// DefaultCommandExecutor uses os/exec.
type DefaultCommandExecutor struct{}

// Run executes the command and waits for it to exit.
func (e *DefaultCommandExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor is the standard command executor.
var DefaultExecutor CommandExecutor = &DefaultCommandExecutor{}

// isMissingBinary reports whether err means the command could not be found.
func isMissingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// tail returns at most the last n bytes of b, trimmed.
func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
