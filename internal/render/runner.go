package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxOutputTail bounds how much converter output is kept in error messages.
const maxOutputTail = 2048

// Runner executes an external command and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands as child processes without a shell.
type ExecRunner struct{}

// Run starts name with args and waits for it. A non-zero exit or a launch
// failure is returned with the tail of the combined output attached.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		tail := strings.TrimSpace(out.String())
		if len(tail) > maxOutputTail {
			tail = tail[len(tail)-maxOutputTail:]
		}
		if tail == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, tail)
	}
	return nil
}
