// Package exec provides shell command execution helpers.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Ex executes the named command in the given directory and
// returns combined stdout+stderr output. Pass empty dir to
// use the current working directory. The command is killed
// when ctx is cancelled.
func Ex(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	slog.Debug(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
		"dir", dir,
	)

	cmd := exec.CommandContext(ctx, name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	by, err := cmd.CombinedOutput()
	if err != nil {
		return string(by), fmt.Errorf(
			"%s: %s %s: %w",
			errCtx, name, strings.Join(arg, " "), err,
		)
	}

	return string(by), nil
}
