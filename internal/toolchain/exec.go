package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/no2fpga/no2build/internal/config"
)

// Runner invokes external toolchain binaries synchronously.
//
// Each invocation blocks until the child exits. No timeouts are imposed; a
// hung tool hangs the pipeline. Cancelling the context kills the child's
// whole process group so nothing keeps running behind the driver's back.
type Runner struct {
	// Dir is the working directory for tool invocations.
	Dir string

	// Stdout and Stderr receive tool output when no log file is given.
	// They default to the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a Runner working in dir.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes tool with the given args (the tool's configured extra args
// come first). When logPath is non-empty, stdout and stderr are captured
// there; otherwise they pass through.
//
// Returns the child's exit code. A non-zero exit is not an error at this
// level; err is reserved for failures to start or observe the child.
func (r *Runner) Run(ctx context.Context, tool config.Tool, args []string, logPath string) (int, error) {
	if tool.Bin == "" {
		return 0, fmt.Errorf("tool binary not configured")
	}

	full := make([]string, 0, len(tool.Args)+len(args))
	full = append(full, tool.Args...)
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, tool.Bin, full...)
	cmd.Dir = r.Dir
	// Own process group, so cancellation can kill the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return 0, fmt.Errorf("creating log %q: %w", logPath, err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	} else {
		cmd.Stdout = r.stdout()
		cmd.Stderr = r.stderr()
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return 0, fmt.Errorf("starting %s: %w", tool.Bin, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		if logFile != nil {
			logFile.Close()
		}
		return 0, fmt.Errorf("%s cancelled: %w", tool.Bin, ctx.Err())
	case waitErr = <-done:
	}

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			return 0, fmt.Errorf("closing log %q: %w", logPath, err)
		}
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("running %s: %w", tool.Bin, waitErr)
	}
	return 0, nil
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}
