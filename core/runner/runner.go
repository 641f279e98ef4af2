// Package runner executes external programs for the compiler: executable
// code blocks embedded in a quiz, and pandoc for MathML and PDF output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds a single external process.
const DefaultTimeout = 2 * time.Minute

// validCommandRegex restricts bare command names. Paths are checked
// separately.
var validCommandRegex = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)

// validateCommand checks that a command is a plain program name or a path.
func validateCommand(cmd string) error {
	if cmd == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.ContainsAny(cmd, "/\\") {
		if strings.ContainsRune(cmd, 0) {
			return fmt.Errorf("command path contains a NUL byte")
		}
		return nil
	}
	if len(cmd) > 64 {
		return fmt.Errorf("command too long (max 64 characters)")
	}
	if !validCommandRegex.MatchString(cmd) {
		return fmt.Errorf("command %q contains invalid characters", cmd)
	}
	return nil
}

// Injectable functions for testing.
var (
	osMkdirTemp  = os.MkdirTemp
	osWriteFile  = os.WriteFile
	execLookPath = exec.LookPath
)

// ErrMissingExecutable is returned when a command cannot be found.
var ErrMissingExecutable = errors.New("missing executable")

// Request is one process invocation.
type Request struct {
	Command string
	Args    []string
	Stdin   []byte
	Dir     string
}

// ExecutionResult holds what a process produced.
type ExecutionResult struct {
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// Executor runs processes with a timeout and a fixed locale and time zone,
// so that their output does not depend on the caller's environment.
type Executor struct {
	Timeout time.Duration
}

// NewExecutor creates an executor with DefaultTimeout.
func NewExecutor() *Executor {
	return &Executor{Timeout: DefaultTimeout}
}

// deterministicEnv returns the current environment with locale and time
// zone pinned.
func deterministicEnv() []string {
	env := make([]string, 0, len(os.Environ())+3)
	for _, kv := range os.Environ() {
		switch {
		case strings.HasPrefix(kv, "TZ="), strings.HasPrefix(kv, "LC_ALL="), strings.HasPrefix(kv, "LANG="):
			continue
		}
		env = append(env, kv)
	}
	return append(env, "TZ=UTC", "LC_ALL=C.UTF-8", "LANG=C.UTF-8")
}

// Execute runs req. A non-zero exit is reported through ExitCode, not as an
// error; errors mean the process could not be run at all.
func (e *Executor) Execute(ctx context.Context, req Request) (*ExecutionResult, error) {
	if err := validateCommand(req.Command); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	path, err := execLookPath(req.Command)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrMissingExecutable, req.Command, err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctxWithTimeout, path, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = deterministicEnv()
	cmd.Stdin = bytes.NewReader(req.Stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	runErr := cmd.Run()
	duration := time.Since(startTime)

	if err := ctxWithTimeout.Err(); errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s timed out after %s", req.Command, timeout)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to run command: %w", runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionResult{
		ExitCode: exitCode,
		Duration: duration,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}
