package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

// CodeRunner runs the body of an executable code block and returns its
// standard output.
type CodeRunner struct {
	Exec *Executor
}

// NewCodeRunner creates a CodeRunner on exec.
func NewCodeRunner(exec *Executor) *CodeRunner {
	if exec == nil {
		exec = NewExecutor()
	}
	return &CodeRunner{Exec: exec}
}

// resolveExecutable picks the program for a block. An explicit executable
// wins; otherwise the language name is the program, with python mapped to
// whichever of python3 and python is installed.
func resolveExecutable(lang, executable string) string {
	if executable != "" {
		return executable
	}
	if lang == "python" {
		for _, name := range []string{"python3", "python"} {
			if _, err := execLookPath(name); err == nil {
				return name
			}
		}
	}
	return lang
}

// RunCode writes code to a temporary file and runs "<executable> <file>".
// A non-zero exit is an error carrying the program's stderr.
func (c *CodeRunner) RunCode(ctx context.Context, lang, executable, code string) (string, error) {
	program := resolveExecutable(lang, executable)

	dir, err := osMkdirTemp("", "quizqti-code-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, cas.SumString(code).Short(16)+".code")
	if err := osWriteFile(path, []byte(code), 0600); err != nil {
		return "", fmt.Errorf("failed to write code: %w", err)
	}

	logging.Debug("running code block", "program", program, "lang", lang)
	res, err := c.Exec.Execute(ctx, Request{Command: program, Args: []string{filepath.ToSlash(path)}, Dir: dir})
	if err != nil {
		if errors.Is(err, ErrMissingExecutable) {
			return "", fmt.Errorf("Failed to execute code (missing executable %q?):\n%w", program, err)
		}
		return "", fmt.Errorf("Failed to execute code with command %q:\n%w", program, err)
	}
	if res.ExitCode != 0 {
		rule := strings.Repeat("-", 50)
		return "", fmt.Errorf("Code execution resulted in errors:\n%s\n%s\n%s", rule, strings.ToValidUTF8(string(res.Stderr), "\uFFFD"), rule)
	}
	if !utf8.Valid(res.Stdout) {
		return "", fmt.Errorf("Failed to decode output of executed code: output is not valid UTF-8")
	}
	return strings.ReplaceAll(string(res.Stdout), "\r\n", "\n"), nil
}
