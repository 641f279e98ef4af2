package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Pandoc invokes the pandoc document converter.
type Pandoc struct {
	Exec *Executor
	// Path is the pandoc program; "pandoc" when empty.
	Path string
}

// NewPandoc creates a Pandoc on exec.
func NewPandoc(exec *Executor) *Pandoc {
	if exec == nil {
		exec = NewExecutor()
	}
	return &Pandoc{Exec: exec, Path: "pandoc"}
}

func (p *Pandoc) program() string {
	if p.Path == "" {
		return "pandoc"
	}
	return p.Path
}

// RunPandoc runs pandoc with args, feeding input on stdin, and returns
// stdout.
func (p *Pandoc) RunPandoc(ctx context.Context, input string, args ...string) (string, error) {
	res, err := p.Exec.Execute(ctx, Request{Command: p.program(), Args: args, Stdin: []byte(input)})
	if err != nil {
		if errors.Is(err, ErrMissingExecutable) {
			return "", fmt.Errorf("Could not find Pandoc:\n%w", err)
		}
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("pandoc exited with status %d:\n%s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return string(res.Stdout), nil
}

// ToFile converts Markdown input to output, letting pandoc pick the
// writer from the output extension (PDF goes through a LaTeX engine).
// dir is the working directory so relative image paths resolve.
func (p *Pandoc) ToFile(ctx context.Context, input, dir, output string, args ...string) error {
	all := append([]string{"-f", "markdown", "-o", output}, args...)
	res, err := p.Exec.Execute(ctx, Request{Command: p.program(), Args: all, Stdin: []byte(input), Dir: dir})
	if err != nil {
		if errors.Is(err, ErrMissingExecutable) {
			return fmt.Errorf("Could not find Pandoc:\n%w", err)
		}
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pandoc exited with status %d:\n%s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}
