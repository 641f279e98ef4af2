// Package quiztext compiles the plain-text quiz format into a quiz.Quiz.
//
// Parsing is a single top-to-bottom pass: lines are classified against an
// ordered marker table, assembled into blocks by indentation, and fed to a
// model builder that enforces the per-question grammar. Rich text is handed
// to a Renderer one block at a time, and executable code blocks are run
// through a CodeRunner whose output is parsed as if it had been written in
// the document.
package quiztext

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/core/quiz"
)

// ErrCodeDisabled is returned for executable code blocks when no CodeRunner
// was configured.
var ErrCodeDisabled = errors.New("code execution for code blocks is not enabled; use --run-code-blocks, or set run_code_blocks: true in config")

// Renderer turns the Markdown text of one block into HTML.
type Renderer interface {
	Render(text string) (string, error)
}

// ImageSource is implemented by renderers that collect local images which
// must be bundled with the output.
type ImageSource interface {
	Images() *cas.Store
}

// CodeRunner executes the body of a {.lang .run} fence and returns its
// standard output.
type CodeRunner interface {
	RunCode(ctx context.Context, lang, executable, code string) (string, error)
}

// Options configure a parse.
type Options struct {
	// Source names the document in diagnostics, e.g. `"quiz.txt"`.
	Source string
	// Renderer renders rich text; PlainRenderer is used when nil.
	Renderer Renderer
	// Code runs executable code blocks; they are rejected when nil.
	Code CodeRunner
}

// Parse compiles a whole document. On success the returned quiz is fully
// validated; on failure the error is a *errors.SyntaxError,
// *errors.SemanticError or *errors.CollaboratorError and no quiz is
// returned.
func Parse(ctx context.Context, text string, opts Options) (*quiz.Quiz, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r := opts.Renderer
	if r == nil {
		r = PlainRenderer{}
	}

	src := &lineSource{lines: splitLines(text)}
	asm := &assembler{ctx: ctx, src: src, source: opts.Source, code: opts.Code}
	b := newBuilder(opts.Source, r)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blk, err := asm.next()
		if err != nil {
			return nil, err
		}
		if blk == nil {
			break
		}
		if err := b.add(blk); err != nil {
			return nil, err
		}
	}
	q, err := b.finish(src.lastLine())
	if err != nil {
		return nil, err
	}
	if err := checkDuplicates(opts.Source, q); err != nil {
		return nil, err
	}
	if is, ok := r.(ImageSource); ok && is.Images() != nil {
		q.Images = is.Images()
	}
	return q, nil
}

// PlainRenderer wraps each paragraph in <p> and escapes it. It is meant for
// tests and for callers that do not need Markdown.
type PlainRenderer struct{}

// Render implements Renderer.
func (PlainRenderer) Render(text string) (string, error) {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, "<p>"+html.EscapeString(para)+"</p>")
	}
	return strings.Join(out, "\n"), nil
}
