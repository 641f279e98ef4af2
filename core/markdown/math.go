package markdown

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/quizqti/core/encoding"
)

// ErrNoMathConverter is returned when a document contains LaTeX but no way
// to convert it was configured.
var ErrNoMathConverter = errors.New("cannot convert LaTeX: set latex_render_url or enable pandoc_mathml")

// MathConverter turns a LaTeX math fragment into inline HTML.
type MathConverter interface {
	ConvertMath(ctx context.Context, latex string) (string, error)
}

// CanvasImages renders math as <img> tags served by a Canvas equation image
// endpoint such as https://canvas.example.edu/equation_images/.
type CanvasImages struct {
	URL string
}

// ConvertMath implements MathConverter.
func (c CanvasImages) ConvertMath(_ context.Context, latex string) (string, error) {
	if c.URL == "" {
		return "", ErrNoMathConverter
	}
	escaped := encoding.EscapeXML(latex)
	return fmt.Sprintf(`<img class="equation_image" title="%s" src="%s/%s?scale=1" alt="LaTeX: %s" data-equation-content="%s" data-ignore-a11y-check="" >`,
		escaped, strings.TrimRight(c.URL, "/"), quoteAll(latex), escaped, escaped), nil
}

// quoteAll percent-encodes everything except ASCII letters, digits and
// "_.-~", so the LaTeX survives as a single path segment.
func quoteAll(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// PandocRunner runs pandoc with input on stdin and returns stdout.
type PandocRunner interface {
	RunPandoc(ctx context.Context, input string, args ...string) (string, error)
}

// MathCache stores converted MathML by LaTeX source.
type MathCache interface {
	Get(ctx context.Context, latex string) (mathml string, ok bool, err error)
	Put(ctx context.Context, latex, mathml string) error
}

// PandocMathML converts math to MathML by running pandoc. Results are
// memoized in Cache when one is set.
type PandocMathML struct {
	Pandoc PandocRunner
	Cache  MathCache
}

var interTagSpace = regexp.MustCompile(`>\s*\n\s*<`)

// ConvertMath implements MathConverter.
func (p PandocMathML) ConvertMath(ctx context.Context, latex string) (string, error) {
	if p.Cache != nil {
		mathml, ok, err := p.Cache.Get(ctx, latex)
		if err != nil {
			return "", fmt.Errorf("math cache: %w", err)
		}
		if ok {
			return mathml, nil
		}
	}
	if p.Pandoc == nil {
		return "", ErrNoMathConverter
	}
	out, err := p.Pandoc.RunPandoc(ctx, "$"+latex+"$", "-f", "markdown", "-t", "html", "--mathml")
	if err != nil {
		return "", fmt.Errorf("Running Pandoc failed:\n%w", err)
	}
	mathml := strings.TrimSpace(out)
	mathml = strings.TrimPrefix(mathml, "<p>")
	mathml = strings.TrimSuffix(mathml, "</p>")
	// Keep the element on one line so it stays inline in the paragraph.
	mathml = interTagSpace.ReplaceAllString(mathml, "><")
	if p.Cache != nil {
		if err := p.Cache.Put(ctx, latex, mathml); err != nil {
			return "", fmt.Errorf("math cache: %w", err)
		}
	}
	return mathml, nil
}
