// Package convert runs the whole compiler: quiz text is parsed with the
// configured rich text pipeline, resolved, and serialized to a QTI
// package, with an optional solutions export.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/FocuswithJustin/quizqti/core/markdown"
	"github.com/FocuswithJustin/quizqti/core/qti"
	"github.com/FocuswithJustin/quizqti/core/quiz"
	"github.com/FocuswithJustin/quizqti/core/quiztext"
	"github.com/FocuswithJustin/quizqti/core/resolve"
	"github.com/FocuswithJustin/quizqti/core/runner"
	"github.com/FocuswithJustin/quizqti/core/solutions"
	"github.com/FocuswithJustin/quizqti/internal/config"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

// Options configure one conversion.
type Options struct {
	// Source names the document in diagnostics.
	Source string
	// BaseDir resolves relative image paths and is the pandoc working
	// directory.
	BaseDir string
	// Seed fixes the solutions draw; nil uses the document's canonical
	// seed.
	Seed *uint64
	// Date is written into the package; zero gives a fixed epoch.
	Date time.Time

	LatexRenderURL string
	PandocMathML   bool
	RunCodeBlocks  bool
	ImagesBase64   bool
	HighlightStyle string
	// RestrictImages confines local images to BaseDir.
	RestrictImages bool
}

// OptionsFromConfig copies the rendering settings of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		LatexRenderURL: cfg.LatexRenderURL,
		PandocMathML:   cfg.PandocMathML,
		RunCodeBlocks:  cfg.RunCodeBlocks,
		ImagesBase64:   cfg.ImagesBase64,
		HighlightStyle: cfg.HighlightStyle,
	}
}

// MathCache is the persistent MathML cache with its run lifecycle.
type MathCache interface {
	markdown.MathCache
	Age(ctx context.Context) error
	Prune(ctx context.Context) (int64, error)
}

// Converter holds the collaborators shared by conversions. It is safe for
// concurrent use as long as its collaborators are.
type Converter struct {
	Pandoc *runner.Pandoc
	Code   *runner.CodeRunner
	// Cache memoizes pandoc MathML; optional.
	Cache MathCache
}

// New creates a Converter with default runners.
func New(cache MathCache) *Converter {
	exec := runner.NewExecutor()
	return &Converter{
		Pandoc: runner.NewPandoc(exec),
		Code:   runner.NewCodeRunner(exec),
		Cache:  cache,
	}
}

// Result is a compiled quiz.
type Result struct {
	Quiz    *quiz.Quiz
	Plan    *resolve.Plan
	Package *qti.Package
}

// renderer builds the Markdown renderer for one document.
func (c *Converter) renderer(ctx context.Context, opts Options) *markdown.Markdown {
	var math markdown.MathConverter
	switch {
	case opts.PandocMathML:
		pm := markdown.PandocMathML{Pandoc: c.Pandoc}
		if c.Cache != nil {
			pm.Cache = c.Cache
		}
		math = pm
	case opts.LatexRenderURL != "":
		math = markdown.CanvasImages{URL: opts.LatexRenderURL}
	}
	return markdown.New(ctx, markdown.Options{
		BaseDir:        opts.BaseDir,
		ImagesBase64:   opts.ImagesBase64,
		Math:           math,
		HighlightStyle: opts.HighlightStyle,
		RestrictImages: opts.RestrictImages,
	})
}

// Parse compiles text into a quiz without serializing it.
func (c *Converter) Parse(ctx context.Context, text string, opts Options) (*quiz.Quiz, error) {
	q, _, err := c.parse(ctx, text, opts)
	return q, err
}

func (c *Converter) parse(ctx context.Context, text string, opts Options) (*quiz.Quiz, *markdown.Markdown, error) {
	if opts.PandocMathML && c.Cache != nil {
		if err := c.Cache.Age(ctx); err != nil {
			logging.Warn("math cache unavailable", "error", err)
		}
		defer func() {
			if _, err := c.Cache.Prune(ctx); err != nil {
				logging.Warn("math cache prune failed", "error", err)
			}
		}()
	}
	md := c.renderer(ctx, opts)
	qopts := quiztext.Options{Source: opts.Source, Renderer: md}
	if opts.RunCodeBlocks {
		qopts.Code = c.Code
	}
	q, err := quiztext.Parse(ctx, text, qopts)
	if err != nil {
		return nil, nil, err
	}
	return q, md, nil
}

// Compile parses, resolves and serializes text.
func (c *Converter) Compile(ctx context.Context, text string, opts Options) (*Result, error) {
	start := time.Now()
	q, _, err := c.parse(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	plan := resolve.Resolve(q, opts.Seed)
	pkg := qti.Build(plan, qti.Options{Date: opts.Date})
	sum := Summarize(q)
	logging.Conversion(ctx, logging.ConversionRecord{
		Source:     opts.Source,
		Assessment: pkg.IDs.Assessment,
		Questions:  sum.Questions,
		Points:     sum.PointsPossible,
		Images:     sum.Images,
		Duration:   time.Since(start),
	})
	return &Result{Quiz: q, Plan: plan, Package: pkg}, nil
}

// SolutionsFormat is an output format for the answer key.
type SolutionsFormat string

const (
	FormatMarkdown SolutionsFormat = "md"
	FormatHTML     SolutionsFormat = "html"
	FormatPDF      SolutionsFormat = "pdf"
)

// FormatFromPath picks the solutions format from a file extension.
func FormatFromPath(path string) (SolutionsFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("solutions file %q must end in .md, .html or .pdf", path)
}

// Solutions renders the answer key of r as Markdown or HTML. HTML inlines
// local images so the page stands alone.
func (c *Converter) Solutions(ctx context.Context, r *Result, format SolutionsFormat, opts Options) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		md, err := solutions.Markdown(r.Plan, c.renderer(ctx, opts))
		return []byte(md), err
	case FormatHTML:
		opts.ImagesBase64 = true
		html, err := solutions.HTML(r.Plan, c.renderer(ctx, opts))
		return []byte(html), err
	}
	return nil, fmt.Errorf("solutions format %q cannot be rendered to memory", format)
}

// WriteSolutions writes the answer key of r to path in the format its
// extension names. PDF output runs pandoc.
func (c *Converter) WriteSolutions(ctx context.Context, r *Result, path string, opts Options) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if format == FormatPDF {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		return writeFile(abs, func(tmp string) error {
			return solutions.PDF(ctx, r.Plan, c.renderer(ctx, opts), c.Pandoc, opts.BaseDir, tmp)
		})
	}
	data, err := c.Solutions(ctx, r, format, opts)
	if err != nil {
		return err
	}
	return writeBytes(path, data)
}

// WriteArchive writes the package of r to path.
func WriteArchive(r *Result, path string) error {
	var buf bytes.Buffer
	if err := r.Package.WriteZip(&buf); err != nil {
		return err
	}
	return writeBytes(path, buf.Bytes())
}

// ArchivePath is the default archive location for an input file:
// "quiz.md" becomes "quiz.zip" beside it.
func ArchivePath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".zip"
}

// Summary describes a compiled quiz.
type Summary struct {
	Title          string  `json:"title"`
	ID             string  `json:"id"`
	Questions      int     `json:"questions"`
	Groups         int     `json:"groups"`
	TextRegions    int     `json:"text_regions"`
	Images         int     `json:"images"`
	PointsPossible float64 `json:"points_possible"`
}

// Summarize counts the parts of q.
func Summarize(q *quiz.Quiz) Summary {
	s := Summary{
		Title:          q.Title,
		ID:             q.ID(),
		Questions:      len(q.Questions()),
		Groups:         len(q.Groups()),
		PointsPossible: q.PointsPossible(),
	}
	for _, it := range q.Items {
		if _, ok := it.(*quiz.TextRegion); ok {
			s.TextRegions++
		}
	}
	if q.Images != nil {
		s.Images = q.Images.Len()
	}
	return s
}
