// Package markdown renders the rich text of a quiz to HTML.
//
// Text is first preprocessed: HTML comments are dropped, \$ is unescaped,
// and inline $math$ plus a subset of siunitx macros are handed to a
// MathConverter. Code spans and fenced code are left alone. The result is
// rendered with goldmark, with converted math carried as Math nodes, and
// local images are either collected for the archive or inlined as data
// URIs.
package markdown

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/internal/validation"
)

// ImageDir is the archive directory that holds bundled images.
const ImageDir = "images"

// imageBase is how items refer to files bundled in the package.
const imageBase = "%24IMS-CC-FILEBASE%24/" + ImageDir + "/"

// DefaultHighlightStyle is the chroma style used for fenced code.
const DefaultHighlightStyle = "friendly"

// Options configure a Markdown renderer.
type Options struct {
	// BaseDir resolves relative image paths. The working directory is used
	// when empty.
	BaseDir string
	// ImagesBase64 inlines local images as data URIs instead of bundling
	// them.
	ImagesBase64 bool
	// Math converts LaTeX. Documents with math fail to render when nil.
	Math MathConverter
	// HighlightStyle names the chroma style for fenced code.
	HighlightStyle string
	// RestrictImages limits local images to image files below BaseDir.
	// Absolute and home-relative paths are refused, and every local image
	// is refused when BaseDir is empty.
	RestrictImages bool
}

// Markdown is a Renderer for one conversion. It is not safe for concurrent
// use: the collected images belong to the document being parsed.
type Markdown struct {
	ctx    context.Context
	opts   Options
	md     goldmark.Markdown
	images *cas.Store
}

var imageErrKey = parser.NewContextKey()

// New creates a renderer. ctx bounds any external math conversion.
func New(ctx context.Context, opts Options) *Markdown {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = DefaultHighlightStyle
	}
	m := &Markdown{ctx: ctx, opts: opts, images: cas.NewStore()}
	m.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.DefinitionList,
			extension.Footnote,
			extension.Typographer,
			mathExtension{},
			highlighting.NewHighlighting(
				highlighting.WithStyle(opts.HighlightStyle),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
			parser.WithASTTransformers(util.Prioritized(&imageTransformer{m: m}, 100)),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
	return m
}

// Render converts the Markdown of one block to HTML.
func (m *Markdown) Render(src string) (string, error) {
	var converted []string
	pre, err := preprocess(src, toHTML, func(latex string) (string, error) {
		h, err := m.convertMath(latex)
		if err != nil {
			return "", err
		}
		converted = append(converted, h)
		return mathToken(len(converted) - 1), nil
	})
	if err != nil {
		return "", err
	}
	pc := parser.NewContext()
	pc.Set(mathKey, converted)
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(pre), &buf, parser.WithContext(pc)); err != nil {
		return "", fmt.Errorf("Conversion from Markdown to HTML failed:\n%w", err)
	}
	if v := pc.Get(imageErrKey); v != nil {
		return "", v.(error)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Pandoc rewrites block text as Pandoc Markdown: math and siunitx become
// $...$ and HTML comments are dropped.
func (m *Markdown) Pandoc(src string) (string, error) {
	return preprocess(src, toPandoc, nil)
}

// Images returns the local images referenced so far.
func (m *Markdown) Images() *cas.Store {
	return m.images
}

func (m *Markdown) convertMath(latex string) (string, error) {
	if m.opts.Math == nil {
		return "", ErrNoMathConverter
	}
	return m.opts.Math.ConvertMath(m.ctx, latex)
}

// localImage resolves an image destination. Remote URLs are kept; local
// files are read and either stored for the archive or inlined.
func (m *Markdown) localImage(dest string) (string, error) {
	for _, prefix := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(dest, prefix) {
			return dest, nil
		}
	}
	path, err := m.imagePath(dest)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("File %q does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return "", fmt.Errorf("File %q cannot be read due to permission error:\n%w", path, err)
	case err != nil:
		return "", fmt.Errorf("File %q cannot be read:\n%w", path, err)
	}
	if m.opts.RestrictImages {
		if !isImage(path, data) {
			return "", fmt.Errorf("File %q is not an image", dest)
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	if m.opts.ImagesBase64 {
		return "data:" + imageMIME(ext, data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	hash := m.images.Put(data, ext)
	blob, err := m.images.Get(hash)
	if err != nil {
		return "", err
	}
	return imageBase + blob.Name, nil
}

func (m *Markdown) imagePath(dest string) (string, error) {
	if m.opts.RestrictImages {
		if m.opts.BaseDir == "" || strings.HasPrefix(dest, "~") {
			return "", fmt.Errorf("Local image %q is not permitted", dest)
		}
		rel, err := validation.SanitizePath(m.opts.BaseDir, dest)
		if err != nil {
			return "", fmt.Errorf("Local image %q is not permitted:\n%w", dest, err)
		}
		return filepath.Join(m.opts.BaseDir, rel), nil
	}
	path := expandHome(dest)
	if !filepath.IsAbs(path) && m.opts.BaseDir != "" {
		path = filepath.Join(m.opts.BaseDir, path)
	}
	return path, nil
}

// isImage reports whether data is an image matching the extension of path.
// SVG has no signature and only needs to be text.
func isImage(path string, data []byte) bool {
	ft, err := validation.ValidateFileType(bytes.NewReader(data), path)
	if err != nil || !ft.IsImage() {
		return false
	}
	return ft == validation.FileTypeSVG || validation.DetectFileType(data) == ft
}

func imageMIME(ext string, data []byte) string {
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "image/") {
		return strings.TrimSpace(strings.Split(t, ";")[0])
	}
	return http.DetectContentType(data)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

type imageTransformer struct {
	m *Markdown
}

// Transform rewrites image destinations. The first failure is recorded in
// the parser context and stops the walk.
func (t *imageTransformer) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		img, ok := n.(*ast.Image)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		dest, err := t.m.localImage(string(img.Destination))
		if err != nil {
			pc.Set(imageErrKey, err)
			return ast.WalkStop, nil
		}
		img.Destination = []byte(dest)
		return ast.WalkContinue, nil
	})
}
