package markdown

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Converted math is carried through goldmark as a token of private-use
// runes around the index of the conversion. An inline parser turns each
// token into a Math node, so math never starts an HTML block and the
// surrounding Markdown is parsed normally.
const (
	mathOpen  = "\uE000"
	mathClose = "\uE001"
)

var mathKey = parser.NewContextKey()

func mathToken(i int) string {
	return mathOpen + strconv.Itoa(i) + mathClose
}

// KindMath is the node kind of converted inline math.
var KindMath = ast.NewNodeKind("Math")

// Math is an inline node holding the HTML produced by a MathConverter.
type Math struct {
	ast.BaseInline
	HTML []byte
}

// Kind implements ast.Node.
func (n *Math) Kind() ast.NodeKind { return KindMath }

// Dump implements ast.Node.
func (n *Math) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"HTML": string(n.HTML)}, nil)
}

type mathParser struct{}

func (mathParser) Trigger() []byte {
	return []byte{mathOpen[0]}
}

func (mathParser) Parse(_ ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	s := string(line)
	if !strings.HasPrefix(s, mathOpen) {
		return nil
	}
	end := strings.Index(s, mathClose)
	if end < 0 {
		return nil
	}
	i, err := strconv.Atoi(s[len(mathOpen):end])
	if err != nil {
		return nil
	}
	converted, _ := pc.Get(mathKey).([]string)
	if i < 0 || i >= len(converted) {
		return nil
	}
	block.Advance(end + len(mathClose))
	return &Math{HTML: []byte(converted[i])}
}

type mathRenderer struct{}

func (mathRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMath, func(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			_, _ = w.Write(n.(*Math).HTML)
		}
		return ast.WalkSkipChildren, nil
	})
}

type mathExtension struct{}

func (mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(util.Prioritized(mathParser{}, 50)))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(mathRenderer{}, 50)))
}
