// Package solutions exports the answer key of a resolved quiz.
//
// Markdown output follows Pandoc conventions: a YAML metadata block, an
// example list ("@.") for questions, and paired LaTeX/HTML raw blocks for
// everything that is not plain Markdown, so one document converts to PDF or
// HTML with pandoc. HTML output is produced in-process from the same walk,
// rendering rich text with a goldmark based Renderer.
package solutions

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/quizqti/core/encoding"
	"github.com/FocuswithJustin/quizqti/core/quiz"
	"github.com/FocuswithJustin/quizqti/core/resolve"
)

// Converter rewrites quiz Markdown into Pandoc Markdown.
type Converter interface {
	Pandoc(text string) (string, error)
}

// Renderer renders quiz Markdown into HTML.
type Renderer interface {
	Render(text string) (string, error)
}

// FileConverter runs pandoc on Markdown input and writes output to path.
type FileConverter interface {
	ToFile(ctx context.Context, input, dir, output string, args ...string) error
}

// Divider separates text regions and multi-question groups in Markdown.
var Divider = strings.Repeat("-", 78) + "\n\n"

// format is the target-specific half of an export.
type format interface {
	header(q *quiz.Quiz) string
	text(raw string) (string, error)
	block(b block) string
	divider() string
	heading(level int, title string) string
	itemStart(unordered bool, n int) string
	itemEnd(unordered bool) string
	nested(s string, first bool) string
	placeholder(n int) string
	numeric(n *quiz.NumericAnswer) string
	footer() string
}

// exporter holds the output as a list of parts so the divider rules can
// look at what was written last.
type exporter struct {
	f     format
	opts  quiz.Options
	parts []string
	n     int // next question number
}

func (e *exporter) add(s ...string) { e.parts = append(e.parts, s...) }

func (e *exporter) lastIsDivider() bool {
	return len(e.parts) > 0 && e.parts[len(e.parts)-1] == e.f.divider()
}

// Markdown exports the solutions of p as Pandoc Markdown.
func Markdown(p *resolve.Plan, c Converter) (string, error) {
	return export(p, &pandocFormat{conv: c})
}

// HTML exports the solutions of p as a standalone HTML document.
func HTML(p *resolve.Plan, r Renderer) (string, error) {
	return export(p, &htmlFormat{r: r})
}

// PDF exports the solutions of p as Markdown and has pandoc typeset it
// into path.
func PDF(ctx context.Context, p *resolve.Plan, c Converter, fc FileConverter, dir, path string) error {
	md, err := Markdown(p, c)
	if err != nil {
		return err
	}
	return fc.ToFile(ctx, md, dir, path)
}

func export(p *resolve.Plan, f format) (string, error) {
	q := p.Quiz
	e := &exporter{f: f, opts: q.Options, n: 1}
	e.add(f.header(q))

	if q.Description != "" {
		s, err := f.text(q.Description)
		if err != nil {
			return "", err
		}
		e.add(s, "\n\n", f.divider())
	}

	before := len(e.parts)
	for _, entry := range p.Solutions {
		switch it := entry.Item.(type) {
		case *quiz.TextRegion:
			if it.Title != "" {
				if len(e.parts) > before && !e.lastIsDivider() {
					e.add(f.divider())
				}
				e.add(f.heading(2, strings.ReplaceAll(it.Title, "\n", " ")))
			}
			if it.Text != "" {
				s, err := f.text(it.Text)
				if err != nil {
					return "", err
				}
				e.add(s, "\n\n")
			}
			e.add(f.divider())
		case *quiz.Question:
			if err := e.question(it, false); err != nil {
				return "", err
			}
		case *quiz.Group:
			if err := e.group(entry, before); err != nil {
				return "", err
			}
		}
	}

	if e.lastIsDivider() {
		e.parts = e.parts[:len(e.parts)-1]
	}
	e.add(f.footer())
	return strings.Join(e.parts, ""), nil
}

// GroupHeading describes how a group appears in the answer key.
func GroupHeading(pick, displayed, members int) string {
	if pick == 1 {
		switch {
		case displayed == 1:
			return "Randomized question: representative example is shown"
		case displayed < members:
			return fmt.Sprintf("Randomized question: randomly select %d from representative examples shown", pick)
		}
		return fmt.Sprintf("Randomized question: randomly select %d", pick)
	}
	switch {
	case displayed == pick:
		return "Randomized questions: representative examples are shown"
	case displayed < members:
		return fmt.Sprintf("Randomized questions: randomly select %d from representative examples shown", pick)
	}
	return fmt.Sprintf("Randomized questions: randomly select %d", pick)
}

func (e *exporter) group(entry resolve.Entry, before int) error {
	f := e.f
	g := entry.Group
	needsDivider := false
	if entry.Displayed > 1 {
		if len(e.parts) > before && !e.lastIsDivider() {
			e.add(f.divider())
		}
		needsDivider = true
	}
	e.add(f.heading(3, GroupHeading(g.Pick, entry.Displayed, len(g.Questions))))

	if entry.Unordered {
		for i := 0; i < g.Pick; i++ {
			e.add(f.placeholder(e.n))
			e.n++
		}
		e.add(f.block(randomStart))
	}
	for _, question := range entry.Questions {
		if err := e.question(question, entry.Unordered); err != nil {
			return err
		}
	}
	if entry.Unordered {
		e.add(f.block(randomEnd))
	}
	if needsDivider {
		e.add(f.divider())
	}
	return nil
}

func (e *exporter) question(q *quiz.Question, unordered bool) error {
	f := e.f
	stem, err := f.text(q.Stem)
	if err != nil {
		return err
	}
	e.add(f.itemStart(unordered, e.n), f.nested(stem, false), "\n\n")
	if !unordered {
		e.n++
	}

	nestedBlock := func(b block) { e.add(f.nested(f.block(b), true)) }
	choices := func(plain, correct block) error {
		nestedBlock(choicesStart)
		for _, c := range q.Choices {
			if c.Correct {
				nestedBlock(correct)
			} else {
				nestedBlock(plain)
			}
			s, err := f.text(c.Text)
			if err != nil {
				return err
			}
			e.add(f.nested(s, true), "\n\n")
			nestedBlock(choiceEnd)
		}
		nestedBlock(choicesEnd)
		return nil
	}

	switch q.Variant {
	case quiz.MultipleChoice, quiz.TrueFalse:
		if err := choices(mctfChoiceStart, mctfCorrectChoiceStart); err != nil {
			return err
		}
	case quiz.MultipleAnswer:
		if err := choices(multansChoiceStart, multansCorrectChoiceStart); err != nil {
			return err
		}
	case quiz.ShortAnswer:
		answers := make([]string, len(q.Choices))
		for i, c := range q.Choices {
			answers[i] = c.Text
		}
		s, err := f.text(strings.Join(answers, " | "))
		if err != nil {
			return err
		}
		nestedBlock(choicesStart)
		nestedBlock(genericCorrectStart)
		e.add(f.nested(s, true), "\n\n")
		nestedBlock(choiceEnd)
		nestedBlock(choicesEnd)
	case quiz.Numerical:
		nestedBlock(choicesStart)
		nestedBlock(genericCorrectStart)
		e.add(f.nested(f.numeric(q.Numeric), true), "\n\n")
		nestedBlock(choiceEnd)
		nestedBlock(choicesEnd)
	}

	if sol := q.EffectiveSolution(e.opts.FeedbackIsSolution); sol != "" {
		s, err := f.text(sol)
		if err != nil {
			return err
		}
		nestedBlock(solutionStart)
		e.add(f.nested(s, true), "\n\n")
		nestedBlock(solutionEnd)
	}
	e.add(f.itemEnd(unordered))
	return nil
}

// numericParts returns the answer as written, with "+-" joined to its
// margin and a zero margin dropped, plus the accepted interval when the
// answer has a margin.
func numericParts(n *quiz.NumericAnswer) (ans string, interval []string) {
	ans = n.Raw
	if n.Kind != quiz.NumericMargin {
		return ans, nil
	}
	for strings.Contains(ans, "+- ") {
		ans = strings.ReplaceAll(ans, "+- ", "+-")
	}
	if strings.HasSuffix(ans, "+-0") {
		ans = strings.TrimSpace(strings.TrimSuffix(ans, "+-0"))
	}
	if integral(n.Min) && integral(n.Max) && !strings.ContainsAny(n.Raw, ".eE%") {
		return ans, []string{strconv.FormatFloat(n.Min, 'f', -1, 64), strconv.FormatFloat(n.Max, 'f', -1, 64)}
	}
	return ans, []string{strconv.FormatFloat(n.Min, 'f', 4, 64), strconv.FormatFloat(n.Max, 'f', 4, 64)}
}

func integral(v float64) bool { return v == math.Trunc(v) }

// indent prefixes every non-blank line of text with n spaces, optionally
// leaving the first line alone.
func indent(text string, n int, firstLine bool) string {
	if n == 0 || text == "" {
		return text
	}
	pad := strings.Repeat(" ", n)
	out := strings.ReplaceAll(text, "\n", "\n"+pad)
	out = strings.ReplaceAll(out, "\n"+pad+"\n", "\n\n")
	if strings.HasSuffix(text, "\n") {
		out = strings.TrimRight(out, " ")
	}
	if firstLine && text[0] != '\n' {
		out = pad + out
	}
	return out
}

// pandocFormat writes Pandoc Markdown.
type pandocFormat struct {
	conv Converter
}

func (p *pandocFormat) header(q *quiz.Quiz) string {
	title := encoding.EscapeMarkdown(q.Title)
	title += "`\\\\ \\textsc{solutions}`{=latex}"
	title += "`<br><span style=\"font-variant: small-caps;\">solutions</span>`{=html}"
	return "---\n" + pandocMetadata(title, strings.TrimRight(p.block(headerBlock), "\n")+"\n") + "...\n\n"
}

// pandocMetadata encodes the YAML metadata block of a solutions document:
// the title double-quoted and the preamble as a literal block.
func pandocMetadata(title, headerIncludes string) string {
	str := func(v string, style yaml.Style) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Style: style}
	}
	meta := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		str("title", 0), str(title, yaml.DoubleQuotedStyle),
		str("header-includes", 0), str(headerIncludes, yaml.LiteralStyle),
	}}
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(4)
	// Encoding a tree of valid UTF-8 string scalars cannot fail.
	_ = enc.Encode(meta)
	_ = enc.Close()
	return b.String()
}

func (p *pandocFormat) text(raw string) (string, error) { return p.conv.Pandoc(raw) }

func (p *pandocFormat) block(b block) string {
	return "```{=latex}\n" + b.latex + "\n```\n\n```{=html}\n" + b.html + "\n```\n\n"
}

func (p *pandocFormat) divider() string { return Divider }

func (p *pandocFormat) heading(level int, title string) string {
	if level == 2 {
		title = encoding.EscapeMarkdown(title)
	}
	return strings.Repeat("#", level) + " " + title + "\n\n"
}

func (p *pandocFormat) itemStart(unordered bool, _ int) string {
	if unordered {
		return "*   "
	}
	return "@.  "
}

func (p *pandocFormat) itemEnd(bool) string { return "" }

func (p *pandocFormat) nested(s string, first bool) string { return indent(s, 4, first) }

func (p *pandocFormat) placeholder(int) string { return "@.  `<randomly selected>`\n\n" }

func (p *pandocFormat) numeric(n *quiz.NumericAnswer) string {
	ans, interval := numericParts(n)
	ans = strings.ReplaceAll(ans, "+-", `\pm `)
	ans = strings.ReplaceAll(ans, "%", `\%`)
	if interval != nil {
		ans += fmt.Sprintf(` \quad \Rightarrow \quad [%s, %s]`, interval[0], interval[1])
	}
	return "$" + ans + "$"
}

func (p *pandocFormat) footer() string { return "" }

// htmlFormat writes a standalone HTML document.
type htmlFormat struct {
	r Renderer
}

func (h *htmlFormat) header(q *quiz.Quiz) string {
	title := encoding.EscapeHTML(q.Title)
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" + title + " (solutions)</title>\n" +
		htmlStyle + "</head>\n<body>\n<h1>" + title + "<br><span style=\"font-variant: small-caps;\">solutions</span></h1>\n"
}

func (h *htmlFormat) text(raw string) (string, error) {
	s, err := h.r.Render(raw)
	if err != nil {
		return "", err
	}
	return s, nil
}

func (h *htmlFormat) block(b block) string { return b.html + "\n" }

func (h *htmlFormat) divider() string { return "<hr>\n" }

func (h *htmlFormat) heading(level int, title string) string {
	return fmt.Sprintf("<h%d>%s</h%d>\n", level, encoding.EscapeHTML(title), level)
}

func (h *htmlFormat) itemStart(unordered bool, n int) string {
	if unordered {
		return "<ul><li>\n"
	}
	return fmt.Sprintf("<ol start=\"%d\"><li>\n", n)
}

func (h *htmlFormat) itemEnd(unordered bool) string {
	if unordered {
		return "</li></ul>\n"
	}
	return "</li></ol>\n"
}

func (h *htmlFormat) nested(s string, _ bool) string { return s }

func (h *htmlFormat) placeholder(n int) string {
	return fmt.Sprintf("<ol start=\"%d\"><li><code>&lt;randomly selected&gt;</code></li></ol>\n", n)
}

func (h *htmlFormat) numeric(n *quiz.NumericAnswer) string {
	ans, interval := numericParts(n)
	ans = strings.ReplaceAll(ans, "+-", "± ")
	s := encoding.EscapeHTML(ans)
	if interval != nil {
		s += fmt.Sprintf(" ⇒ [%s, %s]", interval[0], interval[1])
	}
	return "<p>" + s + "</p>"
}

func (h *htmlFormat) footer() string { return "</body>\n</html>\n" }
