package quiztext

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
)

// Block is one logical element: a marker line plus its continuation
// lines, reduced to a single span of text.
type Block struct {
	Role    Role
	Text    string
	Line    int // first source line
	EndLine int // last source line
}

// minHeaderIndent is the smallest continuation indent accepted for
// "Key:" header blocks.
const minHeaderIndent = 2

// runInfoRe matches the info string of an executable fence:
// {.python .run} or {.bash .run executable="~/bin/bash"}.
var runInfoRe = regexp.MustCompile(`^\{\s*` +
	`\.(?P<lang>[a-zA-Z](?:[a-zA-Z0-9]+|[._\-]+[a-zA-Z0-9]+)*)` +
	`\s+\.run` +
	`(?:\s+executable=(?P<exe>[~\w/.\-]+|"[^\\"']+"))?` +
	`\s*\}$`)

// assembler is the Block Assembler. It pulls lines from the source,
// tracks indentation and emits one Block per element. Comments are
// consumed here and executable code blocks are expanded in place.
type assembler struct {
	ctx    context.Context
	src    *lineSource
	source string
	code   CodeRunner
}

func (a *assembler) syntax(ln int, msg, expected string) error {
	return &qerrors.SyntaxError{Source: a.source, Line: ln, Expected: expected, Message: msg}
}

// next returns the next block, or nil at end of input.
func (a *assembler) next() (*Block, error) {
	for {
		sl, ok := a.src.next()
		if !ok {
			return nil, nil
		}
		l := classify(sl)
		switch l.role {
		case RoleBlank, RoleLineComment:
			continue
		case RoleCommentStart:
			if err := a.skipComment(l); err != nil {
				return nil, err
			}
			continue
		case RoleCommentEnd:
			return nil, a.syntax(l.num, `"END_COMMENT" without preceding "COMMENT"`, "")
		case RoleCodeStart:
			if err := a.runCode(l); err != nil {
				return nil, err
			}
			continue
		case RoleCodeEnd:
			return nil, a.syntax(l.num, "Code block end missing code block start", "")
		case RoleBody:
			msg, expected := diagnoseBody(l.rest)
			return nil, a.syntax(l.num, msg, expected)
		}

		b := &Block{Role: l.role, Text: l.rest, Line: l.num, EndLine: l.num}
		switch l.rule.content {
		case contentNone, contentLine:
			return b, nil
		}
		if err := a.continuation(b, l); err != nil {
			return nil, err
		}
		return b, nil
	}
}

// continuation appends the indented lines that belong to b. This is where
// the Indentation Tracker decides between continuing and ending a block.
func (a *assembler) continuation(b *Block, first line) error {
	multiPara := first.rule.content == contentMultiPara
	baseline := first.marker
	if first.rule.header() {
		baseline = -1
	}

	parts := []string{first.rest}
	for {
		sl, ok := a.src.peek(0)
		if !ok {
			break
		}
		expanded := expandTabs(sl.text)
		if strings.TrimSpace(expanded) == "" {
			if multiPara {
				a.src.next()
				parts = append(parts, "")
				continue
			}
			if err := a.checkSingleParagraph(baseline); err != nil {
				return err
			}
			break
		}
		indent := indentOf(expanded)
		if baseline < 0 {
			if indent == 0 {
				break
			}
			if indent < minHeaderIndent {
				return a.syntax(sl.num, "Indentation must be at least 2 spaces or 1 tab here", "")
			}
			baseline = indent
		}
		if indent < baseline {
			break
		}
		a.src.next()
		parts = append(parts, expanded[baseline:])
		b.EndLine = sl.num
	}

	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	b.Text = strings.Join(parts, "\n")
	return nil
}

// checkSingleParagraph rejects a second indented paragraph after a blank
// line in a title block.
func (a *assembler) checkSingleParagraph(baseline int) error {
	for k := 0; ; k++ {
		sl, ok := a.src.peek(k)
		if !ok {
			return nil
		}
		expanded := expandTabs(sl.text)
		if strings.TrimSpace(expanded) == "" {
			continue
		}
		indent := indentOf(expanded)
		limit := baseline
		if limit < 0 {
			limit = minHeaderIndent
		}
		if indent >= limit {
			return a.syntax(sl.num, "Titles must be a single paragraph", "")
		}
		return nil
	}
}

func (a *assembler) skipComment(start line) error {
	if strings.TrimSpace(start.text) != commentStartMarker {
		return a.syntax(start.num, `Unexpected content after "COMMENT"`, "")
	}
	for {
		sl, ok := a.src.next()
		if !ok {
			return a.syntax(a.src.lastLine(), `"COMMENT" without following "END_COMMENT"`, `"END_COMMENT"`)
		}
		if !strings.HasPrefix(sl.text, commentEndMarker) {
			continue
		}
		if strings.TrimSpace(sl.text) != commentEndMarker {
			return a.syntax(sl.num, `Unexpected content after "END_COMMENT"`, "")
		}
		return nil
	}
}

// runCode collects an executable fenced block, runs it and splices its
// standard output into the line stream at the fence position. The output
// lines are attributed to the opening fence line.
func (a *assembler) runCode(start line) error {
	info := strings.TrimSpace(strings.TrimLeft(start.text, "`"))
	m := runInfoRe.FindStringSubmatch(info)
	if m == nil {
		return a.syntax(start.num, "Invalid code block start", "an executable fence such as ```{.python .run}")
	}
	lang := m[runInfoRe.SubexpIndex("lang")]
	exe := m[runInfoRe.SubexpIndex("exe")]
	if strings.HasPrefix(exe, `"`) {
		exe = exe[1 : len(exe)-1]
	}
	exe = expandHome(exe)

	delim := start.text[:len(start.text)-len(strings.TrimLeft(start.text, "`"))]
	var body []string
	for {
		sl, ok := a.src.next()
		if !ok {
			return a.syntax(a.src.lastLine(), "Code closing fence is missing", delim)
		}
		rest := strings.TrimLeft(sl.text, "`")
		if len(sl.text)-len(rest) == len(delim) {
			if strings.TrimSpace(rest) != "" {
				return a.syntax(sl.num, "Unexpected content after code closing fence", delim)
			}
			break
		}
		body = append(body, sl.text)
	}

	if a.code == nil {
		return qerrors.NewCollaborator(a.source, start.num, "code block", ErrCodeDisabled)
	}
	stdout, err := a.code.RunCode(a.ctx, lang, exe, strings.Join(body, "\n")+"\n")
	if err != nil {
		return qerrors.NewCollaborator(a.source, start.num, "code block", err)
	}
	var injected []srcLine
	for _, s := range splitLines(stdout) {
		injected = append(injected, srcLine{num: start.num, text: s.text})
	}
	a.src.inject(injected)
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.ToSlash(filepath.Join(home, strings.TrimPrefix(p, "~")))
		}
	}
	return p
}
