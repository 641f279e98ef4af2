package quiztext

import (
	"strings"
	"unicode/utf8"
)

// tabWidth is the tab stop used for all indentation math.
const tabWidth = 4

// expandTabs replaces each tab with spaces up to the next multiple of
// tabWidth columns.
func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// width is the display width of s after tab expansion.
func width(s string) int {
	return utf8.RuneCountInString(expandTabs(s))
}

// indentOf returns the number of leading spaces of an expanded line.
func indentOf(expanded string) int {
	return len(expanded) - len(strings.TrimLeft(expanded, " "))
}

// srcLine is one input line with trailing whitespace removed.
type srcLine struct {
	num  int // 1-based source line
	text string
}

// line is a classified input line.
type line struct {
	srcLine
	role   Role
	rule   *rule
	indent int    // leading width after tab expansion
	marker int    // display width of marker plus following whitespace
	rest   string // content after the marker, trimmed
}

// classify assigns a role to a raw line. It is the Line Classifier: rules
// are evaluated in table order, then comments, then blank and body text.
func classify(sl srcLine) line {
	l := line{srcLine: sl, indent: indentOf(expandTabs(sl.text))}
	if strings.TrimSpace(sl.text) == "" {
		l.role = RoleBlank
		return l
	}
	for _, r := range ruleTable {
		loc := r.re.FindStringIndex(sl.text)
		if loc == nil {
			continue
		}
		l.role, l.rule = r.role, r
		if r.content == contentNone {
			l.marker = width(sl.text)
			return l
		}
		// The match ends one character past the whitespace.
		_, size := utf8.DecodeLastRuneInString(sl.text[:loc[1]])
		end := loc[1] - size
		l.marker = width(sl.text[:end])
		l.rest = strings.TrimSpace(sl.text[end:])
		return l
	}
	switch {
	case strings.HasPrefix(sl.text, commentEndMarker):
		l.role = RoleCommentEnd
	case strings.HasPrefix(sl.text, commentStartMarker):
		l.role = RoleCommentStart
	case strings.HasPrefix(sl.text, lineCommentPrefix):
		l.role = RoleLineComment
	default:
		l.role = RoleBody
		l.rest = sl.text
	}
	return l
}

// diagnoseBody explains why a top-level body line is not valid.
func diagnoseBody(text string) (msg, expected string) {
	if m := missingContentRe.FindString(text); m != "" {
		return `Missing content after "` + strings.TrimSpace(m) + `"`, "text after the marker"
	}
	if m := missingSpaceRe.FindString(text); m != "" {
		_, size := utf8.DecodeLastRuneInString(m)
		return `Missing whitespace after "` + m[:len(m)-size] + `"`, "a space or tab after the marker"
	}
	return "Syntax error; unexpected text, or incorrect indentation for a wrapped paragraph:\n" +
		`"` + text + `"`, ""
}

// splitLines splits input into right-trimmed source lines. Trailing
// whitespace never contributes to indentation or content.
func splitLines(text string) []srcLine {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]srcLine, len(raw))
	for i, s := range raw {
		out[i] = srcLine{num: i + 1, text: strings.TrimRight(s, " \t\f\v")}
	}
	return out
}

// lineSource yields lines in order and lets executed code blocks splice
// their output in at the current position.
type lineSource struct {
	lines []srcLine
	pos   int
}

func (s *lineSource) next() (srcLine, bool) {
	if s.pos >= len(s.lines) {
		return srcLine{}, false
	}
	l := s.lines[s.pos]
	s.pos++
	return l, true
}

func (s *lineSource) peek(k int) (srcLine, bool) {
	if s.pos+k >= len(s.lines) {
		return srcLine{}, false
	}
	return s.lines[s.pos+k], true
}

// inject inserts lines so they are returned next.
func (s *lineSource) inject(lines []srcLine) {
	rest := append([]srcLine(nil), s.lines[s.pos:]...)
	s.lines = append(append(s.lines[:s.pos], lines...), rest...)
}

// lastLine is the number of the final input line, for end-of-input errors.
func (s *lineSource) lastLine() int {
	if len(s.lines) == 0 {
		return 0
	}
	return s.lines[len(s.lines)-1].num
}
