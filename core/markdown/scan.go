package markdown

import (
	"strings"
)

// target selects what the preprocessor produces for math and siunitx.
type target int

const (
	// toHTML converts math through a MathConverter and unescapes \$.
	toHTML target = iota
	// toPandoc wraps math in $...$ for Pandoc and keeps \$ escaped.
	toPandoc
)

// preprocess rewrites Markdown before it is rendered. It walks the text
// once, left to right. At each position the first construct that matches
// wins, in this order: fenced code at a line start, siunitx macros,
// backslash escapes, runs of two or more dollars, HTML comments, inline
// code and inline $math$. Code and escapes pass through untouched, HTML
// comments are dropped, and math and siunitx are converted.
func preprocess(s string, t target, convert func(latex string) (string, error)) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if i == 0 || s[i-1] == '\n' {
			if end := fencedCodeEnd(s, i); end > 0 {
				b.WriteString(s[i:end])
				i = end
				continue
			}
		}
		switch s[i] {
		case '\\':
			if m := siunitxAt.FindStringSubmatchIndex(s[i:]); m != nil {
				latex, err := siunitxMatch(s[i:], m)
				if err != nil {
					return "", err
				}
				out, err := emitMath(latex, t, convert)
				if err != nil {
					return "", err
				}
				b.WriteString(out)
				i += m[1]
				continue
			}
			if i+1 < len(s) {
				if s[i+1] == '$' && t == toHTML {
					b.WriteByte('$')
				} else {
					b.WriteString(s[i : i+2])
				}
				i += 2
				continue
			}
		case '$':
			if n := run(s, i, '$'); n >= 2 {
				b.WriteString(s[i : i+n])
				i += n
				continue
			}
			if content, end := inlineMathEnd(s, i); end > 0 {
				latex := strings.ReplaceAll(content, "\n ", " ")
				latex = strings.ReplaceAll(latex, "\n", " ")
				latex, err := replaceSiunitx(latex)
				if err != nil {
					return "", err
				}
				out, err := emitMath(latex, t, convert)
				if err != nil {
					return "", err
				}
				b.WriteString(out)
				i = end
				continue
			}
		case '<':
			if strings.HasPrefix(s[i:], "<!--") {
				if k := strings.Index(s[i+4:], "-->"); k >= 0 {
					i += 4 + k + 3
					continue
				}
			}
		case '`':
			if end := inlineCodeEnd(s, i); end > 0 {
				b.WriteString(s[i:end])
				i = end
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), nil
}

func emitMath(latex string, t target, convert func(string) (string, error)) (string, error) {
	if t == toPandoc {
		return "$" + latex + "$", nil
	}
	return convert(latex)
}

// run returns the length of the run of c starting at i.
func run(s string, i int, c byte) int {
	n := 0
	for i+n < len(s) && s[i+n] == c {
		n++
	}
	return n
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

// fencedCodeEnd matches a ``` or ~~~ fenced block starting at the line
// beginning at i. Every body line must be blank or carry the indentation of
// the opening fence, and the block closes on that indentation followed by
// the same fence. It returns the end offset (after the closing newline) or
// 0 when there is no complete block.
func fencedCodeEnd(s string, i int) int {
	j := i
	for j < len(s) && isBlank(s[j]) {
		j++
	}
	indent := s[i:j]
	if j >= len(s) || (s[j] != '`' && s[j] != '~') {
		return 0
	}
	n := run(s, j, s[j])
	if n < 3 {
		return 0
	}
	fence := s[j : j+n]
	nl := strings.IndexByte(s[j+n:], '\n')
	if nl < 0 {
		return 0
	}
	pos := j + n + nl + 1
	for {
		// closing fence
		if strings.HasPrefix(s[pos:], indent+fence) {
			k := pos + len(indent) + len(fence)
			for k < len(s) && isBlank(s[k]) {
				k++
			}
			if k == len(s) {
				return k
			}
			if s[k] == '\n' {
				return k + 1
			}
		}
		nl := strings.IndexByte(s[pos:], '\n')
		if nl < 0 {
			return 0
		}
		line := s[pos : pos+nl]
		if strings.TrimLeft(line, " \t") != "" && !strings.HasPrefix(line, indent) {
			return 0
		}
		pos += nl + 1
	}
}

// inlineCodeEnd matches a code span opening with the full backtick run at
// i. The span closes on a run of exactly the same length and may continue
// over a line break only when the next line has content.
func inlineCodeEnd(s string, i int) int {
	n := run(s, i, '`')
	j := i + n
	units := 0
	for j < len(s) {
		if units > 0 && s[j-1] != '`' && run(s, j, '`') == n {
			return j + n
		}
		if s[j] != '\n' {
			j++
		} else {
			k := j + 1
			for k < len(s) && isBlank(s[k]) {
				k++
			}
			if k >= len(s) || s[k] == '\n' {
				return 0
			}
			j = k
		}
		units++
	}
	return 0
}

// inlineMathEnd matches $...$ at i. The opening dollar must be followed by
// a non-space, the closing one must not be preceded by whitespace or
// followed by another dollar, and line breaks are allowed only before
// content. It returns the math content and the end offset, or 0.
func inlineMathEnd(s string, i int) (string, int) {
	j := i + 1
	if j >= len(s) || s[j] == ' ' || s[j] == '\t' || s[j] == '\n' {
		return "", 0
	}
scan:
	for j < len(s) {
		c := s[j]
		switch {
		case c != '$' && c != '\n' && c != '\\':
			j++
			continue
		case c == '\\' && j+1 < len(s) && s[j+1] != '\n':
			j += 2
			continue
		case c == '\n' || (c == '\\' && j+1 < len(s) && s[j+1] == '\n'):
			k := j + 1
			if c == '\\' {
				k++
			}
			for k < len(s) && isBlank(s[k]) {
				k++
			}
			if k < len(s) && s[k] != '\n' && s[k] != '$' {
				j = k + 1
				continue
			}
		}
		break scan
	}
	if j == i+1 || j >= len(s) || s[j] != '$' {
		return "", 0
	}
	prev := s[j-1]
	if prev == ' ' || prev == '\t' || prev == '\n' {
		return "", 0
	}
	if j+1 < len(s) && s[j+1] == '$' {
		return "", 0
	}
	return s[i+1 : j], j + 1
}
