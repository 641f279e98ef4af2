package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// siunitxRe matches the supported siunitx macros. The SI form needs two
// arguments; the num and si forms take one.
var siunitxRe = regexp.MustCompile(`\\num\{([^{}]+)\}|\\si\{([^{}]+)\}|\\SI\{([^{}]+)\}\{([^{}]+)\}`)

// siunitxAt is siunitxRe anchored at the start of the input.
var siunitxAt = regexp.MustCompile(`^(?:` + siunitxRe.String() + `)`)

var numberRe = regexp.MustCompile(`^[+-]?(?:0|(?:[1-9][0-9]*(?:\.[0-9]+)?|0?\.[0-9]+)(?:[eE][+-]?(?:[1-9][0-9]*|0+[1-9][0-9]*))?)$`)

// NumToLaTeX converts the argument of \num{...} to plain LaTeX. Exponents
// become "\times 10^{n}".
func NumToLaTeX(number string) (string, error) {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, ".") {
		number = "0" + number
	}
	if !numberRe.MatchString(number) {
		return "", fmt.Errorf("Invalid or unsupported LaTeX number %q", number)
	}
	number = strings.ToLower(number)
	significand, magnitude, ok := strings.Cut(number, "e")
	if !ok {
		return number, nil
	}
	magnitude = strings.TrimLeft(strings.TrimLeft(magnitude, "+"), "0")
	if strings.HasPrefix(magnitude, "-0") {
		magnitude = "-" + strings.TrimLeft(magnitude[1:], "0")
	}
	return significand + `\times 10^{` + magnitude + `}`, nil
}

var unitMacros = map[string]string{
	`\degree`:     `^\circ`,
	`\celsius`:    `^\circ\textrm{C}`,
	`\fahrenheit`: `^\circ\textrm{F}`,
	`\ohm`:        `\Omega`,
	`\micro`:      `\mu`,
}

// SiToLaTeX converts the argument of \si{...} to plain LaTeX wrapped in
// braces. Letters become \text{...}, "." a centered dot, and a small set
// of unit macros is translated; other macros pass through.
func SiToLaTeX(unit string) (string, error) {
	unit = strings.TrimSpace(unit)
	bad := func() (string, error) {
		return "", fmt.Errorf("Invalid or unsupported LaTeX unit %q", unit)
	}
	rs := []rune(unit)
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i < len(rs); {
		c := rs[i]
		switch {
		case c == ' ':
			i++
		case c == '.':
			b.WriteString(`\!\cdot\!`)
			i++
		case c == '^':
			if i+1 >= len(rs) {
				return bad()
			}
			next := rs[i+1]
			switch {
			case unicode.IsDigit(next):
				b.WriteString("^{" + string(next) + "}")
				i += 2
			case next == '\\':
				b.WriteByte('^')
				i++
			default:
				return bad()
			}
		case c == '/':
			b.WriteByte('/')
			i++
		case c == '\\':
			j := i + 1
			for j < len(rs) && unicode.IsLetter(rs[j]) {
				j++
			}
			macro := string(rs[i:j])
			if repl, ok := unitMacros[macro]; ok {
				b.WriteString(repl)
			} else {
				b.WriteString(macro)
			}
			i = j
		case unicode.IsLetter(c):
			j := i + 1
			for j < len(rs) && unicode.IsLetter(rs[j]) {
				j++
			}
			b.WriteString(`\text{` + string(rs[i:j]) + "}")
			i = j
		default:
			return bad()
		}
	}
	b.WriteByte('}')
	return b.String(), nil
}

// SIToLaTeX converts \SI{number}{unit}. Degree-like units attach to the
// number without a thin space.
func SIToLaTeX(number, unit string) (string, error) {
	n, err := NumToLaTeX(number)
	if err != nil {
		return "", err
	}
	u, err := SiToLaTeX(unit)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(u, `{^\circ`) {
		return n + u, nil
	}
	return n + `\,` + u, nil
}

// siunitxMatch converts one siunitxRe submatch to LaTeX.
func siunitxMatch(s string, m []int) (string, error) {
	group := func(k int) string { return s[m[2*k]:m[2*k+1]] }
	switch {
	case m[2] >= 0:
		return NumToLaTeX(group(1))
	case m[4] >= 0:
		return SiToLaTeX(group(2))
	default:
		return SIToLaTeX(group(3), group(4))
	}
}

// replaceSiunitx rewrites every siunitx macro in a math string to plain
// LaTeX.
func replaceSiunitx(s string) (string, error) {
	matches := siunitxRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		latex, err := siunitxMatch(s, m)
		if err != nil {
			return "", err
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(latex)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}
