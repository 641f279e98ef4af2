package quiz

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// NumericKind distinguishes the three accepted answer notations.
type NumericKind int

const (
	// NumericRange is "[min, max]".
	NumericRange NumericKind = iota
	// NumericMargin is "value +- margin" or "value +- margin%".
	NumericMargin
	// NumericExact is a bare integer.
	NumericExact
)

// MinMagnitude is the smallest absolute value an acceptable bound may have.
const MinMagnitude = 1e-4

// NumericAnswer is the acceptance specification of a Numerical question.
// Min and Max are inclusive bounds.
type NumericAnswer struct {
	Kind    NumericKind
	Raw     string
	Min     float64
	Max     float64
	Center  float64 // NumericMargin and NumericExact only
	Margin  float64 // as written; a percentage when Percent is set
	Percent bool

	// Bounds formatted for the QTI document.
	MinText    string
	MaxText    string
	CenterText string
}

// Accepts reports whether x falls inside the inclusive interval. The
// formatted bounds count as written, so 0.8 is inside "0.7 +- 0.1" even
// though 0.7+0.1 rounds below it.
func (n *NumericAnswer) Accepts(x float64) bool {
	lo, hi := n.Min, n.Max
	if v, err := strconv.ParseFloat(n.MinText, 64); err == nil {
		lo = math.Min(lo, v)
	}
	if v, err := strconv.ParseFloat(n.MaxText, 64); err == nil {
		hi = math.Max(hi, v)
	}
	return x >= lo && x <= hi
}

// HasCenter reports whether the answer has a distinguished exact value.
func (n *NumericAnswer) HasCenter() bool {
	return n.Kind != NumericRange
}

// NumericError is returned by ParseNumeric. Syntax is set when the text is
// not in any accepted notation, as opposed to a well-formed value that
// violates a constraint.
type NumericError struct {
	Message string
	Syntax  bool
}

func (e *NumericError) Error() string { return e.Message }

const numericUsage = `Invalid numerical response; need "[<min>, <max>]" or "<number> +- <margin>" or "<integer>"`

// digits is a run of decimal digits with single underscores between them.
const digits = `[0-9]+(?:_[0-9]+)*`

var numericLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "PlusMinus", Pattern: `\+-`},
	{Name: "Number", Pattern: `[+-]?(?:` + digits + `(?:\.(?:` + digits + `)?)?|\.` + digits + `)(?:[eE][+-]?` + digits + `)?`},
	{Name: "Percent", Pattern: `%`},
	{Name: "Punct", Pattern: `[\[\],]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

type numericSpec struct {
	Range *numericRange `parser:"@@"`
	Point *numericPoint `parser:"| @@"`
}

type numericRange struct {
	Min string `parser:"\"[\" @Number \",\""`
	Max string `parser:"@Number \"]\""`
}

type numericPoint struct {
	Value   string  `parser:"@Number"`
	Margin  *string `parser:"( PlusMinus @Number"`
	Percent bool    `parser:"@Percent? )?"`
}

var numericParser = participle.MustBuild[numericSpec](
	participle.Lexer(numericLexer),
	participle.Elide("Whitespace"),
)

// exactIntRe is the notation for a bare integer answer: digit groups may be
// separated by single underscores, exponents are not allowed.
var exactIntRe = regexp.MustCompile(`^(?:0|[+-]?[1-9](?:[0-9]+|_[0-9]+)*)$`)

// ParseNumeric parses the text after a "=" marker.
func ParseNumeric(text string) (*NumericAnswer, error) {
	text = strings.TrimSpace(text)
	ast, err := numericParser.ParseString("", text)
	if err != nil {
		return nil, &NumericError{Message: numericUsage, Syntax: true}
	}

	n := &NumericAnswer{Raw: text}
	switch {
	case ast.Range != nil:
		lo, err1 := parseFloat(ast.Range.Min)
		hi, err2 := parseFloat(ast.Range.Max)
		if err1 != nil || err2 != nil {
			return nil, &NumericError{Message: numericUsage, Syntax: true}
		}
		if lo > hi {
			return nil, &NumericError{Message: `Invalid numerical response; need "[<min>, <max>]" with min <= max`}
		}
		n.Kind = NumericRange
		n.Min, n.Max = lo, hi
		if isIntegral(lo) && isIntegral(hi) {
			n.MinText, n.MaxText = floatRepr(lo), floatRepr(hi)
		} else {
			n.MinText, n.MaxText = fixed4(lo), fixed4(hi)
		}

	case ast.Point.Margin != nil:
		center, err1 := parseFloat(ast.Point.Value)
		margin, err2 := parseFloat(*ast.Point.Margin)
		if err1 != nil || err2 != nil {
			return nil, &NumericError{Message: numericUsage, Syntax: true}
		}
		if margin < 0 {
			return nil, &NumericError{Message: `Invalid numerical response; need "<number> +- <margin>" with margin >= 0`}
		}
		n.Kind = NumericMargin
		n.Center, n.Margin, n.Percent = center, margin, ast.Point.Percent
		delta := margin
		if n.Percent {
			delta = math.Abs(center) * (margin / 100)
		}
		n.Min, n.Max = center-delta, center+delta
		if isIntegral(n.Min) && isIntegral(center) && isIntegral(n.Max) {
			n.MinText, n.CenterText, n.MaxText = floatRepr(n.Min), floatRepr(center), floatRepr(n.Max)
		} else {
			n.MinText, n.CenterText, n.MaxText = fixed4(n.Min), fixed4(center), fixed4(n.Max)
		}

	default:
		if !exactIntRe.MatchString(ast.Point.Value) {
			return nil, &NumericError{Message: numericUsage, Syntax: true}
		}
		digits := strings.ReplaceAll(ast.Point.Value, "_", "")
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil, &NumericError{Message: numericUsage, Syntax: true}
		}
		n.Kind = NumericExact
		n.Center = float64(v)
		n.Min, n.Max = n.Center, n.Center
		s := strconv.FormatInt(v, 10)
		n.MinText, n.CenterText, n.MaxText = s, s, s
	}

	if math.Abs(n.Min) < MinMagnitude || math.Abs(n.Max) < MinMagnitude {
		return nil, &NumericError{Message: "Invalid numerical response; all acceptable values must have a magnitude >= 0.0001"}
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}

// floatRepr formats an integral float the way a float literal prints:
// 3 becomes "3.0".
func floatRepr(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func fixed4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
