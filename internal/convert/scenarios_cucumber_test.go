//go:build cucumber

package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/qti"
	"github.com/FocuswithJustin/quizqti/core/quiz"
	"github.com/FocuswithJustin/quizqti/core/solutions"
)

// TestConvertScenarios runs the conversion feature scenarios.
func TestConvertScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "convert",
		ScenarioInitializer: InitializeConvertScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("testdata", "features")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeConvertScenario wires the conversion steps.
func InitializeConvertScenario(ctx *godog.ScenarioContext) {
	state := &convertScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^the quiz text:$`, state.givenQuizText)
	ctx.Step(`^I convert it$`, state.whenIConvert)
	ctx.Step(`^the conversion succeeds$`, state.thenSucceeds)
	ctx.Step(`^the quiz title is "([^"]*)"$`, state.thenTitle)
	ctx.Step(`^question (\d+) is a "([^"]+)" question$`, state.thenVariant)
	ctx.Step(`^question (\d+) has (\d+) choices with (\d+) correct$`, state.thenChoices)
	ctx.Step(`^choice "([^"]*)" of question (\d+) is correct$`, state.thenChoiceCorrect)
	ctx.Step(`^question (\d+) is worth (\d+) points?$`, state.thenPoints)
	ctx.Step(`^question (\d+) accepts the interval \[([^,]+), ([^\]]+)\]$`, state.thenInterval)
	ctx.Step(`^question (\d+) accepts (\S+) but not (\S+)$`, state.thenAccepts)
	ctx.Step(`^the delivered group picks (\d+) of (\d+) questions$`, state.thenGroupPick)
	ctx.Step(`^the solutions show "([^"]+)", "([^"]+)" and "([^"]+)" in order$`, state.thenSolutionsOrder)
	ctx.Step(`^the archive re-reads with (\d+) questions and (\d+) points$`, state.thenArchive)
	ctx.Step(`^the conversion fails with a semantic error naming lines (\d+) and (\d+)$`, state.thenSemanticError)
}

// convertScenarioState holds scenario state for conversion feature tests.
type convertScenarioState struct {
	text   string
	result *Result
	err    error
}

func (s *convertScenarioState) reset() {
	s.text = ""
	s.result = nil
	s.err = nil
}

func (s *convertScenarioState) givenQuizText(doc *godog.DocString) error {
	s.text = doc.Content + "\n"
	return nil
}

func (s *convertScenarioState) whenIConvert() error {
	c := &Converter{}
	s.result, s.err = c.Compile(context.Background(), s.text, Options{Source: `"scenario"`})
	return nil
}

func (s *convertScenarioState) thenSucceeds() error {
	if s.err != nil {
		return fmt.Errorf("conversion failed: %v", s.err)
	}
	return nil
}

func (s *convertScenarioState) question(n int) (*quiz.Question, error) {
	if s.result == nil {
		return nil, fmt.Errorf("no conversion result")
	}
	qs := s.result.Quiz.Questions()
	if n < 1 || n > len(qs) {
		return nil, fmt.Errorf("quiz has %d questions, no question %d", len(qs), n)
	}
	return qs[n-1], nil
}

func (s *convertScenarioState) thenTitle(title string) error {
	if got := s.result.Quiz.Title; got != title {
		return fmt.Errorf("title = %q, want %q", got, title)
	}
	return nil
}

func (s *convertScenarioState) thenVariant(n int, variant string) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	if q.Variant.String() != variant {
		return fmt.Errorf("question %d is %s, want %s", n, q.Variant, variant)
	}
	return nil
}

func (s *convertScenarioState) thenChoices(n, total, correct int) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	if len(q.Choices) != total || q.CorrectCount() != correct {
		return fmt.Errorf("question %d has %d choices with %d correct", n, len(q.Choices), q.CorrectCount())
	}
	return nil
}

func (s *convertScenarioState) thenChoiceCorrect(text string, n int) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	for _, c := range q.Choices {
		if c.Text == text {
			if !c.Correct {
				return fmt.Errorf("choice %q is not marked correct", text)
			}
			return nil
		}
	}
	return fmt.Errorf("question %d has no choice %q", n, text)
}

func (s *convertScenarioState) thenPoints(n int, points int) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	if q.Points != float64(points) {
		return fmt.Errorf("question %d is worth %v points", n, q.Points)
	}
	return nil
}

func (s *convertScenarioState) thenInterval(n int, lo, hi string) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	if q.Numeric == nil {
		return fmt.Errorf("question %d has no numeric answer", n)
	}
	if q.Numeric.MinText != lo || q.Numeric.MaxText != hi {
		return fmt.Errorf("interval = [%s, %s]", q.Numeric.MinText, q.Numeric.MaxText)
	}
	return nil
}

func (s *convertScenarioState) thenAccepts(n int, in, out string) error {
	q, err := s.question(n)
	if err != nil {
		return err
	}
	x, err := strconv.ParseFloat(in, 64)
	if err != nil {
		return err
	}
	y, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return err
	}
	if !q.Numeric.Accepts(x) || q.Numeric.Accepts(y) {
		return fmt.Errorf("Accepts(%v) = %v, Accepts(%v) = %v", x, q.Numeric.Accepts(x), y, q.Numeric.Accepts(y))
	}
	return nil
}

func (s *convertScenarioState) thenGroupPick(pick, total int) error {
	for _, it := range s.result.Plan.Delivery {
		if g, ok := it.(*quiz.Group); ok {
			if g.Pick != pick || len(g.Questions) != total {
				return fmt.Errorf("group picks %d of %d", g.Pick, len(g.Questions))
			}
			return nil
		}
	}
	return fmt.Errorf("no group delivered")
}

func (s *convertScenarioState) thenSolutionsOrder(a, b, c string) error {
	for _, e := range s.result.Plan.Solutions {
		if e.Group == nil {
			continue
		}
		var got []string
		for _, q := range e.Questions {
			got = append(got, q.Stem)
		}
		if strings.Join(got, "|") != strings.Join([]string{a, b, c}, "|") {
			return fmt.Errorf("solutions show %q", got)
		}
		md, err := solutions.Markdown(s.result.Plan, identity{})
		if err != nil {
			return err
		}
		if strings.Index(md, a) > strings.Index(md, b) || strings.Index(md, b) > strings.Index(md, c) {
			return fmt.Errorf("solutions document is out of order:\n%s", md)
		}
		return nil
	}
	return fmt.Errorf("no group in solutions")
}

func (s *convertScenarioState) thenArchive(questions, points int) error {
	data, err := s.result.Package.Bytes()
	if err != nil {
		return err
	}
	sum, err := qti.ReadArchive(data)
	if err != nil {
		return err
	}
	if sum.Questions() != questions || sum.PointsPossible() != float64(points) {
		return fmt.Errorf("archive has %d questions worth %v", sum.Questions(), sum.PointsPossible())
	}
	return nil
}

func (s *convertScenarioState) thenSemanticError(a, b int) error {
	if s.err == nil {
		return fmt.Errorf("conversion succeeded")
	}
	var se *qerrors.SemanticError
	if !qerrors.As(s.err, &se) {
		return fmt.Errorf("error %T is not a SemanticError: %v", s.err, s.err)
	}
	if len(se.Lines) != 2 || se.Lines[0] != a || se.Lines[1] != b {
		return fmt.Errorf("error names lines %v", se.Lines)
	}
	return nil
}

type identity struct{}

func (identity) Pandoc(s string) (string, error) { return s, nil }
