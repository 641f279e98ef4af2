package quiztext

import (
	"context"
	"errors"
	"strings"
	"testing"

	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/quiz"
)

func mustParse(t *testing.T, text string) *quiz.Quiz {
	t.Helper()
	q, err := Parse(context.Background(), text, Options{Source: `"test.txt"`})
	if err != nil {
		t.Fatalf("Parse() error:\n%v", err)
	}
	return q
}

func TestScenarioMultipleChoice(t *testing.T) {
	q := mustParse(t, "1.  What is 2+3?\na)  6\nb)  1\n*c) 5\n")

	if q.Title != "Quiz" || q.TitleSet {
		t.Errorf("Title = %q (set %v), want default", q.Title, q.TitleSet)
	}
	qs := q.Questions()
	if len(qs) != 1 {
		t.Fatalf("len(Questions()) = %d, want 1", len(qs))
	}
	question := qs[0]
	if question.Variant != quiz.MultipleChoice {
		t.Errorf("Variant = %v, want multiple choice", question.Variant)
	}
	if question.Points != 1 {
		t.Errorf("Points = %v, want 1", question.Points)
	}
	if question.Stem != "What is 2+3?" {
		t.Errorf("Stem = %q", question.Stem)
	}
	if len(question.Choices) != 3 {
		t.Fatalf("len(Choices) = %d, want 3", len(question.Choices))
	}
	for i, want := range []bool{false, false, true} {
		if question.Choices[i].Correct != want {
			t.Errorf("Choices[%d].Correct = %v, want %v", i, question.Choices[i].Correct, want)
		}
	}
	if question.Choices[2].Text != "5" {
		t.Errorf("correct choice = %q, want 5", question.Choices[2].Text)
	}
}

func TestScenarioMultipleAnswers(t *testing.T) {
	q := mustParse(t, "1. Pick dinosaurs\n[ ] Mammoth\n[*] T. rex\n[*] Triceratops\n")
	question := q.Questions()[0]
	if question.Variant != quiz.MultipleAnswer {
		t.Fatalf("Variant = %v, want multiple answers", question.Variant)
	}
	if got := question.CorrectCount(); got != 2 {
		t.Errorf("CorrectCount() = %d, want 2", got)
	}
	if got := len(question.Choices) - question.CorrectCount(); got != 1 {
		t.Errorf("incorrect choices = %d, want 1", got)
	}
}

func TestScenarioNumerical(t *testing.T) {
	q := mustParse(t, "1. Root of 2?\n=   1.4142 +- 0.0001\n")
	question := q.Questions()[0]
	if question.Variant != quiz.Numerical {
		t.Fatalf("Variant = %v, want numerical", question.Variant)
	}
	n := question.Numeric
	if n.Center != 1.4142 || n.Margin != 0.0001 {
		t.Errorf("center/margin = %v/%v", n.Center, n.Margin)
	}
	if n.MinText != "1.4141" || n.MaxText != "1.4143" {
		t.Errorf("interval = [%s, %s], want [1.4141, 1.4143]", n.MinText, n.MaxText)
	}
}

func TestScenarioGroup(t *testing.T) {
	text := `Solutions sample groups: false

GROUP
pick: 1
1. First?
*a) yes
b) no
1. Second?
*a) yes
b) no
1. Third?
*a) yes
b) no
END_GROUP
`
	q := mustParse(t, text)
	groups := q.Groups()
	if len(groups) != 1 {
		t.Fatalf("len(Groups()) = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Pick != 1 || g.SolutionsPick != 0 || len(g.Questions) != 3 {
		t.Errorf("group = pick %d, solutions pick %d, %d questions", g.Pick, g.SolutionsPick, len(g.Questions))
	}
	if g.StartLn != 3 || g.EndLn != 14 {
		t.Errorf("group lines = %d-%d, want 3-14", g.StartLn, g.EndLn)
	}
	if q.PointsPossible() != 1 {
		t.Errorf("PointsPossible() = %v, want 1", q.PointsPossible())
	}
}

func TestScenarioDuplicateQuestion(t *testing.T) {
	text := "1. Same?\n*a) x\nb) y\n\n2. Same?\n*a) x\nb) y\n"
	_, err := Parse(context.Background(), text, Options{Source: `"dup.txt"`})
	var sem *qerrors.SemanticError
	if !errors.As(err, &sem) {
		t.Fatalf("error = %v, want SemanticError", err)
	}
	if len(sem.Lines) != 2 || sem.Lines[0] != 1 || sem.Lines[1] != 5 {
		t.Errorf("Lines = %v, want [1 5]", sem.Lines)
	}
	if !strings.Contains(err.Error(), `In "dup.txt" on lines 1 and 5`) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestQuizHeaders(t *testing.T) {
	text := `Quiz title: Addition
  and subtraction
Quiz description: Checks arithmetic.

    Second paragraph.
Shuffle answers: true
Show correct answers: false
One question at a time: true
Can't go back: true
Number of attempts: -1
Feedback is solution: true
Solutions randomize groups: True

Title: First
Points: 2.5
1.  What is 1+1?
*a) 2
b)  3
`
	q := mustParse(t, text)
	if q.Title != "Addition and subtraction" {
		t.Errorf("Title = %q", q.Title)
	}
	if q.Description != "Checks arithmetic.\n\nSecond paragraph." {
		t.Errorf("Description = %q", q.Description)
	}
	want := quiz.Options{
		ShuffleAnswers:           true,
		OneQuestionAtATime:       true,
		CantGoBack:               true,
		AllowedAttempts:          -1,
		FeedbackIsSolution:       true,
		SolutionsRandomizeGroups: true,
	}
	if q.Options != want {
		t.Errorf("Options = %+v, want %+v", q.Options, want)
	}
	question := q.Questions()[0]
	if question.Title != "First" || question.Points != 2.5 {
		t.Errorf("title/points = %q/%v", question.Title, question.Points)
	}
}

func TestContinuationAndIndent(t *testing.T) {
	tests := []struct {
		name string
		text string
		stem string
	}{
		{"single line", "1.  Q\n*a) x\nb) y\n", "Q"},
		{"wrapped", "1.  Line one\n    line two\n*a) x\nb) y\n", "Line one\nline two"},
		{"paragraphs", "1.  First\n\n    second\n*a) x\nb) y\n", "First\n\nsecond"},
		{"deeper indent kept", "1.  First\n      code\n*a) x\nb) y\n", "First\n  code"},
		{"tab marker", "1.\tFirst\n\tsecond\n*a) x\nb) y\n", "First\nsecond"},
		{"trailing blank lines", "1.  Q\n\n\n*a) x\nb) y\n", "Q"},
		{"trailing whitespace", "1.  Q   \n    more  \n*a) x\nb) y\n", "Q\nmore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustParse(t, tt.text)
			if got := q.Questions()[0].Stem; got != tt.stem {
				t.Errorf("Stem = %q, want %q", got, tt.stem)
			}
		})
	}
}

func TestVariants(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		variant quiz.Variant
		choices int
	}{
		{"true false", "1. Sky is blue?\n*a) True\nb) False\n", quiz.TrueFalse, 2},
		{"short answer", "1. A pet?\n*   cat\n*   dog\n", quiz.ShortAnswer, 2},
		{"essay", "1. Discuss.\n____\n", quiz.Essay, 0},
		{"upload", "1. Upload it.\n^^^^\n", quiz.FileUpload, 0},
		{"exact integer", "1. How many?\n= 1_000\n", quiz.Numerical, 0},
		{"range", "1. Between?\n= [1, 2]\n", quiz.Numerical, 0},
		{"empty brackets", "1. Pick.\n[] a\n[*] b\n", quiz.MultipleAnswer, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := mustParse(t, tt.text).Questions()[0]
			if question.Variant != tt.variant {
				t.Errorf("Variant = %v, want %v", question.Variant, tt.variant)
			}
			if len(question.Choices) != tt.choices {
				t.Errorf("len(Choices) = %d, want %d", len(question.Choices), tt.choices)
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	text := `1.  Q
... general
+   right
-   wrong
*a) x
... about x
b)  y
!   because
`
	question := mustParse(t, text).Questions()[0]
	if question.Feedback != "general" || question.CorrectFeedback != "right" || question.IncorrectFeedback != "wrong" {
		t.Errorf("feedback = %q/%q/%q", question.Feedback, question.CorrectFeedback, question.IncorrectFeedback)
	}
	if question.Choices[0].Feedback != "about x" || question.Choices[1].Feedback != "" {
		t.Errorf("choice feedback = %q/%q", question.Choices[0].Feedback, question.Choices[1].Feedback)
	}
	if question.Solution != "because" {
		t.Errorf("Solution = %q", question.Solution)
	}
	if question.EffectiveSolution(false) != "because" || question.EffectiveSolution(true) != "general" {
		t.Error("EffectiveSolution mismatch")
	}
}

func TestTextRegions(t *testing.T) {
	text := `Text title: Part 1
Text: Read carefully.

1. Q
*a) x
b) y

Text: No title here.
`
	q := mustParse(t, text)
	if len(q.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(q.Items))
	}
	first, ok := q.Items[0].(*quiz.TextRegion)
	if !ok || first.Title != "Part 1" || first.Text != "Read carefully." || first.Index != 0 {
		t.Errorf("Items[0] = %+v", q.Items[0])
	}
	last, ok := q.Items[2].(*quiz.TextRegion)
	if !ok || last.Title != "" || last.Text != "No title here." || last.Index != 2 {
		t.Errorf("Items[2] = %+v", q.Items[2])
	}
	if first.ID() == last.ID() {
		t.Error("text regions share an identifier")
	}
}

func TestComments(t *testing.T) {
	text := `% a line comment
COMMENT
1. Hidden question
*a) x
END_COMMENT
1. Visible
*a) x
b) y
`
	q := mustParse(t, text)
	qs := q.Questions()
	if len(qs) != 1 || qs[0].Stem != "Visible" || qs[0].StartLn != 6 {
		t.Errorf("questions = %+v", qs)
	}
}

func TestIdentifiers(t *testing.T) {
	text := "1. A?\n*a) same\nb) other\n2. B?\n*a) same\nb) other\n"
	q1 := mustParse(t, text)
	q2 := mustParse(t, text)
	if q1.ID() != q2.ID() {
		t.Error("quiz identifier is not stable")
	}
	qs := q1.Questions()
	if qs[0].Choices[0].ID() == qs[1].Choices[0].ID() {
		t.Error("identical choices in different questions share an identifier")
	}
	if len(qs[0].ID()) != 64 {
		t.Errorf("len(ID()) = %d, want 64", len(qs[0].ID()))
	}
}

type fakeRunner struct {
	out  string
	err  error
	lang string
	exe  string
	code string
}

func (f *fakeRunner) RunCode(_ context.Context, lang, executable, code string) (string, error) {
	f.lang, f.exe, f.code = lang, executable, code
	return f.out, f.err
}

func TestCodeBlocks(t *testing.T) {
	runner := &fakeRunner{out: "1. Generated?\n*a) yes\nb) no\n"}
	text := "Quiz title: Code\n```{.python .run}\nprint('x')\n```\n"
	q, err := Parse(context.Background(), text, Options{Code: runner})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if runner.lang != "python" || runner.code != "print('x')\n" {
		t.Errorf("runner got lang %q code %q", runner.lang, runner.code)
	}
	qs := q.Questions()
	if len(qs) != 1 || qs[0].StartLn != 2 {
		t.Fatalf("questions = %+v", qs)
	}

	t.Run("executable", func(t *testing.T) {
		r := &fakeRunner{out: "1. Q\n*a) x\nb) y\n"}
		_, err := Parse(context.Background(), "````{.bash .run executable=\"/bin/bash\"}\necho\n````\n", Options{Code: r})
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		if r.lang != "bash" || r.exe != "/bin/bash" {
			t.Errorf("lang/exe = %q/%q", r.lang, r.exe)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		_, err := Parse(context.Background(), text, Options{})
		if !errors.Is(err, ErrCodeDisabled) || !errors.Is(err, qerrors.ErrCollaborator) {
			t.Fatalf("error = %v, want code disabled", err)
		}
		if qerrors.Line(err) != 2 {
			t.Errorf("Line = %d, want 2", qerrors.Line(err))
		}
	})

	t.Run("runner failure", func(t *testing.T) {
		boom := errors.New("exit status 1")
		_, err := Parse(context.Background(), text, Options{Code: &fakeRunner{err: boom}})
		if !errors.Is(err, boom) {
			t.Fatalf("error = %v, want %v", err, boom)
		}
	})
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		sentinel error
		line     int
		contains string
	}{
		{"no questions", "Quiz title: Empty\n", qerrors.ErrSemantic, 0, "No questions were found"},
		{"body text", "1. Q\n*a) x\nb) y\nstray text\n", qerrors.ErrSyntax, 4, "Syntax error"},
		{"missing whitespace", "1.Q\n", qerrors.ErrSyntax, 1, `Missing whitespace after "1."`},
		{"missing content", "1. Q\na)\n", qerrors.ErrSyntax, 2, `Missing content after "a)"`},
		{"header indent", "Quiz description: x\n y\n1. Q\n*a) x\nb) y\n", qerrors.ErrSyntax, 2, "Indentation must be at least 2 spaces"},
		{"title paragraphs", "Quiz title: A\n\n  B\n1. Q\n*a) x\nb) y\n", qerrors.ErrSyntax, 3, "single paragraph"},
		{"variant mixing", "1. Q\n= 5\na) x\n", qerrors.ErrSemantic, 1, `does not support multiple choice`},
		{"choices then short answer", "1. Q\n*a) x\nb) y\n* z\n", qerrors.ErrSemantic, 1, "not compatible with existing choices"},
		{"two numeric", "1. Q\n= 5\n= 6\n", qerrors.ErrSemantic, 1, "multiple times"},
		{"no correct", "1. Q\na) x\nb) y\n", qerrors.ErrSemantic, 1, "must specify a correct choice"},
		{"numeric syntax", "1. Q\n= forty\n", qerrors.ErrSyntax, 2, "Invalid numerical response"},
		{"numeric magnitude", "1. Q\n= 0\n", qerrors.ErrSemantic, 2, "magnitude"},
		{"bad points", "Points: 1.25\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 1, "Invalid points value"},
		{"unused attrs", "Title: Lonely\n", qerrors.ErrSemantic, 1, "set but not used"},
		{"attrs before text", "Title: T\nText: x\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 1, "set but not used"},
		{"points before title", "Points: 2\nTitle: T\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 2, "before point value"},
		{"option after question", "1. Q\n*a) x\nb) y\nShuffle answers: true\n", qerrors.ErrSemantic, 4, "before questions"},
		{"title after option", "Shuffle answers: true\nQuiz title: T\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 2, "before quiz options"},
		{"option twice", "Shuffle answers: true\nShuffle answers: false\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 2, "already been set"},
		{"option value", "Shuffle answers: yes\n1. Q\n*a) x\nb) y\n", qerrors.ErrSyntax, 1, `"true" or "false"`},
		{"cant go back", "Can't go back: true\n1. Q\n*a) x\nb) y\n", qerrors.ErrSemantic, 1, "One question at a time"},
		{"attempts", "Number of attempts: 0\n1. Q\n*a) x\nb) y\n", qerrors.ErrSyntax, 1, "number of attempts"},
		{"feedback without question", "... hi\n", qerrors.ErrSemantic, 1, "without a question"},
		{"feedback after essay", "1. Q\n___\n... late\n", qerrors.ErrSemantic, 3, "immediately follow the question"},
		{"correct feedback after choices", "1. Q\n*a) x\nb) y\n+ good\n", qerrors.ErrSemantic, 4, "Correct feedback"},
		{"essay with outcome feedback", "1. Q\n+ good\n___\n", qerrors.ErrSemantic, 3, "correct/incorrect feedback"},
		{"numerical after correct feedback", "1. Q\n+ good\n= 5\n", qerrors.ErrSemantic, 3, "correct/incorrect feedback"},
		{"numerical after incorrect feedback", "1. Q\n- bad\n= [1, 2]\n", qerrors.ErrSemantic, 3, "correct/incorrect feedback"},
		{"correct feedback after numerical", "1. Q\n= 5\n+ good\n", qerrors.ErrSemantic, 3, "Correct feedback"},
		{"short answer feedback", "1. Q\n* cat\n... meow\n", qerrors.ErrSemantic, 3, "per-answer feedback"},
		{"solution with feedback mode", "Feedback is solution: true\n1. Q\n*a) x\nb) y\n! s\n", qerrors.ErrSemantic, 5, "Feedback is solution"},
		{"duplicate choice", "1. Q\n*a) x\nb) x\n", qerrors.ErrSemantic, 2, "Duplicate choice"},
		{"group never ended", "GROUP\n1. Q\n*a) x\nb) y\n", qerrors.ErrSyntax, 4, "never ended"},
		{"nested group", "GROUP\nGROUP\n", qerrors.ErrSemantic, 1, "cannot be nested"},
		{"end without group", "END_GROUP\n", qerrors.ErrSemantic, 1, "No question group to end"},
		{"pick too large", "GROUP\npick: 3\n1. A\n*a) x\nb) y\n1. B\n*a) x\nb) y\nEND_GROUP\n", qerrors.ErrSemantic, 1, "but pick is 3"},
		{"solutions pick too large", "GROUP\nSolutions pick: 3\n1. A\n*a) x\nb) y\n1. B\n*a) x\nb) y\nEND_GROUP\n", qerrors.ErrSemantic, 1, "solutions pick is 3"},
		{"late group option", "GROUP\n1. A\n*a) x\nb) y\npick: 1\nEND_GROUP\n", qerrors.ErrSemantic, 5, "very start of the group"},
		{"group option outside", "pick: 1\n", qerrors.ErrSemantic, 1, "No question group"},
		{"group points", "GROUP\n1. A\n*a) x\nb) y\nPoints: 2\n1. B\n*a) x\nb) y\nEND_GROUP\n", qerrors.ErrSemantic, 2, "same point value"},
		{"text in group", "GROUP\nText: hi\nEND_GROUP\n", qerrors.ErrSemantic, 2, "inside a question group"},
		{"comment not closed", "COMMENT\n1. Q\n", qerrors.ErrSyntax, 2, "without following"},
		{"comment end alone", "END_COMMENT\n", qerrors.ErrSyntax, 1, "without preceding"},
		{"comment trailing text", "COMMENT here\nEND_COMMENT\n", qerrors.ErrSyntax, 1, `after "COMMENT"`},
		{"invalid fence", "```python\nx = 1\n```\n", qerrors.ErrSyntax, 1, "Invalid code block start"},
		{"stray fence", "```\n", qerrors.ErrSyntax, 1, "missing code block start"},
		{"unclosed fence", "```{.python .run}\nprint(1)\n", qerrors.ErrSyntax, 2, "closing fence is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), tt.text, Options{Code: &fakeRunner{}})
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
			if got := qerrors.Line(err); got != tt.line {
				t.Errorf("Line = %d, want %d (%v)", got, tt.line, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func FuzzParse(f *testing.F) {
	f.Add("1.  What is 2+3?\na)  6\nb)  1\n*c) 5\n")
	f.Add("GROUP\npick: 1\n1. A\n*a) x\nb) y\n1. B\n*a) x\nb) y\nEND_GROUP\n")
	f.Add("Quiz title: T\n\tcontinued\n1. Root?\n= [1, 2]\n")
	f.Add("COMMENT\n%\nEND_COMMENT\n1. Q\n____\n")
	f.Fuzz(func(t *testing.T, text string) {
		q, err := Parse(context.Background(), text, Options{})
		if err == nil && len(q.Questions()) == 0 {
			t.Fatal("successful parse without questions")
		}
	})
}
