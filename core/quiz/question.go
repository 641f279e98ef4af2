package quiz

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/quizqti/core/cas"
)

// Variant tags the answer payload of a Question. A question starts as
// VariantPending and is fixed by the first variant-determining block.
type Variant int

const (
	VariantPending Variant = iota
	MultipleChoice
	TrueFalse
	MultipleAnswer
	Numerical
	ShortAnswer
	Essay
	FileUpload
)

var variantNames = map[Variant]string{
	VariantPending: "pending",
	MultipleChoice: "multiple choice",
	TrueFalse:      "true/false",
	MultipleAnswer: "multiple answers",
	Numerical:      "numerical",
	ShortAnswer:    "short answer",
	Essay:          "essay",
	FileUpload:     "file upload",
}

func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// QTIType returns the Canvas question_type metadata value.
func (v Variant) QTIType() string {
	switch v {
	case MultipleChoice:
		return "multiple_choice_question"
	case TrueFalse:
		return "true_false_question"
	case MultipleAnswer:
		return "multiple_answers_question"
	case Numerical:
		return "numerical_question"
	case ShortAnswer:
		return "short_answer_question"
	case Essay:
		return "essay_question"
	case FileUpload:
		return "file_upload_question"
	}
	return ""
}

// HasChoices reports whether the variant carries a choice list.
func (v Variant) HasChoices() bool {
	return v == MultipleChoice || v == TrueFalse || v == MultipleAnswer
}

// Question is one gradable item.
type Question struct {
	Digest  cas.Digest
	StartLn int

	Title  string // plain text, "" when unset
	Points float64

	Stem     string // raw Markdown
	StemHTML string

	Feedback              string
	FeedbackHTML          string
	CorrectFeedback       string
	CorrectFeedbackHTML   string
	IncorrectFeedback     string
	IncorrectFeedbackHTML string
	Solution              string
	SolutionHTML          string

	Variant Variant
	// Choices holds the choice list for choice variants and the accepted
	// answers for ShortAnswer, in source order.
	Choices []*Choice
	Numeric *NumericAnswer
}

// ID returns the hex identifier of the question.
func (q *Question) ID() string { return q.Digest.Hex() }

// Line implements Item.
func (q *Question) Line() int { return q.StartLn }
func (q *Question) item()     {}

// PointsText formats the point value the way it appears in metadata: "1",
// "2.5".
func (q *Question) PointsText() string {
	return strconv.FormatFloat(q.Points, 'f', -1, 64)
}

// CorrectCount returns how many choices are marked correct.
func (q *Question) CorrectCount() int {
	n := 0
	for _, c := range q.Choices {
		if c.Correct {
			n++
		}
	}
	return n
}

// EffectiveSolution is the rich text shown as the solution: the explicit
// solution, or the general feedback when feedback doubles as solution.
func (q *Question) EffectiveSolution(feedbackIsSolution bool) string {
	if feedbackIsSolution {
		return q.Feedback
	}
	return q.Solution
}

// Finalize fixes a pending variant and checks the per-variant invariants.
// The returned error message is suitable for a diagnostic.
func (q *Question) Finalize() error {
	switch q.Variant {
	case VariantPending:
		if len(q.Choices) == 0 {
			return fmt.Errorf("Question must provide choices")
		}
		if len(q.Choices) < 2 {
			return fmt.Errorf("Question must provide more than one choice")
		}
		q.Variant = MultipleChoice
		if len(q.Choices) == 2 && isBoolText(q.Choices[0].Text) && isBoolText(q.Choices[1].Text) {
			q.Variant = TrueFalse
		}
		switch n := q.CorrectCount(); {
		case n < 1:
			return fmt.Errorf("Question must specify a correct choice")
		case n > 1:
			return fmt.Errorf("Question must specify only one correct choice")
		}
	case MultipleAnswer:
		if len(q.Choices) < 2 {
			return fmt.Errorf("Question must provide more than one choice")
		}
		if q.CorrectCount() < 1 {
			return fmt.Errorf("Question must specify a correct choice")
		}
	case ShortAnswer:
		if len(q.Choices) == 0 {
			return fmt.Errorf("Question must provide at least one answer")
		}
	case Numerical:
		if q.Numeric == nil {
			return fmt.Errorf("Question must provide a numerical answer")
		}
	}
	return nil
}

func isBoolText(s string) bool {
	switch s {
	case "true", "True", "false", "False":
		return true
	}
	return false
}

// Choice is one answer option, or one accepted short answer.
type Choice struct {
	Digest  cas.Digest
	Line    int
	Text    string // raw Markdown, or plain text for short answers
	HTML    string
	Correct bool

	Feedback     string
	FeedbackHTML string
}

// ID returns the hex identifier of the choice.
func (c *Choice) ID() string { return c.Digest.Hex() }

// ParsePoints parses a point value: a positive integer or half-integer.
func ParsePoints(text string) (float64, error) {
	bad := fmt.Errorf("Invalid points value %q; need positive integer or half-integer", text)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 {
		return 0, bad
	}
	if v != float64(int64(v)) && v*2 != float64(int64(v*2)) {
		return 0, bad
	}
	return v, nil
}
