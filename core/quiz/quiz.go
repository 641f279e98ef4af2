// Package quiz defines the in-memory quiz model shared by the text parser,
// the group resolver, the QTI serializer and the solutions exporter.
//
// A Quiz is built once per source document by package quiztext and is not
// mutated after group resolution.
package quiz

import (
	"github.com/FocuswithJustin/quizqti/core/cas"
)

// DefaultTitle is used when a document does not set "Quiz title:".
const DefaultTitle = "Quiz"

// Quiz is a compiled quiz document.
type Quiz struct {
	Source string // display name used in diagnostics

	// Title is plain text and never empty once built. TitleSet reports
	// whether the document supplied it.
	Title    string
	TitleSet bool

	Description     string // raw Markdown
	DescriptionHTML string

	Options Options
	Items   []Item

	// Images holds files referenced from rich text that must be bundled
	// into the archive.
	Images *cas.Store

	Digest cas.Digest
}

// Options are the quiz-level display and solutions settings.
type Options struct {
	ShuffleAnswers     bool
	ShowCorrectAnswers bool
	OneQuestionAtATime bool
	CantGoBack         bool
	// AllowedAttempts is the number of submissions, -1 for unlimited.
	AllowedAttempts int

	FeedbackIsSolution       bool
	SolutionsSampleGroups    bool
	SolutionsRandomizeGroups bool
}

// DefaultOptions returns the options used when a document sets none.
func DefaultOptions() Options {
	return Options{AllowedAttempts: 1}
}

// ID returns the hex identifier of the quiz.
func (q *Quiz) ID() string {
	return q.Digest.Hex()
}

// Questions returns every question in document order, including group
// members.
func (q *Quiz) Questions() []*Question {
	var out []*Question
	for _, it := range q.Items {
		switch v := it.(type) {
		case *Question:
			out = append(out, v)
		case *Group:
			out = append(out, v.Questions...)
		}
	}
	return out
}

// Groups returns the question groups in document order.
func (q *Quiz) Groups() []*Group {
	var out []*Group
	for _, it := range q.Items {
		if g, ok := it.(*Group); ok {
			out = append(out, g)
		}
	}
	return out
}

// PointsPossible is the score a student can reach: the sum of standalone
// question points plus pick × points-per-question for every group.
func (q *Quiz) PointsPossible() float64 {
	var total float64
	for _, it := range q.Items {
		switch v := it.(type) {
		case *Question:
			total += v.Points
		case *Group:
			total += float64(v.Pick * v.PointsPerQuestion)
		}
	}
	return total
}

// Item is one top-level element of a quiz: *Question, *Group or
// *TextRegion.
type Item interface {
	// Line is the 1-based source line the item starts on.
	Line() int
	item()
}

// TextRegion is instructional text placed between questions.
type TextRegion struct {
	Index    int // position among top-level items
	Title    string
	Text     string
	TextHTML string
	Digest   cas.Digest
	StartLn  int
}

// Line implements Item.
func (t *TextRegion) Line() int { return t.StartLn }
func (t *TextRegion) item()     {}

// ID returns the hex identifier of the region.
func (t *TextRegion) ID() string { return t.Digest.Hex() }

// Group is a pool of interchangeable questions from which Pick are drawn at
// delivery time.
type Group struct {
	Questions         []*Question
	Pick              int
	PointsPerQuestion int
	// SolutionsPick overrides how many members appear in a solutions
	// export; 0 means unset.
	SolutionsPick int

	Digest  cas.Digest
	StartLn int
	EndLn   int
}

// Line implements Item.
func (g *Group) Line() int { return g.StartLn }
func (g *Group) item()     {}

// ID returns the hex identifier of the group.
func (g *Group) ID() string { return g.Digest.Hex() }

// NewGroup returns a group with default options.
func NewGroup(line int) *Group {
	return &Group{Pick: 1, PointsPerQuestion: 1, StartLn: line}
}
