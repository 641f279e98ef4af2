package qti

import "github.com/FocuswithJustin/quizqti/core/quiz"

// IDPrefix starts every identifier written to a package.
const IDPrefix = "quizqti"

// Identifiers are the package-level identifiers of one quiz. All of them
// derive from the quiz digest, so archive paths never depend on input
// file names.
type Identifiers struct {
	Manifest        string
	Assessment      string
	Dependency      string
	Assignment      string
	AssignmentGroup string
}

// NewIdentifiers derives the identifiers for q.
func NewIdentifiers(q *quiz.Quiz) Identifiers {
	id := q.ID()
	return Identifiers{
		Manifest:        IDPrefix + "_manifest_" + id,
		Assessment:      IDPrefix + "_assessment_" + id,
		Dependency:      IDPrefix + "_dependency_" + id,
		Assignment:      IDPrefix + "_assignment_" + id,
		AssignmentGroup: IDPrefix + "_assignment-group_" + id,
	}
}

func questionIdent(q *quiz.Question) string { return IDPrefix + "_question_" + q.ID() }
func questionRef(q *quiz.Question) string { return IDPrefix + "_question_ref_" + q.ID() }
func choiceIdent(c *quiz.Choice) string { return IDPrefix + "_choice_" + c.ID() }
func groupIdent(g *quiz.Group) string { return IDPrefix + "_group_" + g.ID() }
func textIdent(t *quiz.TextRegion) string { return IDPrefix + "_text_" + t.ID() }
func textRef(t *quiz.TextRegion) string { return IDPrefix + "_text_ref_" + t.ID() }
func imageIdent(hash string) string { return IDPrefix + "_image_" + hash }
