package quiztext

import (
	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/quiz"
)

// checkDuplicates rejects byte-identical rendered questions anywhere in the
// quiz, and byte-identical choices within one question. It runs after the
// model is complete so that text produced by code blocks is covered too.
func checkDuplicates(source string, q *quiz.Quiz) error {
	seen := make(map[string]*quiz.Question)
	for _, question := range q.Questions() {
		if prev, ok := seen[question.StemHTML]; ok {
			return qerrors.NewSemantic(source, "Duplicate question", prev.StartLn, question.StartLn)
		}
		seen[question.StemHTML] = question

		choices := make(map[string]*quiz.Choice, len(question.Choices))
		for _, c := range question.Choices {
			if prev, ok := choices[c.HTML]; ok {
				return qerrors.NewSemantic(source, "Duplicate choice for question", prev.Line, c.Line)
			}
			choices[c.HTML] = c
		}
	}
	return nil
}
