// Package resolve is the Group Resolver. It fixes, for a built quiz, which
// questions appear in the delivered assessment and which appear in a
// solutions export.
//
// Delivery never draws: the consuming LMS selects Pick questions per group
// when a student takes the quiz, so the delivery view only carries the
// group parameters. The solutions view may sample and shuffle groups; that
// draw uses one seeded generator per document, consumed in document order.
package resolve

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/FocuswithJustin/quizqti/core/quiz"
)

// Entry is one top-level element of the solutions view.
type Entry struct {
	Item quiz.Item

	// Set for groups only.
	Group *quiz.Group
	// Questions are the group members shown, in display order.
	Questions []*quiz.Question
	// Displayed is len(Questions).
	Displayed int
	// Unordered is set when the shown members are examples rather than the
	// exact draw: Displayed differs from Pick.
	Unordered bool
}

// Plan is the finalized ordering of a quiz.
type Plan struct {
	Quiz *quiz.Quiz
	Seed uint64

	// Delivery lists the top-level items exactly as written.
	Delivery []quiz.Item
	// Solutions lists the solutions view, one entry per top-level item.
	Solutions []Entry
}

// DefaultSeed derives the canonical seed of a document from its digest, so
// a document always resolves the same way unless a seed is given.
func DefaultSeed(q *quiz.Quiz) uint64 {
	return binary.BigEndian.Uint64(q.Digest[:8])
}

// SolutionsCount returns how many members of g a solutions export shows:
// the group's solutions pick when set, its pick when groups are sampled,
// and every member otherwise.
func SolutionsCount(opts quiz.Options, g *quiz.Group) int {
	switch {
	case g.SolutionsPick > 0:
		return g.SolutionsPick
	case opts.SolutionsSampleGroups:
		return g.Pick
	}
	return len(g.Questions)
}

// Resolve builds the plan for q. A nil seed selects DefaultSeed.
func Resolve(q *quiz.Quiz, seed *uint64) *Plan {
	p := &Plan{Quiz: q, Delivery: q.Items, Seed: DefaultSeed(q)}
	if seed != nil {
		p.Seed = *seed
	}

	var rng *rand.Rand
	if q.Options.SolutionsRandomizeGroups {
		rng = rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	}

	for _, it := range q.Items {
		g, ok := it.(*quiz.Group)
		if !ok {
			p.Solutions = append(p.Solutions, Entry{Item: it})
			continue
		}
		n := SolutionsCount(q.Options, g)
		e := Entry{Item: g, Group: g, Displayed: n, Unordered: n != g.Pick}
		if rng != nil {
			for _, i := range rng.Perm(len(g.Questions))[:n] {
				e.Questions = append(e.Questions, g.Questions[i])
			}
		} else {
			e.Questions = append(e.Questions, g.Questions[:n]...)
		}
		p.Solutions = append(p.Solutions, e)
	}
	return p
}
