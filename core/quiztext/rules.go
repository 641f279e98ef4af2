package quiztext

import (
	"regexp"
	"strings"
)

// Role is the structural role of a classified line, and of the block it
// starts.
type Role int

const (
	RoleBody Role = iota
	RoleBlank
	RoleGroupStart
	RoleGroupEnd
	RoleQuestion
	RoleChoiceCorrect
	RoleChoice
	RoleMultiCorrect
	RoleMultiIncorrect
	RoleNumeric
	RoleShortAnswer
	RoleEssay
	RoleUpload
	RoleFeedback
	RoleCorrectFeedback
	RoleIncorrectFeedback
	RoleSolution
	RoleQuestionTitle
	RoleQuestionPoints
	RoleTextTitle
	RoleText
	RoleQuizTitle
	RoleQuizDescription
	RolePick
	RoleSolutionsPick
	RolePointsPerQuestion
	RoleShuffleAnswers
	RoleShowCorrectAnswers
	RoleOneQuestionAtATime
	RoleCantGoBack
	RoleAllowedAttempts
	RoleFeedbackIsSolution
	RoleSolutionsSampleGroups
	RoleSolutionsRandomizeGroups
	RoleCodeStart
	RoleCodeEnd
	RoleLineComment
	RoleCommentStart
	RoleCommentEnd
)

// content describes what may follow a marker and how the block continues.
type content int

const (
	// contentNone: the marker is the whole line.
	contentNone content = iota
	// contentLine: text on the marker line only, no continuation lines.
	contentLine
	// contentParagraph: continuation lines allowed, a blank line ends the
	// block.
	contentParagraph
	// contentMultiPara: continuation lines and blank-line separated
	// paragraphs allowed.
	contentMultiPara
)

// rule is one row of the classification table. Rules are tried in table
// order and the first match wins.
type rule struct {
	role    Role
	name    string
	marker  string // regexp matched at the start of the line
	content content

	re *regexp.Regexp
}

// header reports whether the marker is a "Key:" header. Header blocks take
// their continuation indent from their first continuation line.
func (r *rule) header() bool {
	return strings.HasSuffix(r.marker, ":")
}

// ruleTable is the ordered marker table. New markers are added here; the
// model builder dispatches on Role.
var ruleTable = []*rule{
	{role: RoleGroupStart, name: "GROUP", marker: `GROUP`, content: contentNone},
	{role: RoleGroupEnd, name: "END_GROUP", marker: `END_GROUP`, content: contentNone},
	{role: RoleQuestion, name: "question", marker: `\d+\.`, content: contentMultiPara},
	{role: RoleChoiceCorrect, name: "correct choice", marker: `\*[a-zA-Z]\)`, content: contentMultiPara},
	{role: RoleChoice, name: "choice", marker: `[a-zA-Z]\)`, content: contentMultiPara},
	{role: RoleMultiCorrect, name: "correct answer", marker: `\[\*\]`, content: contentMultiPara},
	{role: RoleMultiIncorrect, name: "answer", marker: `\[ ?\]`, content: contentMultiPara},
	{role: RoleNumeric, name: "numerical answer", marker: `=`, content: contentLine},
	{role: RoleShortAnswer, name: "short answer", marker: `\*`, content: contentLine},
	{role: RoleEssay, name: "essay response", marker: `___+`, content: contentNone},
	{role: RoleUpload, name: "upload response", marker: `\^\^\^+`, content: contentNone},
	{role: RoleFeedback, name: "feedback", marker: `\.\.\.`, content: contentMultiPara},
	{role: RoleCorrectFeedback, name: "correct feedback", marker: `\+`, content: contentMultiPara},
	{role: RoleIncorrectFeedback, name: "incorrect feedback", marker: `\-`, content: contentMultiPara},
	{role: RoleSolution, name: "solution", marker: `!`, content: contentMultiPara},
	{role: RoleQuestionTitle, name: "question title", marker: `[Tt]itle:`, content: contentParagraph},
	{role: RoleQuestionPoints, name: "question points", marker: `[Pp]oints:`, content: contentLine},
	{role: RoleTextTitle, name: "text title", marker: `[Tt]ext [Tt]itle:`, content: contentParagraph},
	{role: RoleText, name: "text", marker: `[Tt]ext:`, content: contentMultiPara},
	{role: RoleQuizTitle, name: "quiz title", marker: `[Qq]uiz [Tt]itle:`, content: contentParagraph},
	{role: RoleQuizDescription, name: "quiz description", marker: `[Qq]uiz [Dd]escription:`, content: contentMultiPara},
	{role: RolePick, name: "pick", marker: `[Pp]ick:`, content: contentLine},
	{role: RoleSolutionsPick, name: "solutions pick", marker: `[Ss]olutions [Pp]ick:`, content: contentLine},
	{role: RolePointsPerQuestion, name: "points per question", marker: `[Pp]oints [Pp]er [Qq]uestion:`, content: contentLine},
	{role: RoleShuffleAnswers, name: "shuffle answers", marker: `[Ss]huffle [Aa]nswers:`, content: contentLine},
	{role: RoleShowCorrectAnswers, name: "show correct answers", marker: `[Ss]how [Cc]orrect [Aa]nswers:`, content: contentLine},
	{role: RoleOneQuestionAtATime, name: "one question at a time", marker: `[Oo]ne [Qq]uestion [Aa]t [Aa] [Tt]ime:`, content: contentLine},
	{role: RoleCantGoBack, name: "can't go back", marker: `[Cc]an't [Gg]o [Bb]ack:`, content: contentLine},
	{role: RoleAllowedAttempts, name: "number of attempts", marker: `[Nn]umber [Oo]f [Aa]ttempts:`, content: contentLine},
	{role: RoleFeedbackIsSolution, name: "feedback is solution", marker: `[Ff]eedback [Ii]s [Ss]olution:`, content: contentLine},
	{role: RoleSolutionsSampleGroups, name: "solutions sample groups", marker: `[Ss]olutions [Ss]ample [Gg]roups:`, content: contentLine},
	{role: RoleSolutionsRandomizeGroups, name: "solutions randomize groups", marker: `[Ss]olutions [Rr]andomize [Gg]roups:`, content: contentLine},
	{role: RoleCodeStart, name: "code block start", marker: "```+[ \\t]*[^`\\s].*", content: contentNone},
	{role: RoleCodeEnd, name: "code block end", marker: "```+", content: contentNone},
}

// Comments are recognized only when no content rule matched.
const (
	lineCommentPrefix  = "%"
	commentStartMarker = "COMMENT"
	commentEndMarker   = "END_COMMENT"
)

var (
	roleNames        = map[Role]string{RoleBody: "text", RoleBlank: "blank line", RoleLineComment: "comment", RoleCommentStart: "COMMENT", RoleCommentEnd: "END_COMMENT"}
	missingSpaceRe   *regexp.Regexp
	missingContentRe *regexp.Regexp
)

func init() {
	var space, empty []string
	for _, r := range ruleTable {
		roleNames[r.role] = r.name
		if r.content == contentNone {
			r.re = regexp.MustCompile(`^(?:` + r.marker + `)[ \t]*$`)
			continue
		}
		r.re = regexp.MustCompile(`^(?:` + r.marker + `)[ \t]+\S`)
		space = append(space, `(?:`+r.marker+`)\S`)
		empty = append(empty, `(?:`+r.marker+`)[ \t]*$`)
	}
	missingSpaceRe = regexp.MustCompile(`^(?:` + strings.Join(space, "|") + `)`)
	missingContentRe = regexp.MustCompile(`^(?:` + strings.Join(empty, "|") + `)`)
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "unknown"
}

// ruleFor returns the table row for a role, or nil.
func ruleFor(role Role) *rule {
	for _, r := range ruleTable {
		if r.role == role {
			return r
		}
	}
	return nil
}
