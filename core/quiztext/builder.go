package quiztext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/quizqti/core/cas"
	"github.com/FocuswithJustin/quizqti/core/encoding"
	qerrors "github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/core/quiz"
)

const errUnusedAttrs = "Expected question; question title and/or points were set but not used"

// builder is the Quiz Model Builder. All parse state lives here and is
// threaded through each handler; nothing is package-level.
type builder struct {
	source string
	render Renderer
	quiz   *quiz.Quiz

	// question is the open question, nil when the last top-level element
	// is not a question.
	question *quiz.Question
	// sawSolution reports that the open question has a "!" block.
	sawSolution bool
	// text is the open text region.
	text  *quiz.TextRegion
	group *quiz.Group

	groupSet map[Role]bool

	// Pending Title:/Points: for the next question.
	pendingTitle  *Block
	pendingPoints *Block
	points        float64

	descSet    bool
	optionsSet map[Role]bool
}

func newBuilder(source string, r Renderer) *builder {
	return &builder{
		source: source,
		render: r,
		quiz: &quiz.Quiz{
			Source:  source,
			Title:   quiz.DefaultTitle,
			Options: quiz.DefaultOptions(),
			Images:  cas.NewStore(),
		},
		optionsSet: make(map[Role]bool),
	}
}

func (b *builder) syntax(blk *Block, msg, expected string) error {
	return &qerrors.SyntaxError{Source: b.source, Line: blk.Line, Expected: expected, Message: msg}
}

func (b *builder) semantic(msg string, lines ...int) error {
	return qerrors.NewSemantic(b.source, msg, lines...)
}

// rich renders the text of a block.
func (b *builder) rich(blk *Block, text string) (string, error) {
	out, err := b.render.Render(text)
	if err != nil {
		return "", qerrors.NewCollaborator(b.source, blk.Line, "markdown renderer", err)
	}
	return out, nil
}

// started reports whether any quiz content has been seen. Quiz headers and
// options are locked once it is true.
func (b *builder) started() bool {
	return len(b.quiz.Items) > 0 || b.group != nil || b.question != nil
}

func (b *builder) pendingLine() int {
	if b.pendingTitle != nil {
		return b.pendingTitle.Line
	}
	if b.pendingPoints != nil {
		return b.pendingPoints.Line
	}
	return 0
}

// add dispatches one block.
func (b *builder) add(blk *Block) error {
	if blk.Role != RoleQuestion && blk.Role != RoleQuestionPoints && blk.Role != RoleQuestionTitle {
		if l := b.pendingLine(); l != 0 {
			return b.semantic(errUnusedAttrs, l)
		}
	}

	switch blk.Role {
	case RoleQuizTitle:
		return b.quizTitle(blk)
	case RoleQuizDescription:
		return b.quizDescription(blk)
	case RoleShuffleAnswers, RoleShowCorrectAnswers, RoleOneQuestionAtATime, RoleCantGoBack,
		RoleAllowedAttempts, RoleFeedbackIsSolution, RoleSolutionsSampleGroups, RoleSolutionsRandomizeGroups:
		return b.option(blk)

	case RoleQuestionTitle:
		return b.questionTitle(blk)
	case RoleQuestionPoints:
		return b.questionPoints(blk)
	case RoleQuestion:
		return b.startQuestion(blk)

	case RoleChoiceCorrect, RoleChoice:
		return b.choice(blk, quiz.VariantPending, blk.Role == RoleChoiceCorrect)
	case RoleMultiCorrect, RoleMultiIncorrect:
		return b.choice(blk, quiz.MultipleAnswer, blk.Role == RoleMultiCorrect)
	case RoleShortAnswer:
		return b.shortAnswer(blk)
	case RoleNumeric:
		return b.numeric(blk)
	case RoleEssay:
		return b.sentinel(blk, quiz.Essay, "essay response")
	case RoleUpload:
		return b.sentinel(blk, quiz.FileUpload, "upload response")

	case RoleFeedback:
		return b.feedback(blk)
	case RoleCorrectFeedback, RoleIncorrectFeedback:
		return b.outcomeFeedback(blk)
	case RoleSolution:
		return b.solution(blk)

	case RoleTextTitle:
		return b.textTitle(blk)
	case RoleText:
		return b.textBody(blk)

	case RoleGroupStart:
		return b.startGroup(blk)
	case RoleGroupEnd:
		return b.endGroup(blk)
	case RolePick, RoleSolutionsPick, RolePointsPerQuestion:
		return b.groupOption(blk)
	}
	return b.syntax(blk, fmt.Sprintf("Unexpected %s", blk.Role), "")
}

func (b *builder) quizTitle(blk *Block) error {
	switch {
	case len(b.optionsSet) > 0:
		return b.semantic("Must give quiz title before quiz options", blk.Line)
	case b.quiz.TitleSet:
		return b.semantic("Quiz title has already been given", blk.Line)
	case b.started():
		return b.semantic("Must give quiz title before questions", blk.Line)
	case b.descSet:
		return b.semantic("Must give quiz title before quiz description", blk.Line)
	}
	b.quiz.Title = plainText(blk.Text)
	b.quiz.TitleSet = true
	return nil
}

func (b *builder) quizDescription(blk *Block) error {
	switch {
	case len(b.optionsSet) > 0:
		return b.semantic("Must give quiz description before quiz options", blk.Line)
	case b.descSet:
		return b.semantic("Quiz description has already been given", blk.Line)
	case b.started():
		return b.semantic("Must give quiz description before questions", blk.Line)
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	b.quiz.Description, b.quiz.DescriptionHTML = blk.Text, h
	b.descSet = true
	return nil
}

func (b *builder) option(blk *Block) error {
	name := ruleFor(blk.Role).name
	switch {
	case b.started():
		return b.semantic("Must give quiz options before questions", blk.Line)
	case b.optionsSet[blk.Role]:
		return b.semantic(fmt.Sprintf("Quiz option %q has already been set", optionLabel(name)), blk.Line)
	}
	b.optionsSet[blk.Role] = true

	o := &b.quiz.Options
	if blk.Role == RoleAllowedAttempts {
		n, err := strconv.Atoi(blk.Text)
		if err != nil || n == 0 || n < -1 {
			return b.syntax(blk, fmt.Sprintf("Invalid number of attempts %q", blk.Text), "a positive integer, or -1 for unlimited")
		}
		o.AllowedAttempts = n
		return nil
	}

	var v bool
	switch blk.Text {
	case "true", "True":
		v = true
	case "false", "False":
	default:
		return b.syntax(blk, `Expected option value "true" or "false"`, `"true" or "false"`)
	}
	switch blk.Role {
	case RoleShuffleAnswers:
		o.ShuffleAnswers = v
	case RoleShowCorrectAnswers:
		o.ShowCorrectAnswers = v
	case RoleOneQuestionAtATime:
		o.OneQuestionAtATime = v
	case RoleCantGoBack:
		if v && !o.OneQuestionAtATime {
			return b.semantic(`Must set "One question at a time" to "true" before setting "Can't go back"`, blk.Line)
		}
		o.CantGoBack = v
	case RoleFeedbackIsSolution:
		o.FeedbackIsSolution = v
	case RoleSolutionsSampleGroups:
		o.SolutionsSampleGroups = v
	case RoleSolutionsRandomizeGroups:
		o.SolutionsRandomizeGroups = v
	}
	return nil
}

func (b *builder) questionTitle(blk *Block) error {
	switch {
	case b.pendingTitle != nil:
		return b.semantic("Title for next question has already been set", b.pendingTitle.Line, blk.Line)
	case b.pendingPoints != nil:
		return b.semantic("Title for next question must be set before point value", blk.Line)
	}
	b.pendingTitle = blk
	return nil
}

func (b *builder) questionPoints(blk *Block) error {
	if b.pendingPoints != nil {
		return b.semantic("Points for next question has already been set", b.pendingPoints.Line, blk.Line)
	}
	pts, err := quiz.ParsePoints(blk.Text)
	if err != nil {
		return b.semantic(err.Error(), blk.Line)
	}
	b.pendingPoints, b.points = blk, pts
	return nil
}

// closeItem completes the open question or text region.
func (b *builder) closeItem() error {
	b.text = nil
	q := b.question
	if q == nil {
		return nil
	}
	b.question = nil
	if err := q.Finalize(); err != nil {
		return b.semantic(err.Error(), q.StartLn)
	}
	if b.group != nil {
		if len(b.group.Questions) > 0 {
			if first := b.group.Questions[0]; first.Points != q.Points {
				return b.semantic("Question groups must only contain questions with the same point value",
					first.StartLn, q.StartLn)
			}
		}
		b.group.Questions = append(b.group.Questions, q)
		return nil
	}
	b.quiz.Items = append(b.quiz.Items, q)
	return nil
}

func (b *builder) startQuestion(blk *Block) error {
	if err := b.closeItem(); err != nil {
		return err
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	q := &quiz.Question{
		StartLn:  blk.Line,
		Points:   1,
		Stem:     blk.Text,
		StemHTML: h,
		Digest:   cas.SumString(h),
	}
	if b.pendingTitle != nil {
		q.Title = plainText(b.pendingTitle.Text)
	}
	if b.pendingPoints != nil {
		q.Points = b.points
	}
	b.pendingTitle, b.pendingPoints = nil, nil
	b.question, b.sawSolution = q, false
	return nil
}

// open returns the open question or the "without a question" error.
func (b *builder) open(blk *Block, what string) (*quiz.Question, error) {
	if b.question == nil {
		return nil, b.semantic(fmt.Sprintf("Cannot have %s without a question", what), blk.Line)
	}
	return b.question, nil
}

// fix sets the variant of q, or rejects a block belonging to another one.
func (b *builder) fix(blk *Block, q *quiz.Question, v quiz.Variant, construct string) error {
	if q.Variant == quiz.VariantPending {
		if v != quiz.VariantPending && len(q.Choices) > 0 {
			return b.semantic(fmt.Sprintf("Question type %q is not compatible with existing choices", v.QTIType()), q.StartLn, blk.Line)
		}
		q.Variant = v
		return nil
	}
	if q.Variant == v {
		return nil
	}
	return b.semantic(fmt.Sprintf("Question type %q does not support %s", q.Variant.QTIType(), construct), q.StartLn, blk.Line)
}

func (b *builder) choice(blk *Block, v quiz.Variant, correct bool) error {
	q, err := b.open(blk, "a choice")
	if err != nil {
		return err
	}
	construct := "multiple choice"
	if v == quiz.MultipleAnswer {
		construct = "multiple answers"
	}
	if err := b.fix(blk, q, v, construct); err != nil {
		return err
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	q.Choices = append(q.Choices, &quiz.Choice{
		Digest:  cas.Keyed(q.Digest, []byte(h)),
		Line:    blk.Line,
		Text:    blk.Text,
		HTML:    h,
		Correct: correct,
	})
	return nil
}

func (b *builder) shortAnswer(blk *Block) error {
	q, err := b.open(blk, "an answer")
	if err != nil {
		return err
	}
	if err := b.fix(blk, q, quiz.ShortAnswer, "short answer"); err != nil {
		return err
	}
	escaped := encoding.EscapeXMLText(blk.Text)
	q.Choices = append(q.Choices, &quiz.Choice{
		Digest:  cas.Keyed(q.Digest, []byte(escaped)),
		Line:    blk.Line,
		Text:    blk.Text,
		HTML:    escaped,
		Correct: true,
	})
	return nil
}

func (b *builder) numeric(blk *Block) error {
	q, err := b.open(blk, "a numerical response")
	if err != nil {
		return err
	}
	if q.Variant == quiz.Numerical {
		return b.semantic("Cannot specify numerical response multiple times", q.StartLn, blk.Line)
	}
	if err := b.fix(blk, q, quiz.Numerical, "numerical response"); err != nil {
		return err
	}
	if q.CorrectFeedback != "" || q.IncorrectFeedback != "" {
		return b.semantic(fmt.Sprintf("Question type %q does not support correct/incorrect feedback", quiz.Numerical.QTIType()), blk.Line)
	}
	n, err := quiz.ParseNumeric(blk.Text)
	if err != nil {
		var ne *quiz.NumericError
		if qerrors.As(err, &ne) && ne.Syntax {
			return b.syntax(blk, ne.Message, "")
		}
		return b.semantic(err.Error(), blk.Line)
	}
	q.Numeric = n
	return nil
}

func (b *builder) sentinel(blk *Block, v quiz.Variant, construct string) error {
	q, err := b.open(blk, "an "+construct)
	if err != nil {
		return err
	}
	if q.Variant == v {
		return b.semantic(fmt.Sprintf("Cannot specify %s multiple times", construct), q.StartLn, blk.Line)
	}
	if err := b.fix(blk, q, v, construct); err != nil {
		return err
	}
	if q.CorrectFeedback != "" || q.IncorrectFeedback != "" {
		return b.semantic(fmt.Sprintf("Question type %q does not support correct/incorrect feedback", v.QTIType()), blk.Line)
	}
	return nil
}

func (b *builder) feedback(blk *Block) error {
	q, err := b.open(blk, "feedback")
	if err != nil {
		return err
	}
	switch q.Variant {
	case quiz.Essay, quiz.FileUpload, quiz.Numerical:
		return b.semantic("Question feedback must immediately follow the question", blk.Line)
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	if len(q.Choices) == 0 {
		if q.Feedback != "" {
			return b.semantic("Feedback can only be specified once", blk.Line)
		}
		q.Feedback, q.FeedbackHTML = blk.Text, h
		return nil
	}
	if q.Variant == quiz.ShortAnswer {
		return b.semantic("Short answer questions do not support per-answer feedback", blk.Line)
	}
	c := q.Choices[len(q.Choices)-1]
	if c.Feedback != "" {
		return b.semantic("Feedback can only be specified once", blk.Line)
	}
	c.Feedback, c.FeedbackHTML = blk.Text, h
	return nil
}

func (b *builder) outcomeFeedback(blk *Block) error {
	q, err := b.open(blk, "feedback")
	if err != nil {
		return err
	}
	kind := "Correct"
	if blk.Role == RoleIncorrectFeedback {
		kind = "Incorrect"
	}
	switch q.Variant {
	case quiz.Essay, quiz.FileUpload:
		return b.semantic(fmt.Sprintf("Question type %q does not support %s feedback", q.Variant.QTIType(), strings.ToLower(kind)), blk.Line)
	case quiz.Numerical:
		return b.semantic(kind+" feedback can only be specified for questions", blk.Line)
	}
	if len(q.Choices) > 0 {
		return b.semantic(kind+" feedback can only be specified for questions", blk.Line)
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	if blk.Role == RoleCorrectFeedback {
		if q.CorrectFeedback != "" {
			return b.semantic("Feedback can only be specified once", blk.Line)
		}
		q.CorrectFeedback, q.CorrectFeedbackHTML = blk.Text, h
		return nil
	}
	if q.IncorrectFeedback != "" {
		return b.semantic("Feedback can only be specified once", blk.Line)
	}
	q.IncorrectFeedback, q.IncorrectFeedbackHTML = blk.Text, h
	return nil
}

func (b *builder) solution(blk *Block) error {
	q, err := b.open(blk, "a solution")
	if err != nil {
		return err
	}
	if b.quiz.Options.FeedbackIsSolution {
		return b.semantic(`Solutions cannot be given separately when "Feedback is solution" is "true"`, blk.Line)
	}
	if b.sawSolution {
		return b.semantic("Solution can only be specified once", blk.Line)
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	q.Solution, q.SolutionHTML = blk.Text, h
	b.sawSolution = true
	return nil
}

func (b *builder) newText(blk *Block) (*quiz.TextRegion, error) {
	if err := b.closeItem(); err != nil {
		return nil, err
	}
	if b.group != nil {
		return nil, b.semantic("Text regions cannot be placed inside a question group", blk.Line)
	}
	t := &quiz.TextRegion{Index: len(b.quiz.Items), StartLn: blk.Line}
	b.quiz.Items = append(b.quiz.Items, t)
	b.text = t
	return t, nil
}

func (b *builder) textTitle(blk *Block) error {
	t, err := b.newText(blk)
	if err != nil {
		return err
	}
	t.Title = plainText(blk.Text)
	return nil
}

func (b *builder) textBody(blk *Block) error {
	t := b.text
	if t == nil || t.Text != "" {
		var err error
		if t, err = b.newText(blk); err != nil {
			return err
		}
	}
	h, err := b.rich(blk, blk.Text)
	if err != nil {
		return err
	}
	t.Text, t.TextHTML = blk.Text, h
	return nil
}

func (b *builder) startGroup(blk *Block) error {
	if b.group != nil {
		return b.semantic("Question groups cannot be nested", b.group.StartLn, blk.Line)
	}
	if err := b.closeItem(); err != nil {
		return err
	}
	b.group = quiz.NewGroup(blk.Line)
	b.groupSet = make(map[Role]bool)
	return nil
}

func (b *builder) groupOption(blk *Block) error {
	g := b.group
	name := optionLabel(ruleFor(blk.Role).name)
	switch {
	case g == nil:
		return b.semantic("No question group for setting properties", blk.Line)
	case len(g.Questions) > 0 || b.question != nil:
		return b.semantic("Question group options must be set at the very start of the group", blk.Line)
	case b.groupSet[blk.Role]:
		return b.semantic(fmt.Sprintf("%q has already been set for this question group", name), blk.Line)
	}
	n, err := strconv.Atoi(blk.Text)
	if err != nil || n <= 0 {
		return b.syntax(blk, fmt.Sprintf("%q value is invalid (must be positive number)", name), "a positive integer")
	}
	b.groupSet[blk.Role] = true
	switch blk.Role {
	case RolePick:
		g.Pick = n
	case RoleSolutionsPick:
		g.SolutionsPick = n
	case RolePointsPerQuestion:
		g.PointsPerQuestion = n
	}
	return nil
}

func (b *builder) endGroup(blk *Block) error {
	g := b.group
	if g == nil {
		return b.semantic("No question group to end", blk.Line)
	}
	if err := b.closeItem(); err != nil {
		return err
	}
	g.EndLn = blk.Line
	if len(g.Questions) == 0 {
		return b.semantic("Question group contains no questions", g.StartLn, blk.Line)
	}
	if g.Pick > len(g.Questions) {
		return b.semantic(fmt.Sprintf("Question group only contains %d questions, but pick is %d", len(g.Questions), g.Pick),
			g.StartLn, blk.Line)
	}
	if g.SolutionsPick > len(g.Questions) {
		return b.semantic(fmt.Sprintf("Question group only contains %d questions, but solutions pick is %d", len(g.Questions), g.SolutionsPick),
			g.StartLn, blk.Line)
	}
	digests := make([]cas.Digest, len(g.Questions))
	for i, q := range g.Questions {
		digests[i] = q.Digest
	}
	g.Digest = cas.Combine(digests)
	b.quiz.Items = append(b.quiz.Items, g)
	b.group, b.groupSet = nil, nil
	return nil
}

// finish completes the model at end of input.
func (b *builder) finish(lastLine int) (*quiz.Quiz, error) {
	if l := b.pendingLine(); l != 0 {
		return nil, b.semantic(errUnusedAttrs, l)
	}
	if err := b.closeItem(); err != nil {
		return nil, err
	}
	if b.group != nil {
		return nil, &qerrors.SyntaxError{Source: b.source, Line: lastLine, Expected: `"END_GROUP"`, Message: "Question group never ended"}
	}
	if len(b.quiz.Questions()) == 0 {
		return nil, b.semantic("No questions were found")
	}

	digests := make([]cas.Digest, 0, len(b.quiz.Items))
	for _, it := range b.quiz.Items {
		switch v := it.(type) {
		case *quiz.Question:
			digests = append(digests, v.Digest)
		case *quiz.Group:
			digests = append(digests, v.Digest)
		case *quiz.TextRegion:
			v.Digest = cas.Parts(strconv.Itoa(v.Index), v.Title, v.TextHTML)
			digests = append(digests, v.Digest)
		}
	}
	b.quiz.Digest = cas.Combine(digests)
	return b.quiz, nil
}

// plainText joins the lines of a title block with single spaces.
func plainText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// optionLabel capitalizes a rule name for messages: "can't go back" becomes
// "Can't go back".
func optionLabel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
