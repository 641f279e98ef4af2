package qti

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/quizqti/core/encoding"
	"github.com/FocuswithJustin/quizqti/core/quiz"
	"github.com/FocuswithJustin/quizqti/core/resolve"
)

// DefaultItemTitle is the item title used when a question has none.
const DefaultItemTitle = "Question"

const assessmentHeader = `<?xml version="1.0" encoding="UTF-8"?>
<questestinterop xmlns="http://www.imsglobal.org/xsd/ims_qtiasiv1p2" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://www.imsglobal.org/xsd/ims_qtiasiv1p2 http://www.imsglobal.org/xsd/ims_qtiasiv1p2p1.xsd">
  <assessment ident="%s" title="%s">
    <qtimetadata>
      <qtimetadatafield>
        <fieldlabel>cc_maxattempts</fieldlabel>
        <fieldentry>%s</fieldentry>
      </qtimetadatafield>
    </qtimetadata>
    <section ident="root_section">
`

const assessmentFooter = `    </section>
  </assessment>
</questestinterop>
`

// mattext renders rendered HTML as the content of a mattext element.
func mattext(html string) string {
	return `<mattext texttype="text/html">` + encoding.EscapeXMLText(html) + `</mattext>`
}

// Assessment renders the QTI 1.2 assessment document for the delivery view
// of p.
func Assessment(p *resolve.Plan, ids Identifiers) []byte {
	q := p.Quiz
	var b bytes.Buffer
	fmt.Fprintf(&b, assessmentHeader, ids.Assessment, encoding.EscapeXML(q.Title), attemptsText(q.Options.AllowedAttempts))
	for _, it := range p.Delivery {
		switch v := it.(type) {
		case *quiz.Question:
			writeQuestion(&b, v, "      ")
		case *quiz.TextRegion:
			writeText(&b, v, "      ")
		case *quiz.Group:
			writeGroup(&b, v)
		}
	}
	b.WriteString(assessmentFooter)
	return b.Bytes()
}

func attemptsText(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

// indented writes each line of s prefixed with ind.
func indented(b *bytes.Buffer, ind, s string) {
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(ind)
		b.WriteString(line)
	}
}

func writeGroup(b *bytes.Buffer, g *quiz.Group) {
	fmt.Fprintf(b, `      <section ident="%s" title="Question group">
        <selection_ordering>
          <selection>
            <selection_number>%d</selection_number>
            <selection_extension>
              <points_per_item>%d</points_per_item>
            </selection_extension>
          </selection>
        </selection_ordering>
`, groupIdent(g), g.Pick, g.PointsPerQuestion)
	for _, q := range g.Questions {
		writeQuestion(b, q, "        ")
	}
	b.WriteString("      </section>\n")
}

func writeText(b *bytes.Buffer, t *quiz.TextRegion, ind string) {
	var x bytes.Buffer
	fmt.Fprintf(&x, "<item ident=\"%s\" title=\"%s\">\n", textIdent(t), encoding.EscapeXML(t.Title))
	writeMetadata(&x, "text_only_question", "0", "", textRef(t))
	fmt.Fprintf(&x, `  <presentation>
    <material>
      %s
    </material>
  </presentation>
</item>
`, mattext(t.TextHTML))
	indented(b, ind, x.String())
}

func writeMetadata(b *bytes.Buffer, qtype, points, answerIDs, ref string) {
	fmt.Fprintf(b, `  <itemmetadata>
    <qtimetadata>
      <qtimetadatafield>
        <fieldlabel>question_type</fieldlabel>
        <fieldentry>%s</fieldentry>
      </qtimetadatafield>
      <qtimetadatafield>
        <fieldlabel>points_possible</fieldlabel>
        <fieldentry>%s</fieldentry>
      </qtimetadatafield>
      <qtimetadatafield>
        <fieldlabel>original_answer_ids</fieldlabel>
        <fieldentry>%s</fieldentry>
      </qtimetadatafield>
      <qtimetadatafield>
        <fieldlabel>assessment_question_identifierref</fieldlabel>
        <fieldentry>%s</fieldentry>
      </qtimetadatafield>
    </qtimetadata>
  </itemmetadata>
`, qtype, points, answerIDs, ref)
}

// writeQuestion renders one item. The item is built unindented and then
// shifted to its position in the section.
func writeQuestion(b *bytes.Buffer, q *quiz.Question, ind string) {
	var x bytes.Buffer
	title := q.Title
	if title == "" {
		title = DefaultItemTitle
	}
	fmt.Fprintf(&x, "<item ident=\"%s\" title=\"%s\">\n", questionIdent(q), encoding.EscapeXML(title))

	var answerIDs []string
	if q.Variant.HasChoices() || q.Variant == quiz.ShortAnswer {
		for _, c := range q.Choices {
			answerIDs = append(answerIDs, choiceIdent(c))
		}
	}
	writeMetadata(&x, q.Variant.QTIType(), q.PointsText(), strings.Join(answerIDs, ","), questionRef(q))

	writePresentation(&x, q)
	writeResprocessing(&x, q)
	writeFeedback(&x, q)
	x.WriteString("</item>\n")
	indented(b, ind, x.String())
}

func writePresentation(x *bytes.Buffer, q *quiz.Question) {
	fmt.Fprintf(x, `  <presentation>
    <material>
      %s
    </material>
`, mattext(q.StemHTML))
	switch q.Variant {
	case quiz.MultipleChoice, quiz.TrueFalse, quiz.MultipleAnswer:
		card := "Single"
		if q.Variant == quiz.MultipleAnswer {
			card = "Multiple"
		}
		fmt.Fprintf(x, "    <response_lid ident=\"response1\" rcardinality=\"%s\">\n      <render_choice>\n", card)
		for _, c := range q.Choices {
			fmt.Fprintf(x, `        <response_label ident="%s">
          <material>
            %s
          </material>
        </response_label>
`, choiceIdent(c), mattext(c.HTML))
		}
		x.WriteString("      </render_choice>\n    </response_lid>\n")
	case quiz.ShortAnswer, quiz.Essay:
		x.WriteString(`    <response_str ident="response1" rcardinality="Single">
      <render_fib>
        <response_label ident="answer1" rshuffle="No"/>
      </render_fib>
    </response_str>
`)
	case quiz.Numerical:
		x.WriteString(`    <response_str ident="response1" rcardinality="Single">
      <render_fib fibtype="Decimal">
        <response_label ident="answer1"/>
      </render_fib>
    </response_str>
`)
	}
	x.WriteString("  </presentation>\n")
}

const (
	generalFeedbackID   = "general_fb"
	correctFeedbackID   = "correct_fb"
	incorrectFeedbackID = "general_incorrect_fb"
)

func displayFeedback(id string) string {
	return `      <displayfeedback feedbacktype="Response" linkrefid="` + id + `"/>` + "\n"
}

func otherCondition(x *bytes.Buffer, cont, feedbackID string) {
	fmt.Fprintf(x, "    <respcondition continue=\"%s\">\n      <conditionvar>\n        <other/>\n      </conditionvar>\n", cont)
	if feedbackID != "" {
		x.WriteString(displayFeedback(feedbackID))
	}
	x.WriteString("    </respcondition>\n")
}

func writeResprocessing(x *bytes.Buffer, q *quiz.Question) {
	x.WriteString(`  <resprocessing>
    <outcomes>
      <decvar maxvalue="100" minvalue="0" varname="SCORE" vartype="Decimal"/>
    </outcomes>
`)
	if q.Feedback != "" {
		otherCondition(x, "Yes", generalFeedbackID)
	}
	if q.Variant.HasChoices() {
		for _, c := range q.Choices {
			if c.Feedback == "" {
				continue
			}
			fmt.Fprintf(x, `    <respcondition continue="Yes">
      <conditionvar>
        <varequal respident="response1">%s</varequal>
      </conditionvar>
`, choiceIdent(c))
			x.WriteString(displayFeedback(choiceIdent(c) + "_fb"))
			x.WriteString("    </respcondition>\n")
		}
	}

	switch q.Variant {
	case quiz.Essay, quiz.FileUpload:
		otherCondition(x, "No", "")
	default:
		x.WriteString("    <respcondition continue=\"No\">\n      <conditionvar>\n")
		writeCorrectCondition(x, q)
		x.WriteString("      </conditionvar>\n")
		x.WriteString(`      <setvar action="Set" varname="SCORE">100</setvar>` + "\n")
		if q.CorrectFeedback != "" {
			x.WriteString(displayFeedback(correctFeedbackID))
		}
		x.WriteString("    </respcondition>\n")
		if q.IncorrectFeedback != "" {
			otherCondition(x, "Yes", incorrectFeedbackID)
		}
	}
	x.WriteString("  </resprocessing>\n")
}

// writeCorrectCondition writes the conditionvar body that holds exactly
// when a response earns full credit.
func writeCorrectCondition(x *bytes.Buffer, q *quiz.Question) {
	const ind = "        "
	switch q.Variant {
	case quiz.MultipleChoice, quiz.TrueFalse:
		for _, c := range q.Choices {
			if c.Correct {
				fmt.Fprintf(x, "%s<varequal respident=\"response1\">%s</varequal>\n", ind, choiceIdent(c))
				break
			}
		}
	case quiz.MultipleAnswer:
		x.WriteString(ind + "<and>\n")
		for _, c := range q.Choices {
			if c.Correct {
				fmt.Fprintf(x, "%s  <varequal respident=\"response1\">%s</varequal>\n", ind, choiceIdent(c))
			} else {
				fmt.Fprintf(x, "%s  <not>\n%s    <varequal respident=\"response1\">%s</varequal>\n%s  </not>\n", ind, ind, choiceIdent(c), ind)
			}
		}
		x.WriteString(ind + "</and>\n")
	case quiz.ShortAnswer:
		for _, c := range q.Choices {
			fmt.Fprintf(x, "%s<varequal respident=\"response1\">%s</varequal>\n", ind, encoding.EscapeXML(c.Text))
		}
	case quiz.Numerical:
		n := q.Numeric
		if n.HasCenter() {
			fmt.Fprintf(x, `%[1]s<or>
%[1]s  <varequal respident="response1">%[2]s</varequal>
%[1]s  <and>
%[1]s    <vargte respident="response1">%[3]s</vargte>
%[1]s    <varlte respident="response1">%[4]s</varlte>
%[1]s  </and>
%[1]s</or>
`, ind, n.CenterText, n.MinText, n.MaxText)
		} else {
			fmt.Fprintf(x, "%[1]s<vargte respident=\"response1\">%[2]s</vargte>\n%[1]s<varlte respident=\"response1\">%[3]s</varlte>\n", ind, n.MinText, n.MaxText)
		}
	}
}

func writeItemFeedback(x *bytes.Buffer, id, html string) {
	fmt.Fprintf(x, `  <itemfeedback ident="%s">
    <flow_mat>
      <material>
        %s
      </material>
    </flow_mat>
  </itemfeedback>
`, id, mattext(html))
}

func writeFeedback(x *bytes.Buffer, q *quiz.Question) {
	if q.Feedback != "" {
		writeItemFeedback(x, generalFeedbackID, q.FeedbackHTML)
	}
	if q.CorrectFeedback != "" {
		writeItemFeedback(x, correctFeedbackID, q.CorrectFeedbackHTML)
	}
	if q.IncorrectFeedback != "" {
		writeItemFeedback(x, incorrectFeedbackID, q.IncorrectFeedbackHTML)
	}
	if q.Variant.HasChoices() {
		for _, c := range q.Choices {
			if c.Feedback != "" {
				writeItemFeedback(x, choiceIdent(c)+"_fb", c.FeedbackHTML)
			}
		}
	}
}
