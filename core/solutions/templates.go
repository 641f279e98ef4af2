package solutions

// block is one piece of solutions markup in both raw formats. Pandoc
// Markdown output carries both as raw blocks so a single document renders
// to LaTeX and HTML; HTML output uses only the HTML half.
type block struct {
	latex string
	html  string
}

const latexHeader = `%%%% Begin quizqti custom preamble
% Page layout
\usepackage[margin=1in]{geometry}
% Graphics
\usepackage{graphicx}
% Math/science
\usepackage{amsmath, amssymb}
\usepackage{siunitx}
% Symbols for solutions
\usepackage{fontawesome}
% Answers and solutions use itemize with custom item symbols
\def\quizqtimctfchoicesymb{%
    \resizebox{2ex}{!}{\faCircleO}}
\def\quizqtimctfcorrectchoicesymb{%
    \resizebox{2ex}{!}{\faDotCircleO}}
\def\quizqtimultanschoicesymb{%
    \resizebox{2ex}{!}{\faSquareO}}
\def\quizqtimultanscorrectchoicesymb{%
    \resizebox{2ex}{!}{\faCheckSquare}}
\def\quizqtigeneralcorrectanssymb{%
    \resizebox{2ex}{!}{\faArrowRight}}
\def\quizqtisolutionsymb{%
    \resizebox{2ex}{!}{\faFileTextO}}
%%%% End quizqti custom preamble
`

const htmlStyle = `<style type="text/css">
html {
    line-height: 1.2;
}
div.quizqti-randomized > ul {
    list-style-position: outside;
    margin-left: -0.5em;
}
div.quizqti-randomized > ul > li {
    list-style-type: "[?]";
    padding-left: 0.5em;
}
ul.quizqti {
    list-style-position: outside;
}
ul > li.quizqti-mctf-choice::marker, ul > li.quizqti-mctf-correct-choice::marker {
    font-size: 1.5em;
}
ul > li.quizqti-mctf-choice, ul > li.quizqti-mctf-correct-choice {
    margin-top: -0.5em;
}
li.quizqti-mctf-choice {
    list-style-type: "○";
    padding-left: 0.5em;
}
li.quizqti-mctf-correct-choice {
    list-style-type: "●";
    padding-left: 0.5em;
}
li.quizqti-multans-choice {
    list-style-type: "☐";
    padding-left: 0.5em;
}
li.quizqti-multans-correct-choice {
    list-style-type: "☑";
    padding-left: 0.5em;
}
li.quizqti-generic-correct {
    list-style-type: "\1F846";
    padding-left: 0.5em;
}
ul > li.quizqti-solution::marker {
    font-size: 1.75em;
}
ul > li.quizqti-solution {
    margin-top: -0.25em;
}
li.quizqti-solution {
    list-style-type: "\1F5C8";
    padding-left: 0.5em;
}
</style>
`

var (
	headerBlock = block{latexHeader, htmlStyle}

	mctfChoiceStart           = block{`\item[\quizqtimctfchoicesymb]`, `<li class="quizqti-mctf-choice">`}
	mctfCorrectChoiceStart    = block{`\item[\quizqtimctfcorrectchoicesymb]`, `<li class="quizqti-mctf-correct-choice">`}
	multansChoiceStart        = block{`\item[\quizqtimultanschoicesymb]`, `<li class="quizqti-multans-choice">`}
	multansCorrectChoiceStart = block{`\item[\quizqtimultanscorrectchoicesymb]`, `<li class="quizqti-multans-correct-choice">`}
	genericCorrectStart       = block{`\item[\quizqtigeneralcorrectanssymb]`, `<li class="quizqti-generic-correct">`}
	choiceEnd                 = block{``, `</li>`}

	choicesStart = block{`\begin{itemize}`, `<ul class="quizqti">`}
	choicesEnd   = block{`\end{itemize}`, `</ul>`}

	solutionStart = block{"\\begin{itemize}\n\\item[\\quizqtisolutionsymb]", `<ul class="quizqti"><li class="quizqti-solution">`}
	solutionEnd   = block{`\end{itemize}`, `</li></ul>`}

	randomStart = block{`\begingroup\renewcommand{\labelitemi}{[?]}`, `<div class="quizqti-randomized">`}
	randomEnd   = block{`\endgroup`, `</div>`}
)
