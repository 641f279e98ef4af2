// Package encoding provides the text escaping shared by the QTI, HTML and
// Markdown writers.
package encoding

import "strings"

var (
	xmlReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	xmlTextReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	htmlReplacer = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
)

// EscapeXML escapes all five predefined XML entities. The result is safe
// in element content and in either kind of quoted attribute; identifiers
// and titles in the QTI documents use it.
func EscapeXML(s string) string {
	return xmlReplacer.Replace(s)
}

// EscapeXMLText escapes & < and > only. Rendered HTML stored in a mattext
// element goes through this so quotes inside its tags stay as written.
func EscapeXMLText(s string) string {
	return xmlTextReplacer.Replace(s)
}

// EscapeHTML escapes text for HTML content and double-quoted attributes.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

// markdownSpecial holds the characters a backslash makes literal in
// Markdown inline text.
const markdownSpecial = "\\`*_{}[]()#+-.!"

// EscapeMarkdown backslash-escapes raw text, such as a quiz title, so it
// renders literally when inserted into Markdown.
func EscapeMarkdown(s string) string {
	if !strings.ContainsAny(s, markdownSpecial) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
