// Package render turns stored message text into HTML fragments for the chat page.
package render

import (
	"html"
	"regexp"
	"strings"
)

// DOIBaseURL is the resolver prefix used for DOI links.
const DOIBaseURL = "https://doi.org/"

var (
	// 10.<4+ digits>(.<digits>)*/<non-whitespace>, ending on a word character.
	// Input is escaped HTML: raw markup ends the match, while the escaped forms
	// of <, >, & and ' stay part of the identifier (SICI-style DOIs).
	doiPattern = regexp.MustCompile(`\b(10[.][0-9]{4,}(?:[.][0-9]+)*/(?:[^\s<>"&]|&(?:lt|gt|amp|#39);)+)\b`)

	anchorPattern = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a>`)

	lineBreakPattern = regexp.MustCompile(`\r\n|\n\r|\n|\r`)
)

// LinkDOIs rewrites DOI-shaped substrings into anchors pointing at doi.org.
// Text already inside an anchor is left alone, so applying it twice is a no-op.
func LinkDOIs(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range anchorPattern.FindAllStringIndex(text, -1) {
		b.WriteString(linkSegment(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(linkSegment(text[last:]))
	return b.String()
}

func linkSegment(segment string) string {
	return doiPattern.ReplaceAllString(segment, `<a href="`+DOIBaseURL+`$1">$1</a>`)
}

// LineBreaks inserts an HTML break before every line ending, keeping the ending.
func LineBreaks(text string) string {
	return lineBreakPattern.ReplaceAllStringFunc(text, func(eol string) string {
		return "<br />" + eol
	})
}

// Message prepares raw message content for embedding in HTML: the text is
// escaped, DOIs are linked and line endings become breaks.
func Message(content string) string {
	return LineBreaks(LinkDOIs(html.EscapeString(content)))
}
