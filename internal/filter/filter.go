// Package filter sanitizes model-generated text before it reaches a client.
//
// The validator rejects unsafe markup on the way in; this package strips it
// on the way out. Filter is pure and idempotent.
package filter

import (
	"regexp"
)

// RemovedMarker replaces blocked embed/script blocks so the client can show
// that content was withheld.
const RemovedMarker = "[removed]"

var (
	// Paired block tags, including everything between them.
	blockPairPattern = regexp.MustCompile(`(?is)<\s*(script|iframe|object|embed)\b[^>]*>.*?<\s*/\s*(script|iframe|object|embed)\s*>`)
	// Unpaired opening or self-closing block tags.
	blockOpenPattern = regexp.MustCompile(`(?i)<\s*(script|iframe|object|embed)\b[^>]*>`)
	// Stray closing block tags.
	blockClosePattern = regexp.MustCompile(`(?i)<\s*/\s*(script|iframe|object|embed)\s*>`)

	// Any HTML-ish tag; handler attributes are only stripped inside tags so
	// prose like "one = two" is left alone.
	tagPattern     = regexp.MustCompile(`<[a-zA-Z][^<>]*>`)
	handlerPattern = regexp.MustCompile(`(?i)([\s"'/])on[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)

	jsSchemePattern = regexp.MustCompile(`(?i)javascript\s*:`)
)

// Filter removes script-capable markup from text. Every removal pass is
// repeated until the text stops changing, so Filter(Filter(x)) == Filter(x).
// Each changing pass either removes a '<' or shortens the text, so the loop
// terminates.
func Filter(text string) string {
	for {
		next := pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func pass(s string) string {
	s = blockPairPattern.ReplaceAllString(s, RemovedMarker)
	s = blockOpenPattern.ReplaceAllString(s, RemovedMarker)
	s = blockClosePattern.ReplaceAllString(s, RemovedMarker)
	s = tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		return handlerPattern.ReplaceAllString(tag, "$1")
	})
	s = jsSchemePattern.ReplaceAllString(s, "")
	return s
}

// Changed reports whether Filter would alter text.
func Changed(text string) bool {
	return Filter(text) != text
}
