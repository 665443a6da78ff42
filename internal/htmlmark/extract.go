// Package htmlmark implements the HTML side of the link-risk pipeline:
// structural link extraction and idempotent injection of risk indicators.
// Both operate on the token stream only; nothing is rendered or executed.
package htmlmark

import (
	"strings"

	"golang.org/x/net/html"
)

// Extractor scans an HTML body for anchor targets.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractLinks returns the ordered sequence of anchor hrefs in the body,
// duplicates preserved positionally. Malformed HTML yields whatever anchors
// still tokenize.
func (e *Extractor) ExtractLinks(body string) []string {
	var links []string
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "a" {
			continue
		}
		for _, attr := range tok.Attr {
			if attr.Key == "href" && attr.Val != "" {
				links = append(links, attr.Val)
				break
			}
		}
	}
}
