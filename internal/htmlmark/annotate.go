package htmlmark

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/guardianmail/guardianmail/internal/core"
)

// indicatorAttr marks an injected indicator span. Its presence directly
// after an anchor is what makes re-annotation a no-op.
const indicatorAttr = "data-risk"

var indicatorGlyphs = map[core.RiskLevel]string{
	core.RiskLow:     "&#10003;",
	core.RiskMedium:  "&#9888;",
	core.RiskHigh:    "&#9888;",
	core.RiskUnknown: "?",
}

var fallbackTooltips = map[core.RiskLevel]string{
	core.RiskLow:     "This link is likely safe.",
	core.RiskMedium:  "This link is potentially suspicious. Proceed with caution.",
	core.RiskHigh:    "This link is considered high-risk. Do not click.",
	core.RiskUnknown: "Risk could not be determined for this link.",
}

// Annotator injects risk indicators into an HTML body.
type Annotator struct{}

// NewAnnotator creates a new annotator.
func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate emits the body with an indicator span immediately after every
// anchor whose href has a classification. The original bytes pass through
// untouched; only indicator markup is inserted, and an anchor already
// followed by an indicator is left alone.
func (a *Annotator) Annotate(body string, risks map[string]core.LinkRisk) (string, error) {
	if len(risks) == 0 {
		return body, nil
	}

	var out strings.Builder
	out.Grow(len(body) + len(risks)*96)

	z := html.NewTokenizer(strings.NewReader(body))
	var hrefStack []string
	var pending *core.LinkRisk

	flushPending := func() {
		if pending != nil {
			out.WriteString(indicatorMarkup(*pending))
			pending = nil
		}
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			flushPending()
			return out.String(), nil
		}

		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if pending != nil {
				// An indicator already follows this anchor; do not
				// double-wrap.
				if tok.Data == "span" && hasAttr(tok, indicatorAttr) {
					pending = nil
				} else {
					flushPending()
				}
			}
			if tok.Data == "a" && tt == html.StartTagToken {
				hrefStack = append(hrefStack, attrValue(tok, "href"))
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "a" && len(hrefStack) > 0 {
				flushPending()
				href := hrefStack[len(hrefStack)-1]
				hrefStack = hrefStack[:len(hrefStack)-1]
				if risk, ok := risks[href]; ok {
					pending = &risk
				}
			} else {
				flushPending()
			}
		default:
			flushPending()
		}

		out.Write(raw)
	}
}

func indicatorMarkup(risk core.LinkRisk) string {
	tooltip := risk.Justification
	if tooltip == "" {
		tooltip = fallbackTooltips[risk.Level]
	}
	glyph, ok := indicatorGlyphs[risk.Level]
	if !ok {
		glyph = "?"
	}
	return fmt.Sprintf(`<span class="risk-indicator" %s="%s" title="%s">%s</span>`,
		indicatorAttr, risk.Level, html.EscapeString(tooltip), glyph)
}

func hasAttr(tok html.Token, key string) bool {
	for _, attr := range tok.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func attrValue(tok html.Token, key string) string {
	for _, attr := range tok.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
