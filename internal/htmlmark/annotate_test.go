package htmlmark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianmail/guardianmail/internal/core"
)

func TestAnnotate(t *testing.T) {
	a := NewAnnotator()

	t.Run("Indicator After Anchor", func(t *testing.T) {
		body := `<p>Click <a href="https://bad.example.com">here</a> now.</p>`
		risks := map[string]core.LinkRisk{
			"https://bad.example.com": {
				URL:           "https://bad.example.com",
				Level:         core.RiskHigh,
				Score:         0.95,
				Justification: "Domain impersonates a known brand.",
			},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)

		idx := strings.Index(out, `</a>`)
		require.NotEqual(t, -1, idx)
		after := out[idx+len("</a>"):]
		assert.True(t, strings.HasPrefix(after, `<span class="risk-indicator" data-risk="high"`), "indicator must directly follow the anchor, got: %s", after)
		assert.Contains(t, out, `title="Domain impersonates a known brand."`)
	})

	t.Run("Original Bytes Preserved", func(t *testing.T) {
		body := `<p>Click <a href="https://bad.example.com?q=1&amp;r=2">the  link</a> now.</p>`
		risks := map[string]core.LinkRisk{
			"https://bad.example.com?q=1&r=2": {Level: core.RiskMedium},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)
		assert.Contains(t, out, `<a href="https://bad.example.com?q=1&amp;r=2">the  link</a>`)
		assert.Contains(t, out, `<p>Click `)
		assert.Contains(t, out, ` now.</p>`)
	})

	t.Run("Idempotent", func(t *testing.T) {
		body := `<a href="https://x.example.com">x</a> trailing text`
		risks := map[string]core.LinkRisk{
			"https://x.example.com": {Level: core.RiskLow},
		}

		once, err := a.Annotate(body, risks)
		require.NoError(t, err)
		twice, err := a.Annotate(once, risks)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
		assert.Equal(t, 1, strings.Count(twice, "risk-indicator"))
	})

	t.Run("Each Occurrence Annotated", func(t *testing.T) {
		body := `<a href="https://x.example.com">one</a><a href="https://x.example.com">two</a>`
		risks := map[string]core.LinkRisk{
			"https://x.example.com": {Level: core.RiskMedium},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out, "risk-indicator"))
	})

	t.Run("Unclassified Anchor Untouched", func(t *testing.T) {
		body := `<a href="https://a.example.com">a</a><a href="https://b.example.com">b</a>`
		risks := map[string]core.LinkRisk{
			"https://b.example.com": {Level: core.RiskHigh},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "risk-indicator"))
		assert.Contains(t, out, `<a href="https://a.example.com">a</a><a href="https://b.example.com">b</a><span`)
	})

	t.Run("Empty Risks Unchanged", func(t *testing.T) {
		body := `<a href="https://x.example.com">x</a>`
		out, err := a.Annotate(body, map[string]core.LinkRisk{})
		require.NoError(t, err)
		assert.Equal(t, body, out)
	})

	t.Run("Anchor At End Of Body", func(t *testing.T) {
		body := `text <a href="https://x.example.com">x</a>`
		risks := map[string]core.LinkRisk{
			"https://x.example.com": {Level: core.RiskUnknown},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, `</span>`))
		assert.Contains(t, out, `data-risk="unknown"`)
	})

	t.Run("Fallback Tooltip And Escaping", func(t *testing.T) {
		body := `<a href="https://x.example.com">x</a>`
		risks := map[string]core.LinkRisk{
			"https://x.example.com": {Level: core.RiskHigh},
		}

		out, err := a.Annotate(body, risks)
		require.NoError(t, err)
		assert.Contains(t, out, `title="This link is considered high-risk. Do not click."`)

		risks["https://x.example.com"] = core.LinkRisk{
			Level:         core.RiskHigh,
			Justification: `Uses "quoted" text & symbols`,
		}
		out, err = a.Annotate(body, risks)
		require.NoError(t, err)
		assert.Contains(t, out, "&#34;quoted&#34;")
		assert.Contains(t, out, "&amp; symbols")
	})
}
