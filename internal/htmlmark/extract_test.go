package htmlmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks(t *testing.T) {
	e := NewExtractor()

	t.Run("Ordered Extraction", func(t *testing.T) {
		body := `<p>See <a href="https://a.example.com">A</a> and <a href="https://b.example.com">B</a>.</p>`
		links := e.ExtractLinks(body)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, links)
	})

	t.Run("Duplicates Preserved", func(t *testing.T) {
		body := `<a href="https://x.example.com">one</a><a href="https://x.example.com">two</a>`
		links := e.ExtractLinks(body)
		assert.Equal(t, []string{"https://x.example.com", "https://x.example.com"}, links)
	})

	t.Run("No Anchors", func(t *testing.T) {
		links := e.ExtractLinks(`<p>Plain text, no links here.</p>`)
		assert.Empty(t, links)
	})

	t.Run("Empty Body", func(t *testing.T) {
		assert.Empty(t, e.ExtractLinks(""))
	})

	t.Run("Anchor Without Href Skipped", func(t *testing.T) {
		body := `<a name="top">anchor</a><a href="">empty</a><a href="https://ok.example.com">ok</a>`
		links := e.ExtractLinks(body)
		assert.Equal(t, []string{"https://ok.example.com"}, links)
	})

	t.Run("Malformed HTML Best Effort", func(t *testing.T) {
		body := `<a href="https://first.example.com">first</a><div><a href="https://second.example.com">never closed`
		links := e.ExtractLinks(body)
		assert.Contains(t, links, "https://first.example.com")
		assert.Contains(t, links, "https://second.example.com")
	})

	t.Run("Non Anchor Hrefs Ignored", func(t *testing.T) {
		body := `<link href="style.css"><area href="https://map.example.com"><a href="https://real.example.com">r</a>`
		links := e.ExtractLinks(body)
		assert.Equal(t, []string{"https://real.example.com"}, links)
	})
}
