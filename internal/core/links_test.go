package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveFanOut(t *testing.T) {
	scores := map[string]float64{
		"https://a.example.com": 0.1,
		"https://b.example.com": 0.5,
		"https://c.example.com": 0.9,
		"https://d.example.com": 0.3,
		"https://e.example.com": 0.71,
	}
	model := &fakeModel{
		classifyURL: func(url string) (*URLAnalysisResult, error) {
			if url == "https://broken.example.com" {
				return nil, errors.New("model unavailable")
			}
			return &URLAnalysisResult{RiskScore: scores[url], Justification: "scored"}, nil
		},
	}
	r := NewLinkResolver(model, zap.NewNop(), time.Second, 3)

	urls := []string{
		"https://a.example.com",
		"https://b.example.com",
		"https://c.example.com",
		"https://d.example.com",
		"https://e.example.com",
		"https://broken.example.com",
	}
	risks := r.Resolve(context.Background(), urls)

	require.Len(t, risks, 6)
	assert.Equal(t, RiskLow, risks["https://a.example.com"].Level)
	assert.Equal(t, RiskMedium, risks["https://b.example.com"].Level)
	assert.Equal(t, RiskHigh, risks["https://c.example.com"].Level)
	assert.Equal(t, RiskLow, risks["https://d.example.com"].Level)
	assert.Equal(t, RiskHigh, risks["https://e.example.com"].Level)

	// One failing link settles as unknown without disturbing the others.
	broken := risks["https://broken.example.com"]
	assert.Equal(t, RiskUnknown, broken.Level)
	assert.Equal(t, "Risk could not be determined for this link.", broken.Justification)
}

func TestResolveDeduplicates(t *testing.T) {
	model := &fakeModel{
		classifyURL: func(url string) (*URLAnalysisResult, error) {
			return &URLAnalysisResult{RiskScore: 0.2}, nil
		},
	}
	r := NewLinkResolver(model, zap.NewNop(), time.Second, 2)

	risks := r.Resolve(context.Background(), []string{
		"https://x.example.com",
		"https://x.example.com",
		"https://x.example.com",
	})

	assert.Len(t, risks, 1)
	assert.Equal(t, 1, model.totalURLCalls(), "one request per unique URL")
}

func TestResolveMalformedURL(t *testing.T) {
	model := &fakeModel{}
	r := NewLinkResolver(model, zap.NewNop(), time.Second, 2)

	risks := r.Resolve(context.Background(), []string{"not-a-url", "://broken"})

	require.Len(t, risks, 2)
	for _, risk := range risks {
		assert.Equal(t, RiskUnknown, risk.Level)
		assert.Equal(t, "The link target is not a valid URL.", risk.Justification)
	}
	assert.Equal(t, 0, model.totalURLCalls(), "malformed URLs must not reach the model")
}

func TestResolveEmpty(t *testing.T) {
	model := &fakeModel{}
	r := NewLinkResolver(model, zap.NewNop(), time.Second, 2)

	risks := r.Resolve(context.Background(), nil)
	assert.Empty(t, risks)
	assert.Equal(t, 0, model.totalURLCalls())
}

// fakeAnnotator appends one marker per classified link.
type fakeAnnotator struct{}

func (fakeAnnotator) Annotate(body string, risks map[string]LinkRisk) (string, error) {
	out := body
	for range risks {
		out += "<!--indicator-->"
	}
	return out, nil
}

func TestAnnotatedBodyShortCircuit(t *testing.T) {
	model := &fakeModel{}
	p := NewBodyPipeline(
		&fakeExtractor{links: nil},
		NewLinkResolver(model, zap.NewNop(), time.Second, 2),
		fakeAnnotator{},
		zap.NewNop(),
	)

	body := "<p>No links at all.</p>"
	annotated, risks, err := p.AnnotatedBody(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, body, annotated, "a body without links is returned unchanged")
	assert.Empty(t, risks)
	assert.Equal(t, 0, model.totalURLCalls())
}

func TestAnnotatedBodyResolvesAndAnnotates(t *testing.T) {
	model := &fakeModel{
		classifyURL: func(url string) (*URLAnalysisResult, error) {
			return &URLAnalysisResult{RiskScore: 0.9}, nil
		},
	}
	p := NewBodyPipeline(
		&fakeExtractor{links: []string{"https://x.example.com"}},
		NewLinkResolver(model, zap.NewNop(), time.Second, 2),
		fakeAnnotator{},
		zap.NewNop(),
	)

	annotated, risks, err := p.AnnotatedBody(context.Background(), "<p>body</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>body</p><!--indicator-->", annotated)
	require.Len(t, risks, 1)
	assert.Equal(t, RiskHigh, risks["https://x.example.com"].Level)
}
