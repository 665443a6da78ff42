// Package llm implements core.ModelClient on top of a provider-specific
// completion primitive. The prompt templates and the strict JSON response
// schemas for the five analysis operations live here; providers only supply
// raw text completion.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/core"
	"github.com/guardianmail/guardianmail/internal/utils"
)

// Completer is the single primitive a model provider has to offer.
type Completer interface {
	// Complete sends a prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// ModelName identifies the underlying model for result metadata.
	ModelName() string
}

// Client implements core.ModelClient over a Completer.
type Client struct {
	completer     Completer
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	maxBodySize   int
}

// NewClient creates a new model client.
func NewClient(completer Completer, logger *zap.Logger, textProcessor *utils.TextProcessor, maxBodySize int) *Client {
	return &Client{
		completer:     completer,
		logger:        logger,
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
	}
}

// Close closes the underlying provider when it supports closing.
func (c *Client) Close() error {
	if closer, ok := c.completer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

type emailResponse struct {
	IsPhishing          bool     `json:"is_phishing"`
	PhishingScore       float64  `json:"phishing_score"`
	RiskFactors         []string `json:"risk_factors"`
	Justification       string   `json:"justification"`
	SafeReplySuggestion string   `json:"safe_reply_suggestion"`
}

const classifyEmailPrompt = `You are an expert in identifying phishing emails. Analyze the provided email content, sender information, and URLs to determine if it is a phishing attempt.

Email Subject: %s
Sender Domain: %s
URLs: %s
Detection Sensitivity: %.2f (0 is most lenient, 1 is most aggressive)
Email Body:
%s

Consider suspicious URLs (shorteners, unusual domains, redirects), the legitimacy of the sender domain, and the email content (grammar errors, urgent requests, credential harvesting).

Respond with a JSON object containing:
- is_phishing: boolean (true if the email is likely a phishing attempt)
- phishing_score: number between 0 and 1 (likelihood of phishing)
- risk_factors: array of strings (factors contributing to the risk; empty if none)
- justification: string (brief explanation of the assessment)
- safe_reply_suggestion: string (a safe, professional reply avoiding sensitive information)

Respond only with the JSON object and nothing else.`

// ClassifyEmail classifies a whole message.
func (c *Client) ClassifyEmail(ctx context.Context, req *core.EmailAnalysisRequest) (*core.EmailAnalysisResult, error) {
	body := c.textProcessor.ProcessText(req.Body, c.maxBodySize)
	prompt := fmt.Sprintf(classifyEmailPrompt,
		req.Subject, req.SenderDomain, strings.Join(req.URLs, " "), req.Sensitivity, body)

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("email classification request failed: %w", err)
	}

	var resp emailResponse
	if err := Decode(text, &resp); err != nil {
		return nil, fmt.Errorf("email classification response: %w", err)
	}
	if resp.PhishingScore < 0 || resp.PhishingScore > 1 {
		return nil, fmt.Errorf("email classification response: phishing_score %f out of range", resp.PhishingScore)
	}

	return &core.EmailAnalysisResult{
		IsPhishing:          resp.IsPhishing,
		PhishingScore:       resp.PhishingScore,
		RiskFactors:         resp.RiskFactors,
		Justification:       resp.Justification,
		SafeReplySuggestion: resp.SafeReplySuggestion,
		AnalyzedAt:          time.Now(),
		ModelUsed:           c.completer.ModelName(),
	}, nil
}

type urlResponse struct {
	RiskScore     float64 `json:"risk_score"`
	Justification string  `json:"justification"`
}

const classifyURLPrompt = `You are an expert in cybersecurity, specializing in identifying phishing and malicious URLs.

Analyze the provided URL and determine its risk level based on factors such as domain reputation, URL structure, use of shorteners, and resemblance to known brands.

URL: %s

Respond with a JSON object containing:
- risk_score: number between 0 and 1 (0 is very low risk, 1 is very high risk)
- justification: string (why the URL is considered risky or safe)

Respond only with the JSON object and nothing else.`

// ClassifyURL scores a single URL.
func (c *Client) ClassifyURL(ctx context.Context, url string) (*core.URLAnalysisResult, error) {
	text, err := c.completer.Complete(ctx, fmt.Sprintf(classifyURLPrompt, url))
	if err != nil {
		return nil, fmt.Errorf("url classification request failed: %w", err)
	}

	var resp urlResponse
	if err := Decode(text, &resp); err != nil {
		return nil, fmt.Errorf("url classification response: %w", err)
	}
	if resp.RiskScore < 0 || resp.RiskScore > 1 {
		return nil, fmt.Errorf("url classification response: risk_score %f out of range", resp.RiskScore)
	}

	return &core.URLAnalysisResult{
		RiskScore:     resp.RiskScore,
		Justification: resp.Justification,
	}, nil
}

type replyResponse struct {
	SafeReply string `json:"safe_reply"`
}

const draftReplyPrompt = `You are an AI assistant designed to generate safe and professional email replies.

Based on the email content and any detected threat signals, suggest a reply that avoids potentially sensitive topics and minimizes the risk of engaging with phishing attempts.

Email Content:
%s

Threat Signals: %s
Tone: %s

Respond with a JSON object containing:
- safe_reply: string (the suggested reply)

Respond only with the JSON object and nothing else.`

// DraftReply suggests a safe reply.
func (c *Client) DraftReply(ctx context.Context, req *core.ReplyRequest) (*core.ReplyResult, error) {
	signals := req.ThreatSignals
	if signals == "" {
		signals = "No threat signals detected."
	}
	tone := req.Tone
	if tone == "" {
		tone = "professional"
	}
	content := c.textProcessor.ProcessText(req.EmailContent, c.maxBodySize)

	text, err := c.completer.Complete(ctx, fmt.Sprintf(draftReplyPrompt, content, signals, tone))
	if err != nil {
		return nil, fmt.Errorf("reply drafting request failed: %w", err)
	}

	var resp replyResponse
	if err := Decode(text, &resp); err != nil {
		return nil, fmt.Errorf("reply drafting response: %w", err)
	}
	if resp.SafeReply == "" {
		return nil, fmt.Errorf("reply drafting response: empty safe_reply")
	}

	return &core.ReplyResult{SafeReply: resp.SafeReply}, nil
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

const summarizePrompt = `You are an AI assistant that is an expert at summarizing emails.

Analyze the following email content and generate a concise summary of its key points, presented as a bulleted list.

Email Content:
%s

Respond with a JSON object containing:
- summary: string (the bullet-point summary)

Respond only with the JSON object and nothing else.`

// Summarize produces a concise summary of an email body.
func (c *Client) Summarize(ctx context.Context, emailBody string) (*core.SummaryResult, error) {
	body := c.textProcessor.ProcessText(emailBody, c.maxBodySize)

	text, err := c.completer.Complete(ctx, fmt.Sprintf(summarizePrompt, body))
	if err != nil {
		return nil, fmt.Errorf("summarization request failed: %w", err)
	}

	var resp summaryResponse
	if err := Decode(text, &resp); err != nil {
		return nil, fmt.Errorf("summarization response: %w", err)
	}
	if resp.Summary == "" {
		return nil, fmt.Errorf("summarization response: empty summary")
	}

	return &core.SummaryResult{Summary: resp.Summary}, nil
}

type briefingResponse struct {
	Briefing string `json:"briefing"`
}

const briefingPrompt = `You are a security awareness coach.

Generate a concise, informative briefing on current phishing trends%s.

Respond with a JSON object containing:
- briefing: string (the briefing text)

Respond only with the JSON object and nothing else.`

// SecurityBriefing generates a phishing-trends briefing.
func (c *Client) SecurityBriefing(ctx context.Context, recentRiskFactors []string) (*core.BriefingResult, error) {
	tailored := ""
	if len(recentRiskFactors) > 0 {
		tailored = fmt.Sprintf(", tailored to these risk factors recently seen in the user's inbox: %s",
			strings.Join(recentRiskFactors, "; "))
	}

	text, err := c.completer.Complete(ctx, fmt.Sprintf(briefingPrompt, tailored))
	if err != nil {
		return nil, fmt.Errorf("security briefing request failed: %w", err)
	}

	var resp briefingResponse
	if err := Decode(text, &resp); err != nil {
		return nil, fmt.Errorf("security briefing response: %w", err)
	}
	if resp.Briefing == "" {
		return nil, fmt.Errorf("security briefing response: empty briefing")
	}

	return &core.BriefingResult{Briefing: resp.Briefing}, nil
}
