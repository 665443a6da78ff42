package core

import (
	"strings"
	"time"
)

// EmailStatus is the lifecycle state of a message in the mailbox.
type EmailStatus string

const (
	StatusInbox EmailStatus = "inbox"
	StatusTrash EmailStatus = "trash"
)

// RiskLevel is the derived classification shown next to a message or link,
// distinct from the raw model score.
type RiskLevel string

const (
	RiskUnclassified RiskLevel = "unclassified"
	RiskPending      RiskLevel = "pending"
	RiskLow          RiskLevel = "low"
	RiskMedium       RiskLevel = "medium"
	RiskHigh         RiskLevel = "high"
	RiskUnknown      RiskLevel = "unknown"
)

// Resolved reports whether the level is a terminal classification, i.e. the
// analysis has settled and re-viewing the email must not trigger a new
// model call.
func (r RiskLevel) Resolved() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskUnknown:
		return true
	}
	return false
}

// Sender identifies the author of an email.
type Sender struct {
	Name    string
	Address string
}

// Domain returns the part of the sender address after the '@', or
// "unknown.com" when the address is not well formed.
func (s Sender) Domain() string {
	parts := strings.Split(s.Address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "unknown.com"
	}
	return strings.ToLower(parts[1])
}

// Email is a message in the mailbox. Risk starts out unclassified and only
// moves back to unclassified through an explicit invalidation.
type Email struct {
	ID      string
	From    Sender
	Subject string
	Body    string // HTML
	Snippet string
	Date    time.Time
	Unread  bool
	Starred bool
	Status  EmailStatus
	Risk    RiskLevel
}

// Sensitivity is the user-controlled threshold shifter on the 0-100 scale
// used by the settings UI. Higher sensitivity flags more emails as phishing
// for the same underlying score.
type Sensitivity int

const DefaultSensitivity Sensitivity = 50

// Normalized maps the stored 0-100 value into [0,1].
func (s Sensitivity) Normalized() float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 1
	}
	return float64(s) / 100
}

// FlagsScore derives the phishing verdict from a raw model score:
// flagged iff score > 1 - sensitivity. Monotonic in the sensitivity.
func (s Sensitivity) FlagsScore(score float64) bool {
	return score > 1-s.Normalized()
}

// EmailRiskLevel maps a phishing verdict and raw score to a level. The
// high/medium split is a fixed cutoff, independent of sensitivity.
func EmailRiskLevel(flagged bool, score float64) RiskLevel {
	if !flagged {
		return RiskLow
	}
	if score > 0.7 {
		return RiskHigh
	}
	return RiskMedium
}

// URLRiskLevel maps a raw URL risk score to a level.
func URLRiskLevel(score float64) RiskLevel {
	switch {
	case score > 0.7:
		return RiskHigh
	case score > 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// EmailAnalysisRequest is the input to a whole-message classification.
type EmailAnalysisRequest struct {
	Subject      string
	SenderDomain string
	Body         string
	URLs         []string
	Sensitivity  float64 // normalized to [0,1]
}

// EmailAnalysisResult is the model's classification of a whole message.
type EmailAnalysisResult struct {
	IsPhishing          bool
	PhishingScore       float64
	RiskFactors         []string
	Justification       string
	SafeReplySuggestion string
	AnalyzedAt          time.Time
	ModelUsed           string
}

// URLAnalysisResult is the model's classification of a single URL.
type URLAnalysisResult struct {
	RiskScore     float64
	Justification string
}

// LinkRisk is the settled classification of one extracted link.
type LinkRisk struct {
	URL           string
	Level         RiskLevel
	Score         float64
	Justification string
}

// ReplyRequest asks the model for a safe reply to an email, optionally
// steering it away from detected threat signals.
type ReplyRequest struct {
	EmailContent  string
	ThreatSignals string
	Tone          string
}

// ReplyResult carries the suggested reply text.
type ReplyResult struct {
	SafeReply string
}

// SummaryResult carries the generated summary of an email body.
type SummaryResult struct {
	Summary string
}

// BriefingResult carries a generated security briefing.
type BriefingResult struct {
	Briefing string
}

// RiskEntry is a cached per-email classification, valid only for the
// sensitivity epoch it was computed under.
type RiskEntry struct {
	EmailID       string
	Epoch         int64
	Level         RiskLevel
	Score         float64
	Justification string
	AnalyzedAt    time.Time
	ExpiresAt     time.Time
}

// UserSettings are the per-user knobs the analysis pipeline reads.
type UserSettings struct {
	Sensitivity Sensitivity
	ReplyTone   string
}
