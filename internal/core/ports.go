package core

import (
	"context"
	"errors"
)

// ErrStaleEpoch is returned by Mailbox.SetRisk when a classification result
// arrives for a sensitivity epoch that has since been invalidated.
var ErrStaleEpoch = errors.New("classification result from stale sensitivity epoch")

// ModelClient is the hosted model service behind the five analysis
// operations. Implementations validate the model's JSON against the typed
// result shape; schema violations surface on the error channel the same
// way transport failures do.
type ModelClient interface {
	// ClassifyEmail classifies a whole message as phishing or not.
	ClassifyEmail(ctx context.Context, req *EmailAnalysisRequest) (*EmailAnalysisResult, error)

	// ClassifyURL scores the risk of a single URL.
	ClassifyURL(ctx context.Context, url string) (*URLAnalysisResult, error)

	// DraftReply suggests a safe reply to an email.
	DraftReply(ctx context.Context, req *ReplyRequest) (*ReplyResult, error)

	// Summarize produces a concise summary of an email body.
	Summarize(ctx context.Context, emailBody string) (*SummaryResult, error)

	// SecurityBriefing generates a briefing on current phishing trends,
	// optionally tailored to recently observed risk factors.
	SecurityBriefing(ctx context.Context, recentRiskFactors []string) (*BriefingResult, error)
}

// RiskCacheRepository caches per-email classifications so repeated views do
// not re-trigger analysis. Entries are scoped to a sensitivity epoch.
type RiskCacheRepository interface {
	// Get retrieves the cached entry for an email under the given epoch.
	Get(ctx context.Context, emailID string, epoch int64) (*RiskEntry, error)

	// Set stores a cache entry.
	Set(ctx context.Context, entry *RiskEntry) error

	// Invalidate removes the entry for a single email.
	Invalidate(ctx context.Context, emailID string) error

	// InvalidateAll removes every entry.
	InvalidateAll(ctx context.Context) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}

// LinkExtractor produces the ordered sequence of anchor target URLs in an
// HTML body. It never renders or executes the input.
type LinkExtractor interface {
	ExtractLinks(body string) []string
}

// BodyAnnotator merges link classifications back into the original markup.
// Anchor hrefs and inner text are preserved byte for byte; only indicator
// markup is added, at most once per anchor occurrence.
type BodyAnnotator interface {
	Annotate(body string, risks map[string]LinkRisk) (string, error)
}

// Mailbox is the shared email collection. All risk-field writes go through
// SetRisk, which enforces the epoch guard.
type Mailbox interface {
	List(ctx context.Context, status EmailStatus) ([]*Email, error)
	Get(ctx context.Context, id string) (*Email, error)
	Save(ctx context.Context, email *Email) error
	SetRead(ctx context.Context, id string, read bool) error
	SetStarred(ctx context.Context, id string, starred bool) error
	SetStatus(ctx context.Context, id string, status EmailStatus) error
	Delete(ctx context.Context, id string) error

	// SelectUnclassified returns inbox emails whose risk field is
	// unclassified. Emails already pending are not returned, so
	// re-invoking the bulk classifier never duplicates in-flight work.
	SelectUnclassified(ctx context.Context) ([]*Email, error)

	// MarkPending transitions the given emails to pending synchronously.
	MarkPending(ctx context.Context, ids []string) error

	// SetRisk records a settled classification. It fails with
	// ErrStaleEpoch when epoch no longer matches the current sensitivity
	// epoch, so late results cannot overwrite a fresh invalidation.
	SetRisk(ctx context.Context, id string, level RiskLevel, epoch int64) error

	// ResetRisk moves every email back to unclassified.
	ResetRisk(ctx context.Context) error
}

// SettingsStore holds the per-user settings and the process-wide
// sensitivity epoch.
type SettingsStore interface {
	Settings(ctx context.Context) (*UserSettings, error)
	UpdateSettings(ctx context.Context, s *UserSettings) error

	// Sensitivity returns the current value together with the epoch it
	// belongs to. Every in-flight classification carries the epoch it
	// started under.
	Sensitivity(ctx context.Context) (Sensitivity, int64, error)

	// SetSensitivity stores a new value and bumps the epoch, returning
	// the new epoch.
	SetSensitivity(ctx context.Context, s Sensitivity) (int64, error)
}
