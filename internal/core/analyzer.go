package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Analyzer is the per-email risk aggregator: one classification request per
// message, with the cached result reused on repeated views until the
// sensitivity epoch moves.
type Analyzer struct {
	model        ModelClient
	cache        RiskCacheRepository
	extractor    LinkExtractor
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	timeout      time.Duration
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	model ModelClient,
	cache RiskCacheRepository,
	extractor LinkExtractor,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	timeout time.Duration,
) *Analyzer {
	return &Analyzer{
		model:        model,
		cache:        cache,
		extractor:    extractor,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		timeout:      timeout,
	}
}

// ClassifyEmail resolves the risk level for one email under the given
// sensitivity. Failures are never propagated to the caller as errors on the
// classification path: a failed or timed-out request settles as
// RiskUnknown, and the error is returned only so callers can log it. No
// automatic retry happens here.
func (a *Analyzer) ClassifyEmail(ctx context.Context, email *Email, sensitivity Sensitivity, epoch int64) (RiskLevel, *EmailAnalysisResult, error) {
	if a.cacheEnabled {
		if entry, err := a.cache.Get(ctx, email.ID, epoch); err == nil && entry.Level.Resolved() {
			a.logger.Debug("risk cache hit",
				zap.String("email_id", email.ID),
				zap.String("level", string(entry.Level)))
			return entry.Level, nil, nil
		}
	}

	req := &EmailAnalysisRequest{
		Subject:      email.Subject,
		SenderDomain: email.From.Domain(),
		Body:         email.Body,
		URLs:         uniqueStrings(a.extractor.ExtractLinks(email.Body)),
		Sensitivity:  sensitivity.Normalized(),
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.model.ClassifyEmail(callCtx, req)
	if err != nil {
		a.logger.Warn("email classification failed",
			zap.String("email_id", email.ID),
			zap.Error(err))
		return RiskUnknown, nil, err
	}

	flagged := sensitivity.FlagsScore(result.PhishingScore)
	level := EmailRiskLevel(flagged, result.PhishingScore)

	if a.cacheEnabled {
		entry := &RiskEntry{
			EmailID:       email.ID,
			Epoch:         epoch,
			Level:         level,
			Score:         result.PhishingScore,
			Justification: result.Justification,
			AnalyzedAt:    time.Now(),
			ExpiresAt:     time.Now().Add(a.cacheTTL),
		}
		if err := a.cache.Set(ctx, entry); err != nil {
			a.logger.Error("failed to update risk cache", zap.Error(err))
		}
	}

	return level, result, nil
}

// Invalidate drops the cached classification for one email so the next
// view re-triggers analysis.
func (a *Analyzer) Invalidate(ctx context.Context, emailID string) error {
	if !a.cacheEnabled {
		return nil
	}
	return a.cache.Invalidate(ctx, emailID)
}

// uniqueStrings preserves first-occurrence order while dropping duplicates.
func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
