package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BulkClassifier runs the per-email analyzer across every unclassified
// inbox message. Selected emails are marked pending synchronously before
// any request is launched, so the in-flight state is visible immediately
// and a re-invocation never duplicates work.
type BulkClassifier struct {
	mailbox        Mailbox
	settings       SettingsStore
	analyzer       *Analyzer
	cache          RiskCacheRepository
	logger         *zap.Logger
	maxConcurrency int
}

// NewBulkClassifier creates a new bulk classifier.
func NewBulkClassifier(
	mailbox Mailbox,
	settings SettingsStore,
	analyzer *Analyzer,
	cache RiskCacheRepository,
	logger *zap.Logger,
	maxConcurrency int,
) *BulkClassifier {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &BulkClassifier{
		mailbox:        mailbox,
		settings:       settings,
		analyzer:       analyzer,
		cache:          cache,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Run classifies every unclassified inbox email concurrently and returns
// the number of emails launched. Each completion updates only its own
// email; a failure settles that email as unknown. Results carrying a stale
// sensitivity epoch are dropped.
func (b *BulkClassifier) Run(ctx context.Context) (int, error) {
	sensitivity, epoch, err := b.settings.Sensitivity(ctx)
	if err != nil {
		return 0, err
	}

	emails, err := b.mailbox.SelectUnclassified(ctx)
	if err != nil {
		return 0, err
	}
	if len(emails) == 0 {
		return 0, nil
	}

	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	if err := b.mailbox.MarkPending(ctx, ids); err != nil {
		return 0, err
	}

	b.logger.Info("bulk classification started",
		zap.Int("emails", len(emails)),
		zap.Int("sensitivity", int(sensitivity)),
		zap.Int64("epoch", epoch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrency)

	for _, email := range emails {
		email := email
		g.Go(func() error {
			level, _, cerr := b.analyzer.ClassifyEmail(gctx, email, sensitivity, epoch)
			if cerr != nil {
				level = RiskUnknown
			}
			if err := b.mailbox.SetRisk(gctx, email.ID, level, epoch); err != nil {
				if errors.Is(err, ErrStaleEpoch) {
					b.logger.Debug("dropping stale classification result",
						zap.String("email_id", email.ID),
						zap.Int64("epoch", epoch))
					return nil
				}
				b.logger.Error("failed to record classification",
					zap.String("email_id", email.ID),
					zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()
	return len(emails), nil
}

// Reclassify invalidates every cached classification back to unclassified
// and runs a fresh bulk pass. Called after the sensitivity setting changed;
// the caller is expected to have bumped the epoch already via
// SettingsStore.SetSensitivity, so late results from the previous epoch are
// rejected by the mailbox.
func (b *BulkClassifier) Reclassify(ctx context.Context) (int, error) {
	if err := b.cache.InvalidateAll(ctx); err != nil {
		return 0, err
	}
	if err := b.mailbox.ResetRisk(ctx); err != nil {
		return 0, err
	}
	return b.Run(ctx)
}
