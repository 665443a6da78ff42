package core

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LinkResolver fans out one URL classification request per unique link and
// joins on all of them before the annotated body is rendered. Individual
// failures settle that one link as unknown without disturbing siblings.
type LinkResolver struct {
	model          ModelClient
	logger         *zap.Logger
	timeout        time.Duration
	maxConcurrency int
}

// NewLinkResolver creates a new link resolver.
func NewLinkResolver(model ModelClient, logger *zap.Logger, timeout time.Duration, maxConcurrency int) *LinkResolver {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &LinkResolver{
		model:          model,
		logger:         logger,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
	}
}

// Resolve classifies every unique URL and returns the settled results keyed
// by URL. It returns only after all requests have settled.
func (r *LinkResolver) Resolve(ctx context.Context, urls []string) map[string]LinkRisk {
	unique := uniqueStrings(urls)
	risks := make(map[string]LinkRisk, len(unique))
	if len(unique) == 0 {
		return risks
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)

	for _, link := range unique {
		link := link
		g.Go(func() error {
			risk := r.resolveOne(gctx, link)
			mu.Lock()
			risks[link] = risk
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures are captured per link.
	_ = g.Wait()
	return risks
}

func (r *LinkResolver) resolveOne(ctx context.Context, link string) LinkRisk {
	// Reject malformed URLs before any network call.
	if u, err := url.Parse(link); err != nil || u.Scheme == "" {
		return LinkRisk{
			URL:           link,
			Level:         RiskUnknown,
			Justification: "The link target is not a valid URL.",
		}
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.model.ClassifyURL(callCtx, link)
	if err != nil {
		r.logger.Warn("url classification failed",
			zap.String("url", link),
			zap.Error(err))
		return LinkRisk{
			URL:           link,
			Level:         RiskUnknown,
			Justification: "Risk could not be determined for this link.",
		}
	}

	return LinkRisk{
		URL:           link,
		Level:         URLRiskLevel(result.RiskScore),
		Score:         result.RiskScore,
		Justification: result.Justification,
	}
}

// BodyPipeline ties link extraction, per-link resolution and annotation
// together for a single viewed email.
type BodyPipeline struct {
	extractor LinkExtractor
	resolver  *LinkResolver
	annotator BodyAnnotator
	logger    *zap.Logger
}

// NewBodyPipeline creates a new body pipeline.
func NewBodyPipeline(extractor LinkExtractor, resolver *LinkResolver, annotator BodyAnnotator, logger *zap.Logger) *BodyPipeline {
	return &BodyPipeline{
		extractor: extractor,
		resolver:  resolver,
		annotator: annotator,
		logger:    logger,
	}
}

// AnnotatedBody returns the email body with a risk indicator beside every
// link, plus the per-link results. A body without links short-circuits:
// it is returned unchanged and no requests are issued.
func (p *BodyPipeline) AnnotatedBody(ctx context.Context, body string) (string, map[string]LinkRisk, error) {
	links := p.extractor.ExtractLinks(body)
	if len(links) == 0 {
		return body, map[string]LinkRisk{}, nil
	}

	risks := p.resolver.Resolve(ctx, links)

	annotated, err := p.annotator.Annotate(body, risks)
	if err != nil {
		p.logger.Error("body annotation failed", zap.Error(err))
		return body, risks, err
	}
	return annotated, risks, nil
}
