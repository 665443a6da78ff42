package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/guardianmail/guardianmail/internal/adapters/smtpin"
	"github.com/guardianmail/guardianmail/internal/api"
	"github.com/guardianmail/guardianmail/internal/config"
	"github.com/guardianmail/guardianmail/internal/core"
	"github.com/guardianmail/guardianmail/internal/factory"
	"github.com/guardianmail/guardianmail/internal/htmlmark"
	"github.com/guardianmail/guardianmail/internal/logging"
	"github.com/guardianmail/guardianmail/internal/store"
	"github.com/guardianmail/guardianmail/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register model client
	if err := container.Provide(func(f *factory.LLMFactory) (core.ModelClient, error) {
		return f.CreateModelClient()
	}); err != nil {
		return nil, err
	}

	// Register risk cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.RiskCacheRepository, error) {
		return f.CreateRiskCache()
	}); err != nil {
		return nil, err
	}

	// Register mailbox store, exposed as both of its ports
	if err := container.Provide(func(f *factory.StoreFactory) (*store.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.Store) core.Mailbox { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.Store) core.SettingsStore { return s }); err != nil {
		return nil, err
	}

	// Register HTML link tooling
	if err := container.Provide(func() core.LinkExtractor { return htmlmark.NewExtractor() }); err != nil {
		return nil, err
	}
	if err := container.Provide(func() core.BodyAnnotator { return htmlmark.NewAnnotator() }); err != nil {
		return nil, err
	}

	// Register email analyzer
	if err := container.Provide(func(
		model core.ModelClient,
		cache core.RiskCacheRepository,
		extractor core.LinkExtractor,
		logger *zap.Logger,
		cacheFactory *factory.CacheFactory,
		cfg *config.Config,
	) (*core.Analyzer, error) {
		ttl, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		timeout, err := cfg.GetDuration("analysis.timeout")
		if err != nil {
			return nil, err
		}
		return core.NewAnalyzer(model, cache, extractor, logger, cacheFactory.IsCacheEnabled(), ttl, timeout), nil
	}); err != nil {
		return nil, err
	}

	// Register per-link risk resolver and body pipeline
	if err := container.Provide(func(
		model core.ModelClient,
		logger *zap.Logger,
		cfg *config.Config,
	) (*core.LinkResolver, error) {
		timeout, err := cfg.GetDuration("analysis.timeout")
		if err != nil {
			return nil, err
		}
		return core.NewLinkResolver(model, logger, timeout, cfg.GetInt("analysis.max_concurrency")), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewBodyPipeline); err != nil {
		return nil, err
	}

	// Register bulk classifier
	if err := container.Provide(func(
		mailbox core.Mailbox,
		settings core.SettingsStore,
		analyzer *core.Analyzer,
		cache core.RiskCacheRepository,
		logger *zap.Logger,
		cfg *config.Config,
	) *core.BulkClassifier {
		return core.NewBulkClassifier(mailbox, settings, analyzer, cache, logger, cfg.GetInt("analysis.max_concurrency"))
	}); err != nil {
		return nil, err
	}

	// Register HTTP server
	if err := container.Provide(api.NewServer); err != nil {
		return nil, err
	}

	// Register SMTP ingestion server
	if err := container.Provide(func(
		cfg *config.Config,
		mailbox core.Mailbox,
		logger *zap.Logger,
	) *smtpin.Server {
		smtpCfg := cfg.GetSMTP()
		return smtpin.NewServer(mailbox, logger, smtpCfg.ListenAddress, smtpCfg.Domain, int64(smtpCfg.MaxMessageBytes))
	}); err != nil {
		return nil, err
	}

	return container, nil
}
