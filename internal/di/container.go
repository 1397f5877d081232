package di

import (
	"context"
	"errors"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/factory"
	"github.com/mikey/contact-guard/internal/logging"
	"github.com/mikey/contact-guard/internal/portfolio"
	"github.com/mikey/contact-guard/internal/ports"
	"github.com/mikey/contact-guard/internal/utils"
	"github.com/mikey/contact-guard/internal/whitelist"
	"github.com/mikey/contact-guard/internal/worker"
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

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register factories used only by the server
	if err := container.Provide(factory.NewScreenerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewServerFactory); err != nil {
		return nil, err
	}

	// Register content screening, nil when disabled
	if err := container.Provide(func(cfg *config.Config, f *factory.ScreenerFactory, logger *zap.Logger) (*core.Screening, error) {
		screeningCfg := cfg.GetScreening()
		if !screeningCfg.Enabled {
			logger.Info("Content screening disabled")
			return nil, nil
		}

		screener, err := f.CreateScreener(context.Background())
		if err != nil {
			return nil, err
		}
		return &core.Screening{
			Screener:  screener,
			Trusted:   whitelist.NewChecker(screeningCfg.TrustedDomains, logger),
			Threshold: screeningCfg.Threshold,
		}, nil
	}); err != nil {
		return nil, err
	}

	// Register notifier
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}

	// Register follow-up worker pool
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*worker.Pool, error) {
		return worker.NewPool(cfg.GetInt("workers.pool_size"), cfg.GetInt("workers.queue_size"), logger)
	}); err != nil {
		return nil, err
	}

	// Register contact service
	if err := container.Provide(func(
		guard *core.Guard,
		log core.SubmissionLog,
		screening *core.Screening,
		notifier core.Notifier,
		pool *worker.Pool,
		logger *zap.Logger,
	) *core.ContactService {
		return core.NewContactService(guard, log, screening, notifier, pool, logger)
	}); err != nil {
		return nil, err
	}

	// Register portfolio content, empty when the file is missing
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*portfolio.Catalog, error) {
		path := cfg.GetPortfolio().ContentPath
		catalog, err := portfolio.LoadCatalog(path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Portfolio content not found, serving empty catalog", zap.String("path", path))
			return &portfolio.Catalog{}, nil
		}
		return catalog, err
	}); err != nil {
		return nil, err
	}

	// Register contact server
	if err := container.Provide(func(f *factory.ServerFactory) (ports.ContactServer, error) {
		return f.CreateServer()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the submission log, the policy and the guard. Both
// containers share it.
func provideCore(container *dig.Container) error {
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}

	// Register submission log
	if err := container.Provide(func(f *factory.StoreFactory) (core.SubmissionLog, error) {
		return f.CreateSubmissionLog(context.Background())
	}); err != nil {
		return err
	}

	// Register cooldown policy
	if err := container.Provide(func(cfg *config.Config) (core.CooldownPolicy, error) {
		p, err := cfg.GetPolicy()
		if err != nil {
			return core.CooldownPolicy{}, err
		}
		return core.CooldownPolicy{
			EmailCooldown: p.EmailCooldown,
			IPCooldown:    p.IPCooldown,
			MinElapsed:    p.MinElapsed,
		}, nil
	}); err != nil {
		return err
	}

	// Register guard
	return container.Provide(core.NewGuard)
}
