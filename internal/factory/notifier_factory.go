package factory

import (
	"github.com/mikey/contact-guard/internal/adapters/notify"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/utils"
	"go.uber.org/zap"
)

// NotifierFactory creates the owner notifier
type NotifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *NotifierFactory {
	return &NotifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateNotifier returns an SMTP notifier when enabled, otherwise one that
// only logs accepted messages
func (f *NotifierFactory) CreateNotifier() (core.Notifier, error) {
	notifyCfg := f.cfg.GetNotify()
	if !notifyCfg.Enabled {
		return notify.NewLogNotifier(f.logger), nil
	}
	return notify.NewSMTPNotifier(notifyCfg, f.logger, f.textProcessor)
}
