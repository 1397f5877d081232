package factory

import (
	"fmt"

	"github.com/mikey/contact-guard/internal/adapters/web"
	"github.com/mikey/contact-guard/internal/config"
	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/portfolio"
	"github.com/mikey/contact-guard/internal/ports"
	"go.uber.org/zap"
)

// ServerFactory creates the HTTP front end
type ServerFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.ContactService
	catalog *portfolio.Catalog
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.Config, logger *zap.Logger, service *core.ContactService, catalog *portfolio.Catalog) *ServerFactory {
	return &ServerFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		catalog: catalog,
	}
}

// CreateServer creates the contact server from the server configuration
func (f *ServerFactory) CreateServer() (ports.ContactServer, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	return web.NewServer(serverCfg, web.Content{
		Catalog: f.catalog,
		CVPath:  f.cfg.GetPortfolio().CVPath,
	}, f.service, f.logger), nil
}
