package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker tells whether a sender's domain is trusted
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized trusted sender domains", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// IsWhitelisted checks if the sender's domain is in the whitelist
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	at := strings.LastIndexByte(from, '@')
	if at < 0 || at == len(from)-1 {
		return false
	}
	domain := strings.ToLower(from[at+1:])

	for _, whitelisted := range c.domains {
		if whitelisted == domain {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}
