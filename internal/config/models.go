package config

import (
	"fmt"
	"time"
)

// PolicyConfig holds the cooldown windows
type PolicyConfig struct {
	EmailCooldown time.Duration
	IPCooldown    time.Duration
	MinElapsed    time.Duration
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	ListenAddress     string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	MaxBodyKB         int
	AllowedOrigins    []string
	TrustForwardedFor bool
}

// StoreConfig represents the submission log configuration
type StoreConfig struct {
	Type        string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
	LockTimeout time.Duration
}

// NotifyConfig represents the owner notification configuration
type NotifyConfig struct {
	Enabled           bool
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPTLS           bool
	SMTPStartTLS      bool
	From              string
	To                string
	SubjectPrefix     string
	BlockSpam         bool
	SpamSubjectPrefix string
	SpamHeader        string
	ScoreHeader       string
	ReasonHeader      string
}

// ScreeningConfig represents the content screening configuration
type ScreeningConfig struct {
	Enabled        bool
	Threshold      float64
	TrustedDomains []string
}

// PortfolioConfig points at the portfolio content and CV file
type PortfolioConfig struct {
	ContentPath string
	CVPath      string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetPolicy returns the cooldown policy configuration
func (c *Config) GetPolicy() (PolicyConfig, error) {
	var p PolicyConfig
	var err error

	if p.EmailCooldown, err = c.GetDuration("policy.email_cooldown"); err != nil {
		return p, err
	}
	if p.IPCooldown, err = c.GetDuration("policy.ip_cooldown"); err != nil {
		return p, err
	}
	if p.MinElapsed, err = c.GetDuration("policy.min_elapsed"); err != nil {
		return p, err
	}
	if p.EmailCooldown < 0 || p.IPCooldown < 0 || p.MinElapsed < 0 {
		return p, fmt.Errorf("cooldown policy durations must not be negative")
	}
	return p, nil
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	s := ServerConfig{
		ListenAddress:     c.GetString("server.listen_address"),
		MaxBodyKB:         c.GetInt("server.max_body_kb"),
		AllowedOrigins:    c.GetStringSlice("server.allowed_origins"),
		TrustForwardedFor: c.GetBool("server.trust_forwarded_for"),
	}
	var err error
	if s.ReadHeaderTimeout, err = c.GetDuration("server.read_header_timeout"); err != nil {
		return s, err
	}
	if s.RequestTimeout, err = c.GetDuration("server.request_timeout"); err != nil {
		return s, err
	}
	return s, nil
}

// GetStore returns the submission log configuration
func (c *Config) GetStore() (StoreConfig, error) {
	s := StoreConfig{
		Type:        c.GetString("store.type"),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
		PostgresDSN: c.GetString("store.postgres_dsn"),
	}
	var err error
	if s.LockTimeout, err = c.GetDuration("store.lock_timeout"); err != nil {
		return s, err
	}
	return s, nil
}

// GetNotify returns the owner notification configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Enabled:           c.GetBool("notify.enabled"),
		SMTPHost:          c.GetString("notify.smtp_host"),
		SMTPPort:          c.GetInt("notify.smtp_port"),
		SMTPUser:          c.GetString("notify.smtp_user"),
		SMTPPass:          c.GetString("notify.smtp_pass"),
		SMTPTLS:           c.GetBool("notify.smtp_tls"),
		SMTPStartTLS:      c.GetBool("notify.smtp_starttls"),
		From:              c.GetString("notify.from"),
		To:                c.GetString("notify.to"),
		SubjectPrefix:     c.GetString("notify.subject_prefix"),
		BlockSpam:         c.GetBool("notify.block_spam"),
		SpamSubjectPrefix: c.GetString("notify.spam_subject_prefix"),
		SpamHeader:        c.GetString("notify.headers.spam"),
		ScoreHeader:       c.GetString("notify.headers.score"),
		ReasonHeader:      c.GetString("notify.headers.reason"),
	}
}

// GetScreening returns the content screening configuration
func (c *Config) GetScreening() ScreeningConfig {
	return ScreeningConfig{
		Enabled:        c.GetBool("screening.enabled"),
		Threshold:      c.GetFloat64("screening.threshold"),
		TrustedDomains: c.GetStringSlice("screening.trusted_domains"),
	}
}

// GetPortfolio returns the portfolio content configuration
func (c *Config) GetPortfolio() PortfolioConfig {
	return PortfolioConfig{
		ContentPath: c.GetString("portfolio.content_path"),
		CVPath:      c.GetString("portfolio.cv_path"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
