package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/sethvargo/go-envconfig"
)

// Config aggregates every tunable of the service.
type Config struct {
	Server ServerConfig
	Auth   AuthConfig
	Chat   ChatConfig
	AI     AIConfig

	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT, default=8080"`
}

// Addr normalises PORT into a listen address; ":8080" and "127.0.0.1:8080"
// pass through untouched.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// AuthConfig drives token issuance and session lifetime.
type AuthConfig struct {
	JWTSecret   string        `env:"JWT_SECRET, default=dev-only-insecure-secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL, default=24h"`
	SweepPeriod time.Duration `env:"SESSION_SWEEP_PERIOD, default=10m"`
}

// ChatConfig drives the conversation engine and dispatcher.
type ChatConfig struct {
	PersonaFile     string        `env:"PERSONA_FILE"`
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT, default=20s"`
}

// AIConfig describes the Ark chat-model backend for the llm strategy.
type AIConfig struct {
	APIKey    string  `env:"ARK_API_KEY"`
	AccessKey string  `env:"ARK_ACCESS_KEY"`
	SecretKey string  `env:"ARK_SECRET_KEY"`
	Model     string  `env:"ARK_MODEL"`
	BaseURL   string  `env:"ARK_BASE_URL, default=https://ark.cn-beijing.volces.com/api/v3"`
	Region    string  `env:"ARK_REGION, default=cn-beijing"`
	MaxTokens int     `env:"ARK_MAX_TOKENS, default=1024"`
	TopP      float64 `env:"ARK_TOP_P, default=0.9"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}

// Enabled reports whether the required model credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates an Ark-backed eino chat model from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL plus ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	maxTokens := c.MaxTokens
	topP := float32(c.TopP)

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		MaxTokens: &maxTokens,
		TopP:      &topP,
	})
}
