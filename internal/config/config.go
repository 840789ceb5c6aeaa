package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// PlaceholderAPIKey is the value shipped in sample env files. It never reaches the network.
const PlaceholderAPIKey = "your_gemini_api_key_here"

const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// Config aggregates every configuration group of the service.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
	Log    LogConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.AI.APIKey == "" {
		// The original widget read the key under its bundler name.
		cfg.AI.APIKey = strings.TrimSpace(os.Getenv("VITE_GEMINI_API_KEY"))
	}
	cfg.AI.APIKey = strings.TrimSpace(cfg.AI.APIKey)
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case ProviderGemini, ProviderArk:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("invalid AI_REQUEST_TIMEOUT value %s", c.AI.Timeout)
	}
	if c.Chat.MaxSessions < 1 {
		return fmt.Errorf("invalid CHAT_MAX_SESSIONS value %d", c.Chat.MaxSessions)
	}
	return nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	Addr           string
}

// normalizeAddr turns the PORT value into a listen address.
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are accepted as-is.
		return port, nil
	}

	return ":" + port, nil
}

// AIConfig describes the remote generative model behind the chat widget.
type AIConfig struct {
	Provider        string        `env:"AI_PROVIDER" envDefault:"gemini"`
	APIKey          string        `env:"GEMINI_API_KEY"`
	Model           string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	Endpoint        string        `env:"GEMINI_ENDPOINT" envDefault:"https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent"`
	Temperature     float32       `env:"GEMINI_TEMPERATURE" envDefault:"0.7"`
	TopK            int           `env:"GEMINI_TOP_K" envDefault:"40"`
	TopP            float32       `env:"GEMINI_TOP_P" envDefault:"0.95"`
	MaxOutputTokens int           `env:"GEMINI_MAX_OUTPUT_TOKENS" envDefault:"1024"`
	SafetyThreshold string        `env:"GEMINI_SAFETY_THRESHOLD" envDefault:"BLOCK_MEDIUM_AND_ABOVE"`
	Timeout         time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"15s"`
	BreakerFailures uint32        `env:"AI_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"AI_BREAKER_COOLDOWN" envDefault:"30s"`
	Ark             ArkConfig
}

// ArkConfig keeps the Volcengine Ark credentials for the alternate provider.
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// HasUsableKey reports whether the Gemini key is present and not the placeholder.
func (c AIConfig) HasUsableKey() bool {
	key := strings.TrimSpace(c.APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// Enabled reports whether a remote call may be attempted at all.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		a := c.Ark
		return a.Model != "" && (a.APIKey != "" || (a.AccessKey != "" && a.SecretKey != ""))
	default:
		return c.HasUsableKey()
	}
}

// NewArkChatModel builds the Ark chat model used when AI_PROVIDER=ark.
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	temperature := c.Temperature
	topP := c.TopP
	maxTokens := c.MaxOutputTokens

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return chatModel, nil
}

// ChatConfig controls the widget session registry.
type ChatConfig struct {
	MaxSessions    int    `env:"CHAT_MAX_SESSIONS" envDefault:"1024"`
	RulesPath      string `env:"CHAT_FALLBACK_RULES"`
	DefaultPersona string `env:"CHAT_DEFAULT_PERSONA" envDefault:"pixelforge-assistant"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	File   string `env:"LOG_FILE"`
}
