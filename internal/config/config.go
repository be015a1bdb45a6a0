// Package config loads runtime configuration from defaults, an optional YAML
// file and REVISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/abhisek/revise/internal/llm"
)

// EnvPrefix is prepended to every environment override, e.g.
// REVISE_SUBMISSION_URL for submission.url.
const EnvPrefix = "REVISE"

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Evaluator  EvaluatorConfig  `mapstructure:"evaluator"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Server     ServerConfig     `mapstructure:"server"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode" validate:"oneof=dev prod"`
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// StoreConfig locates the SQLite database. An empty path means the default
// XDG data location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// EvaluatorConfig selects how long and open answers are graded.
type EvaluatorConfig struct {
	Mode        string        `mapstructure:"mode" validate:"oneof=llm http none"`
	URL         string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	BypassCache bool          `mapstructure:"bypass_cache"`
}

// ProviderConfig is the per-vendor part of the llm section.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// LLMConfig configures the LLM grader. Provider may be left empty, in which
// case the vendors' own API key variables are checked.
type LLMConfig struct {
	Provider    string         `mapstructure:"provider" validate:"omitempty,oneof=anthropic openai gemini openrouter mock"`
	Anthropic   ProviderConfig `mapstructure:"anthropic"`
	OpenAI      ProviderConfig `mapstructure:"openai"`
	Gemini      ProviderConfig `mapstructure:"gemini"`
	OpenRouter  ProviderConfig `mapstructure:"openrouter"`
	Retry       RetryConfig    `mapstructure:"retry"`
	Timeout     time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	MaxTokens   int            `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature float64        `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// SubmissionConfig selects where finished batches go.
type SubmissionConfig struct {
	Mode    string        `mapstructure:"mode" validate:"oneof=http store"`
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	OwnerID string        `mapstructure:"owner_id" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	TokenURL     string   `mapstructure:"token_url" validate:"omitempty,url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// ErrNoProvider is returned by LLMConfig.Resolve when no provider is set and
// none could be discovered from the environment.
var ErrNoProvider = errors.New("no LLM provider configured")

func setDefaults(v *viper.Viper) {
	d := llm.DefaultConfig()

	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")

	v.SetDefault("store.path", "")

	v.SetDefault("evaluator.mode", "llm")
	v.SetDefault("evaluator.url", "")
	v.SetDefault("evaluator.timeout", 30*time.Second)
	v.SetDefault("evaluator.bypass_cache", false)

	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", d.Anthropic.Model)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", d.OpenAI.Model)
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", d.Gemini.Model)
	v.SetDefault("llm.openrouter.api_key", "")
	v.SetDefault("llm.openrouter.model", d.OpenRouter.Model)
	v.SetDefault("llm.openrouter.base_url", "")
	v.SetDefault("llm.retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("llm.timeout", d.Timeout)
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("submission.mode", "store")
	v.SetDefault("submission.url", "")
	v.SetDefault("submission.owner_id", "local")
	v.SetDefault("submission.timeout", 15*time.Second)
	v.SetDefault("submission.token_url", "")
	v.SetDefault("submission.client_id", "")
	v.SetDefault("submission.client_secret", "")
	v.SetDefault("submission.scopes", []string{})

	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Evaluator.Mode == "http" && c.Evaluator.URL == "" {
		return errors.New("invalid config: evaluator.url is required when evaluator.mode is http")
	}
	if c.Submission.Mode == "http" && c.Submission.URL == "" {
		return errors.New("invalid config: submission.url is required when submission.mode is http")
	}
	if c.Submission.ClientID != "" && c.Submission.TokenURL == "" {
		return errors.New("invalid config: submission.token_url is required with submission.client_id")
	}
	return nil
}

// Resolve maps the llm section onto llm.Config. With no explicit provider
// the standard vendor key variables are checked; if none is set it returns
// ErrNoProvider.
func (c LLMConfig) Resolve() (llm.Config, error) {
	out := llm.DefaultConfig()

	if c.Provider == "" {
		found, ok := llm.DiscoverConfig()
		if !ok {
			return llm.Config{}, ErrNoProvider
		}
		out.Provider = found.Provider
		out.Anthropic.APIKey = found.Anthropic.APIKey
		out.OpenAI.APIKey = found.OpenAI.APIKey
		out.Gemini.APIKey = found.Gemini.APIKey
		out.OpenRouter.APIKey = found.OpenRouter.APIKey
	} else {
		out.Provider = c.Provider
		out.Anthropic.APIKey = c.Anthropic.APIKey
		out.OpenAI.APIKey = c.OpenAI.APIKey
		out.Gemini.APIKey = c.Gemini.APIKey
		out.OpenRouter.APIKey = c.OpenRouter.APIKey
	}

	if c.Anthropic.Model != "" {
		out.Anthropic.Model = c.Anthropic.Model
	}
	if c.OpenAI.Model != "" {
		out.OpenAI.Model = c.OpenAI.Model
	}
	out.Anthropic.BaseURL = c.Anthropic.BaseURL
	out.OpenAI.BaseURL = c.OpenAI.BaseURL
	if c.Gemini.Model != "" {
		out.Gemini.Model = c.Gemini.Model
	}
	if c.OpenRouter.Model != "" {
		out.OpenRouter.Model = c.OpenRouter.Model
	}
	out.OpenRouter.BaseURL = c.OpenRouter.BaseURL

	if c.Retry.MaxAttempts > 0 {
		out.Retry = llm.RetryConfig{
			MaxAttempts: c.Retry.MaxAttempts,
			InitialWait: c.Retry.InitialWait,
			MaxWait:     c.Retry.MaxWait,
			Multiplier:  c.Retry.Multiplier,
		}
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	return out, nil
}
