package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dataloom/internal/ai"
)

const (
	dirName   = ".dataloom"
	envPrefix = "DATALOOM"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	// ContextTokenBudget overrides the model catalog context size for chat
	// prompts when positive.
	ContextTokenBudget int    `mapstructure:"context_token_budget" yaml:"context_token_budget"`
	ModelsCatalog      string `mapstructure:"models_catalog" yaml:"models_catalog"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Server
	ServerAddr    string `mapstructure:"server_addr" yaml:"server_addr"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	MaxSessions   int    `mapstructure:"max_sessions" yaml:"max_sessions"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`

	// Data
	SampleSize int    `mapstructure:"sample_size" yaml:"sample_size"`
	SampleSeed int64  `mapstructure:"sample_seed" yaml:"sample_seed"`
	LibraryDir string `mapstructure:"library_dir" yaml:"library_dir"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("default_provider", ai.ProviderOpenAI)
	v.SetDefault("default_model", "gpt-4o")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("context_token_budget", 0)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("max_sessions", 1000)
	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("log_level", "info")
	v.SetDefault("sample_size", 0)
	v.SetDefault("sample_seed", 42)
}

// Dir returns ~/.dataloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Existing variables win; missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.dataloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file (cfgFile or ~/.dataloom/config.yaml) > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// Provider keys are also read from their conventional names.
	_ = v.BindEnv("api_key", envPrefix+"_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openai_api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	defaults(v)

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.LibraryDir == "" {
		c.LibraryDir = filepath.Join(dir, "library")
	}
	return &c, nil
}

// Keys lists the settable configuration keys in sorted order.
func Keys() []string {
	m, _ := toMap(&Global{})
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toMap(c *Global) (map[string]any, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Set assigns value (YAML scalar syntax) to key.
func (c *Global) Set(key, value string) error {
	m, err := toMap(c)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
		parsed = value
	}
	m[key] = parsed
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	var out Global
	if err := yaml.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*c = out
	return nil
}

// Masked returns a copy safe for printing.
func (c *Global) Masked() Global {
	out := *c
	out.APIKey = mask(out.APIKey)
	out.OpenAIAPIKey = mask(out.OpenAIAPIKey)
	return out
}

func mask(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// RuntimeConfig maps the settings for provider onto ai.RuntimeConfig.
func (c *Global) RuntimeConfig(provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
	switch ai.NormalizeProvider(provider) {
	case ai.ProviderOpenAI:
		rc.APIKey = c.OpenAIAPIKey
	case ai.ProviderOllama:
		rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
	default:
		rc.APIKey = c.APIKey
	}
	return rc
}

// SessionTTL returns the idle session lifetime.
func (c *Global) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}
