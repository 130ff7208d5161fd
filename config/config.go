package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ai_news_writer/generator"
)

// Config 汇总生成服务和写作客户端的配置。
type Config struct {
	LLM        *LLMConfig `json:"llm,omitempty" yaml:"llm,omitempty"`
	ServerAddr string     `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	// APIBase is the generation service the writer talks to.
	APIBase  string `json:"api_base,omitempty" yaml:"api_base,omitempty"`
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`
	PhotoDB  string `json:"photo_db,omitempty" yaml:"photo_db,omitempty"`
	DraftDir string `json:"draft_dir,omitempty" yaml:"draft_dir,omitempty"`

	PollInterval   Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	RequestTimeout Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	JobTTL         Duration `json:"job_ttl,omitempty" yaml:"job_ttl,omitempty"`
	MaxConcurrent  int      `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	SanitizeMode   string   `json:"sanitize_mode,omitempty" yaml:"sanitize_mode,omitempty"`

	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	Debug    bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// LLMConfig 生成模块使用的模型配置。api_key 为空时从 api_key_env 指定的环境变量读取。
type LLMConfig struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Temperature 0 keeps the provider default.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Settings converts to what generator.NewLLM expects.
func (c *LLMConfig) Settings() *generator.LLMSettings {
	if c == nil {
		return nil
	}
	return &generator.LLMSettings{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
	}
}

// Duration accepts "2500ms"/"1m" strings or a number of milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(x))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(x) * time.Millisecond)
	case int:
		*d = Duration(time.Duration(x) * time.Millisecond)
	case nil:
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ServerAddr:     ":8080",
		APIBase:        "http://localhost:8080",
		PhotoDB:        "photos.db",
		DraftDir:       ".newswriter",
		PollInterval:   Duration(2500 * time.Millisecond),
		RequestTimeout: Duration(60 * time.Second),
		JobTTL:         Duration(60 * time.Minute),
		MaxConcurrent:  4,
		SanitizeMode:   "open",
		LogLevel:       "info",
	}
}

// Load reads path (JSON, or YAML by extension) over the defaults, then applies
// .env and environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &cfg)
		default:
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if p := getEnv("LLM_PROVIDER", ""); p != "" {
		if cfg.LLM == nil {
			cfg.LLM = &LLMConfig{}
		}
		cfg.LLM.Provider = p
	}
	if cfg.LLM != nil {
		cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
		cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = getEnv(apiKeyEnv(cfg.LLM), "")
		}
	}
	cfg.APIBase = getEnv("NEWSWRITER_API_BASE", cfg.APIBase)
	cfg.APIToken = getEnv("NEWSWRITER_API_TOKEN", cfg.APIToken)
	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)
	cfg.PhotoDB = getEnv("PHOTO_DB", cfg.PhotoDB)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
}

func apiKeyEnv(l *LLMConfig) string {
	if l.APIKeyEnv != "" {
		return l.APIKeyEnv
	}
	if l.Provider == "gemini" {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Validate checks values that would otherwise fail much later.
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	switch strings.ToLower(c.SanitizeMode) {
	case "", "open", "closed":
	default:
		return fmt.Errorf("sanitize_mode must be open or closed, got %q", c.SanitizeMode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
