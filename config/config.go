package config

import (
	"os"
	"strconv"
	"time"

	"mailassist/internal/llm"
	"mailassist/pkg/circuitbreaker"
	"mailassist/pkg/config"
	"mailassist/pkg/otel"
)

// ProviderConfig 邮箱服务配置
type ProviderConfig struct {
	// Kind 为 "rest" 或 "imap"
	Kind    string        `yaml:"kind"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// ServiceToken 供 worker 使用；HTTP 请求使用调用方的 Bearer token
	ServiceToken string     `yaml:"service_token"`
	IMAP         IMAPConfig `yaml:"imap"`
}

// IMAPConfig IMAP 连接配置
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`
}

// LLMConfig 模型服务配置，每个操作的参数在启动时固定
type LLMConfig struct {
	BaseURL    string                `yaml:"base_url"`
	APIKey     string                `yaml:"api_key"`
	Timeout    time.Duration         `yaml:"timeout"`
	Operations map[string]llm.Params `yaml:"operations"`
	Breaker    circuitbreaker.Config `yaml:"breaker"`
}

// ClassifierConfig 自动归档配置
type ClassifierConfig struct {
	SortLimit     int           `yaml:"sort_limit"`
	QuotePrefixes []string      `yaml:"quote_prefixes"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
}

type Config struct {
	Server     config.ServerConfig `yaml:"server"`
	Log        config.LogConfig    `yaml:"log"`
	DB         config.DBConfig     `yaml:"db"`
	Redis      config.RedisConfig  `yaml:"redis"`
	MQ         config.MQConfig     `yaml:"mq"`
	Otel       otel.Config         `yaml:"otel"`
	Provider   ProviderConfig      `yaml:"provider"`
	LLM        LLMConfig           `yaml:"llm"`
	Classifier ClassifierConfig    `yaml:"classifier"`
}

// Load 使用统一配置中心加载配置，环境变量覆盖优先级最高
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	var cfg Config
	if err := config.Decode(env, configDir, &cfg); err != nil {
		return nil, err
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideLogFromEnv(&cfg.Log)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	overrideFromEnv(&cfg)

	cfg.applyDefaults()
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("PROVIDER_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if token := os.Getenv("PROVIDER_SERVICE_TOKEN"); token != "" {
		cfg.Provider.ServiceToken = token
	}
	if limit := os.Getenv("EMAIL_SORT_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.Classifier.SortLimit = n
		}
	}
}

// DefaultOperations 每个操作的默认模型参数
func DefaultOperations() map[string]llm.Params {
	return map[string]llm.Params{
		"event_suggestion":   {Model: "qwen3", Temperature: 0.12, MaxTokens: 5000},
		"event_verification": {Model: "mistral3", Temperature: 0.13, MaxTokens: 5000},
		"summary":            {Model: "qwen3", Temperature: 0.3, MaxTokens: 2000},
		"reply":              {Model: "qwen3", Temperature: 0.3, MaxTokens: 1500},
		"classify":           {Model: "qwen3", Temperature: 0.0, MaxTokens: 500},
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8000"
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = "rest"
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	ops := DefaultOperations()
	for name, params := range c.LLM.Operations {
		ops[name] = params
	}
	c.LLM.Operations = ops
	if c.Classifier.SortLimit <= 0 {
		c.Classifier.SortLimit = 10
	}
	if c.Classifier.LockTTL <= 0 {
		c.Classifier.LockTTL = 10 * time.Minute
	}
	if c.Classifier.DedupTTL <= 0 {
		c.Classifier.DedupTTL = 7 * 24 * time.Hour
	}
}
