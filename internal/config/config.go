package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	IsProduction bool   `yaml:"isProduction"`
}

type ScraperConfig struct {
	UserAgent       string `yaml:"userAgent"`
	TimeoutMs       int    `yaml:"timeoutMs"`
	StealthProxyURL string `yaml:"stealthProxyURL"`
	MaxConcurrency  int    `yaml:"maxConcurrency"`
	TokenCostLimit  int    `yaml:"tokenCostLimit"`
	IndexMaxAgeMs   int    `yaml:"indexMaxAgeMs"`
	IndexTTLHours   int    `yaml:"indexTTLHours"`
}

type CrawlerConfig struct {
	MaxDepthDefault int `yaml:"maxDepthDefault"`
	LimitDefault    int `yaml:"limitDefault"`
	WorkersPerCrawl int `yaml:"workersPerCrawl"`
	RetentionHours  int `yaml:"retentionHours"`
}

type RobotsConfig struct {
	Respect        bool `yaml:"respect"`
	CacheTTLMinute int  `yaml:"cacheTTLMinutes"`
	TimeoutMs      int  `yaml:"timeoutMs"`
}

type RodConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ControlURL string `yaml:"controlURL"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Enabled bool     `yaml:"enabled"`
	APIKeys []string `yaml:"apiKeys"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

type WorkerConfig struct {
	MaxConcurrentJobs      int `yaml:"maxConcurrentJobs"`
	PollIntervalMs         int `yaml:"pollIntervalMs"`
	CleanupIntervalMinutes int `yaml:"cleanupIntervalMinutes"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type GoogleLLMConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

type LLMConfig struct {
	DefaultProvider string          `yaml:"defaultProvider"`
	MaxInputTokens  int             `yaml:"maxInputTokens"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	Google          GoogleLLMConfig `yaml:"google"`
}

// BlobConfig controls where screenshots are uploaded. When Dir is
// empty, screenshots stay inline as data URIs.
type BlobConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"baseURL"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Robots    RobotsConfig    `yaml:"robots"`
	Rod       RodConfig       `yaml:"rod"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Worker    WorkerConfig    `yaml:"worker"`
	LLM       LLMConfig       `yaml:"llm"`
	Blob      BlobConfig      `yaml:"blob"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}
