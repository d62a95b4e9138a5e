package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Network     NetworkConfig     `mapstructure:"network"`
	Planner     PlannerConfig     `mapstructure:"planner"`
	Tools       ToolsConfig       `mapstructure:"tools"`
	Translation TranslationConfig `mapstructure:"translation"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Languages   map[string]string `mapstructure:"languages"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// NetworkConfig configures the shared outbound HTTP session used by the
// retrieval tools. The proxy, when set, is also exported into the process
// environment so that subprocesses inherit it.
type NetworkConfig struct {
	ProxyURL  string        `mapstructure:"proxy_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
	Backoff   time.Duration `mapstructure:"backoff"`
	PoolSize  int           `mapstructure:"pool_size"`
	UserAgent string        `mapstructure:"user_agent"`
}

// KeywordRoute maps a keyword set to a single designated tool.
type KeywordRoute struct {
	Keywords []string `mapstructure:"keywords"`
	Tool     string   `mapstructure:"tool"`
}

// PlannerConfig drives tool selection. Priority is the static fallback
// order when no keyword route matches; unknown tool names are skipped.
type PlannerConfig struct {
	Priority []string       `mapstructure:"priority"`
	Routes   []KeywordRoute `mapstructure:"routes"`
}

// ToolsConfig contains per-adapter settings
type ToolsConfig struct {
	Wikipedia  WikipediaConfig  `mapstructure:"wikipedia"`
	DuckDuckGo DuckDuckGoConfig `mapstructure:"duckduckgo"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	LocalDocs  LocalDocsConfig  `mapstructure:"localdocs"`
}

// WikipediaConfig contains encyclopedic search settings. BaseURL overrides
// the default wikipedia.org endpoint (used in tests).
type WikipediaConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Language   string        `mapstructure:"language"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BaseURL    string        `mapstructure:"base_url"`
}

// DuckDuckGoConfig contains instant-answer search settings
type DuckDuckGoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MCPConfig contains the medical computation MCP server settings
type MCPConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ServerURL string        `mapstructure:"server_url"`
	ToolName  string        `mapstructure:"tool_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LocalDocsConfig contains the local reference corpus settings
type LocalDocsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	MaxResults int    `mapstructure:"max_results"`
}

// TranslationConfig contains the translation endpoint settings
type TranslationConfig struct {
	APIKey         string            `mapstructure:"api_key"`
	BaseURL        string            `mapstructure:"base_url"`
	Model          string            `mapstructure:"model"`
	TargetLanguage string            `mapstructure:"target_language"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	Terms          map[string]string `mapstructure:"terms"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis answer-cache settings
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when redis is enabled")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when redis is enabled")
	}
	return nil
}

func (n NetworkConfig) Validate() error {
	if n.Retries < 1 {
		return fmt.Errorf("network.retries must be >= 1")
	}
	if n.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be > 0")
	}
	return nil
}

// Normalize applies defaults for unset planner values.
func (p PlannerConfig) Normalize() PlannerConfig {
	if len(p.Priority) == 0 {
		p.Priority = []string{"MedicalMCP", "WikipediaSearch", "DuckDuckGoSearch"}
	}
	if len(p.Routes) == 0 {
		p.Routes = []KeywordRoute{
			{Keywords: []string{"计算", "分析"}, Tool: "MedicalMCP"},
			{Keywords: []string{"指南", "定义"}, Tool: "WikipediaSearch"},
		}
	}
	return p
}

// DefaultLanguages maps human-readable language names to short codes.
// Consumed by collaborators that need codes (e.g. the wiki language
// parameter and the translation request), not computed anywhere.
func DefaultLanguages() map[string]string {
	return map[string]string{
		"Chinese":  "zh",
		"English":  "en",
		"Japanese": "ja",
		"Korean":   "ko",
		"Thai":     "th",
		"French":   "fr",
		"German":   "de",
	}
}

// LoadConfig loads config from file, falling back to defaults and
// MEDASSIST_* environment variables when no file is present.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "2m")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.periodic_logs", false)
	v.SetDefault("network.timeout", "15s")
	v.SetDefault("network.retries", 3)
	v.SetDefault("network.backoff", "1s")
	v.SetDefault("network.pool_size", 10)
	v.SetDefault("network.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("tools.wikipedia.enabled", true)
	v.SetDefault("tools.wikipedia.language", "en")
	v.SetDefault("tools.wikipedia.max_results", 3)
	v.SetDefault("tools.wikipedia.timeout", "15s")
	v.SetDefault("tools.duckduckgo.enabled", true)
	v.SetDefault("tools.duckduckgo.endpoint", "https://api.duckduckgo.com/")
	v.SetDefault("tools.duckduckgo.timeout", "10s")
	v.SetDefault("tools.mcp.enabled", true)
	v.SetDefault("tools.mcp.server_url", "https://evalstate-hf-mcp-server.hf.space/mcp")
	v.SetDefault("tools.mcp.tool_name", "medical_calculator")
	v.SetDefault("tools.mcp.timeout", "15s")
	v.SetDefault("tools.localdocs.enabled", false)
	v.SetDefault("tools.localdocs.max_results", 3)
	v.SetDefault("translation.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("translation.model", "qwen-mt-turbo")
	v.SetDefault("translation.target_language", "Chinese")
	v.SetDefault("translation.timeout", "30s")
	v.SetDefault("storage.redis.enabled", false)
	v.SetDefault("storage.redis.timeout", "5s")
	v.SetDefault("storage.redis.ttl", "10m")
	v.SetDefault("languages", DefaultLanguages())

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("MEDASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the translation key is conventionally provided through the vendor
	// variable, keep honoring it
	_ = v.BindEnv("translation.api_key", "MEDASSIST_TRANSLATION_API_KEY", "DASHSCOPE_API_KEY")
	_ = v.BindEnv("network.proxy_url", "MEDASSIST_NETWORK_PROXY_URL", "PROXY_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Planner = cfg.Planner.Normalize()
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages()
	}

	if err := cfg.Network.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
