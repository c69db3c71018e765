package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir" yaml:"project_dir"`
	ResultsDir   string `json:"results_dir" yaml:"results_dir"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DataCacheDir string `json:"data_cache_dir" yaml:"data_cache_dir"`
	DBPath       string `json:"db_path" yaml:"db_path"`

	LLMProvider   string `json:"llm_provider" yaml:"llm_provider"`
	DeepThinkLLM  string `json:"deep_think_llm" yaml:"deep_think_llm"`
	QuickThinkLLM string `json:"quick_think_llm" yaml:"quick_think_llm"`
	BackendURL    string `json:"backend_url" yaml:"backend_url"`
	MaxTokens     int    `json:"max_tokens" yaml:"max_tokens"`

	MaxDebateRounds      int  `json:"max_debate_rounds" yaml:"max_debate_rounds"`
	MaxRiskDiscussRounds int  `json:"max_risk_rounds" yaml:"max_risk_rounds"`
	ConvergenceCheck     bool `json:"convergence_check" yaml:"convergence_check"`

	// Per agent call budget
	AgentTimeoutSec int `json:"agent_timeout_sec" yaml:"agent_timeout_sec"`
	RetryAttempts   int `json:"retry_attempts" yaml:"retry_attempts"`
	RetryBaseMillis int `json:"retry_base_millis" yaml:"retry_base_millis"`

	// Analysts running at once, 0 for all of them
	AnalystConcurrency int `json:"analyst_concurrency" yaml:"analyst_concurrency"`

	MemoryTopK    int  `json:"memory_top_k" yaml:"memory_top_k"`
	MemoryPersist bool `json:"memory_persist" yaml:"memory_persist"`

	LookbackDays int  `json:"lookback_days" yaml:"lookback_days"`
	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`
	WriteReports bool `json:"write_reports" yaml:"write_reports"`

	LogLevel     string `json:"log_level" yaml:"log_level"`
	Debug        bool   `json:"debug" yaml:"debug"`
	TraceEnabled bool   `json:"trace_enabled" yaml:"trace_enabled"`
	HTTPAddr     string `json:"http_addr" yaml:"http_addr"`
	MetricsAddr  string `json:"metrics_addr" yaml:"metrics_addr"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled" yaml:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port" yaml:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key" yaml:"-"`
	LongportAppSecret   string `json:"longport_app_secret" yaml:"-"`
	LongportAccessToken string `json:"longport_access_token" yaml:"-"`

	// AI Model API Keys
	DeepSeekAPIKey string `json:"deepseek_api_key" yaml:"-"`
	OpenAIAPIKey   string `json:"openai_api_key" yaml:"-"`

	// Market/Social data API keys
	FinnhubAPIKey       string `json:"finnhub_api_key" yaml:"-"`
	CoinGeckoAPIKey     string `json:"coingecko_api_key" yaml:"-"`
	CryptoCompareAPIKey string `json:"cryptocompare_api_key" yaml:"-"`
	RedditUserAgent     string `json:"reddit_user_agent" yaml:"reddit_user_agent"`
}

var supportedProviders = map[string]bool{
	"deepseek":   true,
	"openai":     true,
	"openrouter": true,
	"ollama":     true,
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns the defaults with every directory rooted at root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:   root,
		ResultsDir:   filepath.Join(root, "results"),
		DataDir:      filepath.Join(root, "data"),
		DataCacheDir: filepath.Join(root, "data", "cache"),
		DBPath:       filepath.Join(root, "data", "cortex.db"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-reasoner",
		QuickThinkLLM: "deepseek-chat",
		MaxTokens:     4096,

		MaxDebateRounds:      1,
		MaxRiskDiscussRounds: 1,
		ConvergenceCheck:     true,

		AgentTimeoutSec: 120,
		RetryAttempts:   3,
		RetryBaseMillis: 500,

		MemoryTopK:    2,
		MemoryPersist: true,

		LookbackDays: 90,
		CacheEnabled: true,
		WriteReports: true,

		LogLevel:    "info",
		HTTPAddr:    ":8080",
		MetricsAddr: "",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,

		RedditUserAgent: "CortexAgents/1.0",
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := os.Getenv("CORTEX_DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(val)
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}

	setInt(&c.MaxTokens, "MAX_TOKENS")
	setInt(&c.MaxDebateRounds, "MAX_DEBATE_ROUNDS")
	setInt(&c.MaxRiskDiscussRounds, "MAX_RISK_ROUNDS")
	setBool(&c.ConvergenceCheck, "CONVERGENCE_CHECK")
	setInt(&c.AgentTimeoutSec, "AGENT_TIMEOUT_SEC")
	setInt(&c.RetryAttempts, "RETRY_ATTEMPTS")
	setInt(&c.RetryBaseMillis, "RETRY_BASE_MILLIS")
	setInt(&c.AnalystConcurrency, "ANALYST_CONCURRENCY")
	setInt(&c.MemoryTopK, "MEMORY_TOP_K")
	setBool(&c.MemoryPersist, "MEMORY_PERSIST")
	setInt(&c.LookbackDays, "LOOKBACK_DAYS")
	setBool(&c.CacheEnabled, "CACHE_ENABLED")
	setBool(&c.WriteReports, "WRITE_REPORTS")

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	setBool(&c.Debug, "CORTEX_DEBUG")
	setBool(&c.TraceEnabled, "TRACE_ENABLED")
	if val := os.Getenv("HTTP_ADDR"); val != "" {
		c.HTTPAddr = val
	}
	if val := os.Getenv("METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}

	setBool(&c.EinoDebugEnabled, "EINO_DEBUG_ENABLED")
	setInt(&c.EinoDebugPort, "EINO_DEBUG_PORT")

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}

	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}
	if val := os.Getenv("COINGECKO_API_KEY"); val != "" {
		c.CoinGeckoAPIKey = val
	}
	if val := os.Getenv("CRYPTOCOMPARE_API_KEY"); val != "" {
		c.CryptoCompareAPIKey = val
	}
	if val := os.Getenv("REDDIT_USER_AGENT"); val != "" {
		c.RedditUserAgent = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			*dst = v
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.ParseBool(val); err == nil {
			*dst = v
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxDebateRounds < 1 {
		errs = append(errs, fmt.Errorf("max_debate_rounds must be >= 1, got %d", c.MaxDebateRounds))
	}
	if c.MaxRiskDiscussRounds < 1 {
		errs = append(errs, fmt.Errorf("max_risk_rounds must be >= 1, got %d", c.MaxRiskDiscussRounds))
	}
	if c.AgentTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("agent_timeout_sec must be positive"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_attempts must be >= 1"))
	}
	if c.AnalystConcurrency < 0 {
		errs = append(errs, fmt.Errorf("analyst_concurrency must not be negative"))
	}
	if c.MemoryTopK < 1 {
		errs = append(errs, fmt.Errorf("memory_top_k must be >= 1"))
	}
	if c.LookbackDays < 1 {
		errs = append(errs, fmt.Errorf("lookback_days must be >= 1"))
	}
	if !supportedProviders[strings.ToLower(c.LLMProvider)] {
		errs = append(errs, fmt.Errorf("unsupported llm_provider %q", c.LLMProvider))
	}
	if strings.TrimSpace(c.DeepThinkLLM) == "" || strings.TrimSpace(c.QuickThinkLLM) == "" {
		errs = append(errs, fmt.Errorf("deep_think_llm and quick_think_llm are required"))
	}
	return errors.Join(errs...)
}

// APIKey returns the key for the configured provider.
func (c Config) APIKey() string {
	switch strings.ToLower(c.LLMProvider) {
	case "deepseek":
		return c.DeepSeekAPIKey
	case "ollama":
		return "ollama"
	default:
		return c.OpenAIAPIKey
	}
}

func (c Config) HasLongport() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	if c.DBPath != "" {
		dirs = append(dirs, filepath.Dir(c.DBPath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
