package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-scout/backend/internal/provider"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderArk       = "ark"

	CheckpointNone   = "none"
	CheckpointMemory = "memory"
	CheckpointSQLite = "sqlite"

	DefaultMemoryID = "memory_for_search_agent"
)

var (
	ErrMissingModelKey  = errors.New("model credential not found in environment (ANTHROPIC_API_KEY, or ARK_API_KEY with MODEL_PROVIDER=ark)")
	ErrMissingSearchKey = errors.New("TAVILY_API_KEY not found in environment")
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Search     SearchConfig
	Memory     MemoryConfig
	Checkpoint CheckpointConfig
	RateLimit  RateLimitConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	memory, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	checkpoint, err := loadCheckpointConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Search:     search,
		Memory:     memory,
		Checkpoint: checkpoint,
		RateLimit:  rateLimit,
	}, nil
}

// Validate 检查启动所必需的两个密钥，缺失时服务不应启动。
func (c *Config) Validate() error {
	if !c.AI.Enabled() {
		return ErrMissingModelKey
	}
	if c.Search.APIKey == "" {
		return ErrMissingSearchKey
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// Ark 相关配置，仅在 MODEL_PROVIDER=ark 时使用。
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	MaxRetries  int
}

// Enabled 表示当前 provider 所需的密钥是否齐全。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.AnthropicAPIKey != ""
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, ErrMissingModelKey
	}

	if c.Provider != ProviderArk {
		maxTokens := provider.DefaultMaxTokens
		if c.MaxTokens != nil {
			maxTokens = *c.MaxTokens
		}
		return provider.NewAnthropicChatModel(provider.AnthropicConfig{
			APIKey:      c.AnthropicAPIKey,
			Model:       c.AnthropicModel,
			BaseURL:     c.AnthropicBaseURL,
			Temperature: c.Temperature,
			MaxTokens:   maxTokens,
			MaxRetries:  c.MaxRetries,
		})
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	retries := c.MaxRetries
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		RetryTimes:  &retries,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	providerName := strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", ProviderAnthropic))
	if providerName != ProviderAnthropic && providerName != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid MODEL_PROVIDER value %q", providerName)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		zero := 0.0
		temperature = &zero
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	maxRetries := provider.DefaultMaxRetries
	if override, err := parseOptionalIntEnv("AI_MAX_RETRIES"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return AIConfig{}, fmt.Errorf("invalid AI_MAX_RETRIES value %d", *override)
		}
		maxRetries = *override
	}

	return AIConfig{
		Provider:         providerName,
		AnthropicAPIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicModel:   getEnvOrDefault("ANTHROPIC_MODEL", provider.DefaultAnthropicModel),
		AnthropicBaseURL: getEnvOrDefault("ANTHROPIC_BASE_URL", ""),
		APIKey:           strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:        strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:        strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:            strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:          getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:           getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		MaxRetries:       maxRetries,
	}, nil
}

// SearchConfig 描述 Tavily 搜索配置。
type SearchConfig struct {
	APIKey     string
	BaseURL    string
	Depth      string
	MaxResults int
	Timeout    time.Duration
	CacheTTL   time.Duration
}

func loadSearchConfig() (SearchConfig, error) {
	maxResults := 3
	if override, err := parseOptionalIntEnv("SEARCH_MAX_RESULTS"); err != nil {
		return SearchConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxResults = 1
		} else {
			maxResults = *override
		}
	}

	timeout, err := parseOptionalIntEnv("SEARCH_TIMEOUT")
	if err != nil {
		return SearchConfig{}, err
	}
	timeoutSeconds := 10
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	cacheTTL, err := parseOptionalIntEnv("SEARCH_CACHE_TTL")
	if err != nil {
		return SearchConfig{}, err
	}
	cacheSeconds := 0
	if cacheTTL != nil {
		cacheSeconds = *cacheTTL
	}

	return SearchConfig{
		APIKey:     strings.TrimSpace(os.Getenv("TAVILY_API_KEY")),
		BaseURL:    getEnvOrDefault("TAVILY_BASE_URL", ""),
		Depth:      getEnvOrDefault("SEARCH_DEPTH", "basic"),
		MaxResults: maxResults,
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
		CacheTTL:   time.Duration(cacheSeconds) * time.Second,
	}, nil
}

// MemoryConfig 描述长期记忆存储配置。
type MemoryConfig struct {
	Enabled           bool
	MemoryID          string
	Path              string
	InjectPreferences bool
	PreferenceLimit   int
	Embedder          string
	OllamaEmbedModel  string
	OllamaBaseURL     string
}

func loadMemoryConfig() (MemoryConfig, error) {
	enabled, err := parseBoolEnv("MEMORY_ENABLED", false)
	if err != nil {
		return MemoryConfig{}, err
	}

	inject, err := parseBoolEnv("MEMORY_INJECT_PREFERENCES", true)
	if err != nil {
		return MemoryConfig{}, err
	}

	limit := 5
	if override, err := parseOptionalIntEnv("MEMORY_PREFERENCE_LIMIT"); err != nil {
		return MemoryConfig{}, err
	} else if override != nil && *override > 0 {
		limit = *override
	}

	embedder := strings.ToLower(getEnvOrDefault("MEMORY_EMBEDDER", "hash"))
	if embedder != "hash" && embedder != "ollama" {
		return MemoryConfig{}, fmt.Errorf("invalid MEMORY_EMBEDDER value %q", embedder)
	}

	return MemoryConfig{
		Enabled:           enabled,
		MemoryID:          getEnvOrDefault("MEMORY_ID", DefaultMemoryID),
		Path:              getEnvOrDefault("MEMORY_PATH", ""),
		InjectPreferences: inject,
		PreferenceLimit:   limit,
		Embedder:          embedder,
		OllamaEmbedModel:  getEnvOrDefault("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaBaseURL:     getEnvOrDefault("OLLAMA_BASE_URL", ""),
	}, nil
}

// CheckpointConfig 描述会话检查点配置。
type CheckpointConfig struct {
	Mode   string
	DBPath string
}

func loadCheckpointConfig() (CheckpointConfig, error) {
	mode := strings.ToLower(getEnvOrDefault("CHECKPOINT_MODE", CheckpointNone))
	switch mode {
	case CheckpointNone, CheckpointMemory, CheckpointSQLite:
	default:
		return CheckpointConfig{}, fmt.Errorf("invalid CHECKPOINT_MODE value %q", mode)
	}

	return CheckpointConfig{
		Mode:   mode,
		DBPath: getEnvOrDefault("CHECKPOINT_DB", "checkpoints.db"),
	}, nil
}

// RateLimitConfig 描述 /invocations 的限流配置，RequestsPerMinute 为 0 时关闭。
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	rpm := 60
	if override, err := parseOptionalIntEnv("RATE_LIMIT_RPM"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		rpm = *override
	}

	burst := 10
	if override, err := parseOptionalIntEnv("RATE_LIMIT_BURST"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil && *override > 0 {
		burst = *override
	}

	if rpm < 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid RATE_LIMIT_RPM value %d", rpm)
	}
	return RateLimitConfig{RequestsPerMinute: rpm, Burst: burst}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
