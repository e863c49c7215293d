// Package config provides application configuration management using koanf
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"pdf-quiz-rag/internal/embeddings"
	"pdf-quiz-rag/internal/generator"
	"pdf-quiz-rag/internal/llm"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/storage"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates levels: QUIZRAG_LLM__MODEL sets llm.model.
const EnvPrefix = "QUIZRAG_"

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Index      IndexConfig      `koanf:"index"`
	Document   DocumentConfig   `koanf:"document"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	LLM        LLMConfig        `koanf:"llm"`
	Generation GenerationConfig `koanf:"generation"`
	Security   SecurityConfig   `koanf:"security"`
	App        AppConfig        `koanf:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string    `koanf:"host"`
	Port         int       `koanf:"port"`
	ReadTimeout  int       `koanf:"read_timeout"`  // seconds
	WriteTimeout int       `koanf:"write_timeout"` // seconds
	MaxUploadMB  int       `koanf:"max_upload_mb"`
	TLS          TLSConfig `koanf:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
	MinTLS   string `koanf:"min_version"` // "1.2" or "1.3"
}

// IndexConfig selects the vector index backend
type IndexConfig struct {
	Backend  string `koanf:"backend"` // "chromem", "sqlite-vec" or "memory"
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"` // chromem only
}

// DocumentConfig holds text extraction settings
type DocumentConfig struct {
	PDFToText string `koanf:"pdftotext"`
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Provider string `koanf:"provider"` // "ollama", "openai" or "gemini"
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   string `koanf:"api_key"`
}

// LLMConfig holds language model configuration
type LLMConfig struct {
	Provider          string  `koanf:"provider"` // "ollama", "openai" or "gemini"
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            string  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	RequestsPerSecond float64 `koanf:"requests_per_second"` // 0 disables limiting
	Burst             int     `koanf:"burst"`
}

// GenerationConfig holds question generation settings
type GenerationConfig struct {
	DirectQuestionCount   int    `koanf:"direct_question_count"`
	GroundedQuestionCount int    `koanf:"grounded_question_count"`
	GroundedTopK          int    `koanf:"grounded_top_k"`
	ChatTopK              int    `koanf:"chat_top_k"`
	MaxConcurrency        int    `koanf:"max_concurrency"`
	CacheSize             int    `koanf:"cache_size"`
	PromptDir             string `koanf:"prompt_dir"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	ErrorMode string `koanf:"error_mode"` // "detailed" or "secure"
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "staging", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"
}

// Load loads configuration from multiple sources with precedence:
// 1. .env (if exists, never overriding the real environment)
// 2. config.yaml / config.json (if exist), or path when given
// 3. Environment variables (highest precedence)
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	// Set defaults
	setDefaults(k)

	// Load from config files (optional)
	if err := loadConfigFiles(k, path); err != nil {
		return nil, err
	}

	// Load from environment variables (highest precedence)
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// Unmarshal into config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyProviderKeys(&cfg)

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		// Server defaults
		"server.host":            "localhost",
		"server.port":            8080,
		"server.read_timeout":    30,
		"server.write_timeout":   600,
		"server.max_upload_mb":   64,
		"server.tls.enabled":     false,
		"server.tls.min_version": "1.3",

		// Index defaults
		"index.backend":  storage.BackendChromem,
		"index.path":     "data/index",
		"index.compress": false,

		"document.pdftotext": "pdftotext",

		// Model defaults
		"embedding.provider":      embeddings.ProviderOllama,
		"embedding.base_url":      "",
		"embedding.model":         "",
		"llm.provider":            llm.ProviderOllama,
		"llm.base_url":            "",
		"llm.model":               "",
		"llm.temperature":         0.2,
		"llm.requests_per_second": 0,
		"llm.burst":               1,

		// Generation defaults
		"generation.direct_question_count":   generator.DefaultDirectQuestionCount,
		"generation.grounded_question_count": generator.DefaultGroundedQuestionCount,
		"generation.grounded_top_k":          generator.DefaultGroundedTopK,
		"generation.chat_top_k":              generator.DefaultChatTopK,
		"generation.max_concurrency":         generator.DefaultMaxConcurrency,
		"generation.cache_size":              generator.DefaultCacheSize,
		"generation.prompt_dir":              "",

		// Security defaults
		"security.error_mode": "detailed",

		// App defaults
		"app.environment": "development",
		"app.log_level":   "info",
		"app.log_format":  "text",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads path when given, otherwise config.yaml and
// config.json from the working directory when they exist.
func loadConfigFiles(k *koanf.Koanf, path string) error {
	if path != "" {
		parser := koanf.Parser(yaml.Parser())
		if strings.HasSuffix(path, ".json") {
			parser = json.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}

	// Try to load YAML config
	if _, err := os.Stat("config.yaml"); err == nil {
		if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
			logger.Warn("failed to load config.yaml: %v", err)
		}
	}

	// Try to load JSON config
	if _, err := os.Stat("config.json"); err == nil {
		if err := k.Load(file.Provider("config.json"), json.Parser()); err != nil {
			logger.Warn("failed to load config.json: %v", err)
		}
	}
	return nil
}

// applyProviderKeys fills empty API keys from the providers' usual
// environment variables.
func applyProviderKeys(cfg *Config) {
	fill := func(provider string, key *string) {
		if *key != "" {
			return
		}
		switch provider {
		case "openai":
			*key = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			*key = os.Getenv("GEMINI_API_KEY")
		}
	}
	fill(cfg.Embedding.Provider, &cfg.Embedding.APIKey)
	fill(cfg.LLM.Provider, &cfg.LLM.APIKey)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate TLS configuration
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert file is required when TLS is enabled")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key file is required when TLS is enabled")
		}

		// Check if files exist
		if _, err := os.Stat(cfg.Server.TLS.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS cert file does not exist: %s", cfg.Server.TLS.CertFile)
		}
		if _, err := os.Stat(cfg.Server.TLS.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", cfg.Server.TLS.KeyFile)
		}
	}

	if !oneOf(cfg.Index.Backend, storage.BackendChromem, storage.BackendSQLiteVec, storage.BackendMemory) {
		return fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
	if !oneOf(cfg.Embedding.Provider, embeddings.ProviderOllama, embeddings.ProviderOpenAI, embeddings.ProviderGemini) {
		return fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
	if !oneOf(cfg.LLM.Provider, llm.ProviderOllama, llm.ProviderOpenAI, llm.ProviderGemini) {
		return fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}

	g := cfg.Generation
	for name, v := range map[string]int{
		"direct_question_count":   g.DirectQuestionCount,
		"grounded_question_count": g.GroundedQuestionCount,
		"grounded_top_k":          g.GroundedTopK,
		"chat_top_k":              g.ChatTopK,
		"max_concurrency":         g.MaxConcurrency,
		"cache_size":              g.CacheSize,
	} {
		if v <= 0 {
			return fmt.Errorf("generation.%s must be positive, got %d", name, v)
		}
	}

	if cfg.LLM.RequestsPerSecond < 0 {
		return fmt.Errorf("llm.requests_per_second must not be negative")
	}

	// Validate security settings
	if !oneOf(cfg.Security.ErrorMode, "detailed", "secure") {
		return fmt.Errorf("unknown error mode: %s", cfg.Security.ErrorMode)
	}

	return nil
}

// GetTLSConfig returns a TLS configuration based on the config
func (c *Config) GetTLSConfig() *tls.Config {
	if !c.Server.TLS.Enabled {
		return nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12, // Set default minimum version
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	// Set minimum TLS version
	switch c.Server.TLS.MinTLS {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// DetailedErrors reports whether error causes may be shown to clients
func (c *Config) DetailedErrors() bool {
	return c.Security.ErrorMode == "detailed" && !c.IsProduction()
}

// StorageOptions returns the index backend settings
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{Backend: c.Index.Backend, Path: c.Index.Path, Compress: c.Index.Compress}
}

// EmbeddingOptions returns the embedding backend settings
func (c *Config) EmbeddingOptions() embeddings.Options {
	return embeddings.Options{
		Provider: c.Embedding.Provider,
		BaseURL:  c.Embedding.BaseURL,
		Model:    c.Embedding.Model,
		APIKey:   c.Embedding.APIKey,
	}
}

// LLMOptions returns the language model settings
func (c *Config) LLMOptions() llm.Options {
	return llm.Options{
		Provider:          c.LLM.Provider,
		BaseURL:           c.LLM.BaseURL,
		Model:             c.LLM.Model,
		APIKey:            c.LLM.APIKey,
		Temperature:       c.LLM.Temperature,
		RequestsPerSecond: c.LLM.RequestsPerSecond,
		Burst:             c.LLM.Burst,
	}
}

// GeneratorOptions returns the orchestration settings
func (c *Config) GeneratorOptions() generator.Options {
	g := c.Generation
	return generator.Options{
		DirectQuestionCount:   g.DirectQuestionCount,
		GroundedQuestionCount: g.GroundedQuestionCount,
		GroundedTopK:          g.GroundedTopK,
		ChatTopK:              g.ChatTopK,
		MaxConcurrency:        g.MaxConcurrency,
		CacheSize:             g.CacheSize,
	}
}
