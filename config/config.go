// Package config loads engine settings from config.json and
// CERTRAG-prefixed environment variables. API keys and the JWT
// secret are read from the environment only, never from the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the engine.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Judge     JudgeConfig     `mapstructure:"judge"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
}

// GeneralConfig carries cross-cutting settings. Timeout is the
// fallback for any LLM client without its own.
type GeneralConfig struct {
	Debug   bool          `mapstructure:"debug"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains the HTTP listener settings. JWTSecret comes
// from the JWT_SECRET environment variable; empty leaves the API
// open.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"-"`
}

// QdrantConfig locates the vector index. APIKey comes from
// QDRANT_API_KEY.
type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"-"`
}

// EmbeddingConfig selects the OpenAI embedding model. APIKey comes
// from OPENAI_API_KEY.
type EmbeddingConfig struct {
	Model      string        `mapstructure:"model"`
	Dimension  int           `mapstructure:"dimension"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	APIKey     string        `mapstructure:"-"`
}

// JudgeConfig selects the reranking judge. APIKey comes from
// ANTHROPIC_API_KEY or OPENAI_API_KEY depending on the provider.
type JudgeConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	APIKey     string        `mapstructure:"-"`
}

// GeneratorConfig selects the answer generator. APIKey resolution
// matches JudgeConfig.
type GeneratorConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	APIKey     string        `mapstructure:"-"`
}

// RetrievalConfig describes the corpus shape reported by the API.
type RetrievalConfig struct {
	Chapters []string `mapstructure:"chapters"`
}

// RedisConfig enables the embedding cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CorpusConfig locates the ingestion inputs and outputs.
type CorpusConfig struct {
	ChunksDir      string `mapstructure:"chunks_dir"`
	EmbeddingsFile string `mapstructure:"embeddings_file"`
	EmbedBatch     int    `mapstructure:"embed_batch"`
}

// Load reads config.json from path if given, otherwise from the
// working directory, ./config and next to the executable, overlays
// CERTRAG_* environment variables and resolves secrets. A missing
// file leaves the defaults in force.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	setDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, ".."))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("CERTRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.resolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.timeout", 60*time.Second)

	v.SetDefault("server.address", ":8000")

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.use_tls", false)
	v.SetDefault("qdrant.collection", "comptia_security_plus")

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("embedding.max_retries", 3)

	v.SetDefault("judge.provider", "anthropic")
	v.SetDefault("judge.model", "claude-3-haiku-20240307")
	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.timeout", 30*time.Second)
	v.SetDefault("judge.max_retries", 2)

	v.SetDefault("generator.provider", "anthropic")
	v.SetDefault("generator.model", "claude-sonnet-4-20250514")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.timeout", 120*time.Second)
	v.SetDefault("generator.max_retries", 2)

	v.SetDefault("retrieval.chapters", []string{"1", "2", "3", "4"})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("corpus.chunks_dir", "data_clean")
	v.SetDefault("corpus.embeddings_file", "embeddings.json")
	v.SetDefault("corpus.embed_batch", 100)
}

func (c *Config) resolveSecrets() {
	c.Server.JWTSecret = os.Getenv("JWT_SECRET")
	c.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Judge.APIKey = providerKey(c.Judge.Provider)
	c.Generator.APIKey = providerKey(c.Generator.Provider)
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate rejects settings the engine cannot run with. API keys are
// not checked here; the clients that need them are constructed
// lazily and report their own absence.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Qdrant.Port <= 0 {
		return fmt.Errorf("qdrant.port must be positive, got %d", c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant.collection must not be empty")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if err := validProvider("judge", c.Judge.Provider); err != nil {
		return err
	}
	if err := validProvider("generator", c.Generator.Provider); err != nil {
		return err
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty when redis is enabled")
	}
	if c.Corpus.EmbedBatch <= 0 {
		return fmt.Errorf("corpus.embed_batch must be positive, got %d", c.Corpus.EmbedBatch)
	}
	return nil
}

func validProvider(section, provider string) error {
	switch provider {
	case "openai", "anthropic":
		return nil
	default:
		return fmt.Errorf("%s.provider must be openai or anthropic, got %q", section, provider)
	}
}
