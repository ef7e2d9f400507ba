package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/phamduchanh/docvec-be/database"
)

type Config struct {
	Port                string                       `mapstructure:"port"`
	UploadDir           string                       `mapstructure:"upload_dir"`
	DataDir             string                       `mapstructure:"data_dir"`
	VectorBackend       string                       `mapstructure:"vector_backend"`
	MongoURI            string                       `mapstructure:"MONGODB_URI"`
	WeaviateStoreConfig database.WeaviateStoreConfig `mapstructure:"weaviate_store_config"`
	Vision              VisionConfig                 `mapstructure:"vision"`
	LLM                 LLMConfig                    `mapstructure:"llm"`
	Embedding           EmbeddingConfig              `mapstructure:"embedding"`
	Pipeline            PipelineConfig               `mapstructure:"pipeline"`
}

// VisionConfig points at the external layout-classification and
// text-recognition service.
type VisionConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	Provider       string `mapstructure:"provider"` // "openai" or "gemini"
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	OpenAIAPIKey   string `mapstructure:"OPENAI_API_KEY"`
	GeminiAPIKey   string `mapstructure:"GEMINI_API_KEY"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxPromptChars int    `mapstructure:"max_prompt_chars"`
}

type EmbeddingConfig struct {
	// Providers is the ordered fallback chain. The char-frequency tier is
	// always appended if missing so the chain can never fully fail.
	Providers      []string `mapstructure:"providers"`
	OpenAIModel    string   `mapstructure:"openai_model"`
	OllamaEndpoint string   `mapstructure:"ollama_endpoint"`
	OllamaModel    string   `mapstructure:"ollama_model"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

type PipelineConfig struct {
	Workers          int     `mapstructure:"workers"`
	PageWorkers      int     `mapstructure:"page_workers"`
	DedupeThreshold  float64 `mapstructure:"dedupe_threshold"`
	OverlapThreshold float64 `mapstructure:"overlap_threshold"`
	TaskTTLMinutes   int     `mapstructure:"task_ttl_minutes"`
}

func (p PipelineConfig) TaskTTL() time.Duration {
	return time.Duration(p.TaskTTLMinutes) * time.Minute
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("GEMINI_API_KEY")
	v.BindEnv("WEAVIATE_APIKEY")
	v.BindEnv("MONGODB_URI")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.VectorBackend == "" {
		c.VectorBackend = "local"
	}
	if c.Vision.TimeoutSeconds == 0 {
		c.Vision.TimeoutSeconds = 30
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxPromptChars == 0 {
		c.LLM.MaxPromptChars = 6000
	}
	if c.Embedding.TimeoutSeconds == 0 {
		c.Embedding.TimeoutSeconds = 30
	}
	if len(c.Embedding.Providers) == 0 {
		c.Embedding.Providers = []string{"openai", "ollama", "charfreq"}
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 3
	}
	if c.Pipeline.PageWorkers == 0 {
		c.Pipeline.PageWorkers = 4
	}
	if c.Pipeline.DedupeThreshold == 0 {
		c.Pipeline.DedupeThreshold = 0.8
	}
	if c.Pipeline.OverlapThreshold == 0 {
		c.Pipeline.OverlapThreshold = 0.5
	}
	if c.Pipeline.TaskTTLMinutes == 0 {
		c.Pipeline.TaskTTLMinutes = 24 * 60
	}
}
