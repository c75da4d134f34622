// Package config provides configuration management for the triage engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/triage-edge-server/internal/domain"
)

// Config is the full engine configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Inference InferenceConfig `mapstructure:"inference"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DataConfig locates local storage for models, catalogs and transfer state.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// ArtifactSpec describes one downloadable model artifact.
type ArtifactSpec struct {
	URL           string `mapstructure:"url"`
	File          string `mapstructure:"file"`
	ExpectedBytes int64  `mapstructure:"expected_bytes"`
}

// ArtifactsConfig names the model artifacts the pipeline depends on.
type ArtifactsConfig struct {
	EncoderModel   ArtifactSpec `mapstructure:"encoder_model"`
	SpecialtyHead  ArtifactSpec `mapstructure:"specialty_head"`
	ConditionHead  ArtifactSpec `mapstructure:"condition_head"`
	Vocabulary     ArtifactSpec `mapstructure:"vocabulary"`
	GenerativeGGUF ArtifactSpec `mapstructure:"generative_gguf"`
}

// InferenceConfig tunes the inference engines.
type InferenceConfig struct {
	SequenceLength   int     `mapstructure:"sequence_length"`
	ContextSize      int     `mapstructure:"context_size"`
	Threads          int     `mapstructure:"threads"`
	GPULayers        int     `mapstructure:"gpu_layers"`
	ExtractTemp      float64 `mapstructure:"extract_temperature"`
	ExtractTopP      float64 `mapstructure:"extract_top_p"`
	ChatTemp         float64 `mapstructure:"chat_temperature"`
	ChatTopP         float64 `mapstructure:"chat_top_p"`
	MaxTokens        int     `mapstructure:"max_tokens"`
	CacheSize        int     `mapstructure:"cache_size"`
	ONNXLibraryPath  string  `mapstructure:"onnx_library_path"`
	ProgressInterval float64 `mapstructure:"progress_interval"` // callbacks per second
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and validates configuration using Viper.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager and loads configuration from
// file, environment and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/triage-edge/")

	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	homeDir, _ := os.UserHomeDir()

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8099)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")

	viper.SetDefault("data.dir", filepath.Join(homeDir, ".triage-edge"))

	viper.SetDefault("artifacts.encoder_model.url", "https://huggingface.co/ekim1394/setfit-specialty-onnx/resolve/main/body/model.onnx")
	viper.SetDefault("artifacts.encoder_model.file", "encoder.onnx")
	viper.SetDefault("artifacts.encoder_model.expected_bytes", int64(90387221))
	viper.SetDefault("artifacts.specialty_head.url", "https://huggingface.co/ekim1394/setfit-specialty-onnx/resolve/main/model_head.onnx")
	viper.SetDefault("artifacts.specialty_head.file", "specialty_head.onnx")
	viper.SetDefault("artifacts.specialty_head.expected_bytes", int64(47143))
	viper.SetDefault("artifacts.condition_head.url", "https://huggingface.co/ekim1394/setfit-specialty-onnx/resolve/main/condition_head.onnx")
	viper.SetDefault("artifacts.condition_head.file", "condition_head.onnx")
	viper.SetDefault("artifacts.condition_head.expected_bytes", int64(58220))
	viper.SetDefault("artifacts.vocabulary.url", "https://huggingface.co/sentence-transformers/all-MiniLM-L6-v2/resolve/main/vocab.txt")
	viper.SetDefault("artifacts.vocabulary.file", "vocab.txt")
	viper.SetDefault("artifacts.vocabulary.expected_bytes", int64(231508))
	viper.SetDefault("artifacts.generative_gguf.url", "https://huggingface.co/ekim1394/medgemma-4b-iq2_xxs-gguf/resolve/main/medgemma-4b-iq2_xxs.gguf")
	viper.SetDefault("artifacts.generative_gguf.file", "medgemma-4b-iq2_xxs.gguf")
	viper.SetDefault("artifacts.generative_gguf.expected_bytes", int64(1546323968))

	viper.SetDefault("inference.sequence_length", 128)
	viper.SetDefault("inference.context_size", 256)
	viper.SetDefault("inference.threads", 4)
	viper.SetDefault("inference.gpu_layers", 0)
	viper.SetDefault("inference.extract_temperature", 0.1)
	viper.SetDefault("inference.extract_top_p", 0.9)
	viper.SetDefault("inference.chat_temperature", 0.7)
	viper.SetDefault("inference.chat_top_p", 0.95)
	viper.SetDefault("inference.max_tokens", 160)
	viper.SetDefault("inference.cache_size", 256)
	viper.SetDefault("inference.onnx_library_path", "")
	viper.SetDefault("inference.progress_interval", 4.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Data.Dir == "" {
		return fmt.Errorf("data directory is required")
	}
	if config.Inference.SequenceLength <= 0 {
		return fmt.Errorf("invalid sequence length: %d", config.Inference.SequenceLength)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// ModelsDir returns the directory holding downloaded model artifacts.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.Data.Dir, "models")
}

// CatalogDir returns the directory holding protocol and drug catalogs.
func (c *Config) CatalogDir() string {
	return filepath.Join(c.Data.Dir, "catalog")
}

// TransferDBPath returns the path to the transfer-state SQLite database.
func (c *Config) TransferDBPath() string {
	return filepath.Join(c.Data.Dir, "transfers.db")
}

// EnsureDataDir creates the data directories if they don't exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.ModelsDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.CatalogDir(), 0755)
}

// Artifact materializes an ArtifactSpec into a domain.ModelArtifact rooted in
// the models directory.
func (c *Config) Artifact(id string, spec ArtifactSpec) domain.ModelArtifact {
	return domain.ModelArtifact{
		ID:            id,
		RemoteURL:     spec.URL,
		LocalPath:     filepath.Join(c.ModelsDir(), spec.File),
		ExpectedBytes: spec.ExpectedBytes,
	}
}

// AllArtifacts lists every artifact the pipeline may need, keyed by ID.
func (c *Config) AllArtifacts() []domain.ModelArtifact {
	return []domain.ModelArtifact{
		c.Artifact("encoder", c.Artifacts.EncoderModel),
		c.Artifact("specialty-head", c.Artifacts.SpecialtyHead),
		c.Artifact("condition-head", c.Artifacts.ConditionHead),
		c.Artifact("vocabulary", c.Artifacts.Vocabulary),
		c.Artifact("generative", c.Artifacts.GenerativeGGUF),
	}
}
