// Package config loads journal configuration from the environment and an
// optional YAML file, and wires up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider selects the backing LLM service.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Storage
	DBPath string

	// Prompt templates
	TemplatesDir string

	// LLM backend
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	ModelTimeout    time.Duration

	// Title summarization triggers after this many messages.
	SummaryAfterMessages int

	// HTTP server
	ServerPort string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors Config for the optional YAML config file. Every field
// is optional; unset fields keep their env/default values.
type fileConfig struct {
	DBPath               string `yaml:"db_path"`
	TemplatesDir         string `yaml:"templates_dir"`
	LLMProvider          string `yaml:"llm_provider"`
	LLMModel             string `yaml:"llm_model"`
	OllamaHost           string `yaml:"ollama_host"`
	ModelTimeoutSeconds  int    `yaml:"model_timeout_seconds"`
	SummaryAfterMessages int    `yaml:"summary_after_messages"`
	ServerPort           string `yaml:"server_port"`
	LogFile              string `yaml:"log_file"`
	LogLevel             string `yaml:"log_level"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is honored if present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:       getEnv("JOURNAL_DB_PATH", "journal.db"),
		TemplatesDir: getEnv("JOURNAL_TEMPLATES_DIR", "templates"),

		LLMProvider:     Provider(getEnv("JOURNAL_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("JOURNAL_LLM_MODEL", "llama3:latest"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ModelTimeout:    time.Duration(getEnvInt("JOURNAL_MODEL_TIMEOUT_SECONDS", 120)) * time.Second,

		SummaryAfterMessages: getEnvInt("JOURNAL_SUMMARY_AFTER_MESSAGES", 4),

		ServerPort: getEnv("JOURNAL_SERVER_PORT", "8585"),

		LogFile:  getEnv("JOURNAL_LOG_FILE", "/tmp/journal.log"),
		LogLevel: parseLogLevel(getEnv("JOURNAL_LOG_LEVEL", "INFO")),
	}
}

// LoadFile layers a YAML config file over the env-derived configuration.
// Environment variables win only where the file leaves a field unset.
func LoadFile(path string) (Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.TemplatesDir != "" {
		cfg.TemplatesDir = fc.TemplatesDir
	}
	if fc.LLMProvider != "" {
		cfg.LLMProvider = Provider(fc.LLMProvider)
	}
	if fc.LLMModel != "" {
		cfg.LLMModel = fc.LLMModel
	}
	if fc.OllamaHost != "" {
		cfg.OllamaHost = fc.OllamaHost
	}
	if fc.ModelTimeoutSeconds > 0 {
		cfg.ModelTimeout = time.Duration(fc.ModelTimeoutSeconds) * time.Second
	}
	if fc.SummaryAfterMessages > 0 {
		cfg.SummaryAfterMessages = fc.SummaryAfterMessages
	}
	if fc.ServerPort != "" {
		cfg.ServerPort = fc.ServerPort
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
