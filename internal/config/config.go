package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Storage  StorageConfig
	Ingest   IngestConfig
	Answer   AnswerConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Backend    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type IngestConfig struct {
	ArtifactDir    string
	PDFDir         string
	WriteArtifacts bool
}

type AnswerConfig struct {
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

type TelegramConfig struct {
	Token string
}

type LogConfig struct {
	InteractionCapacity int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Backend:    "openai",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-ada-002",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Ingest: IngestConfig{
			ArtifactDir:    "planilhas_tratadas",
			PDFDir:         "pdfs",
			WriteArtifacts: true,
		},
		Answer: AnswerConfig{
			Temperature:    0.9,
			MaxTokens:      1000,
			TimeoutSeconds: 10,
		},
		Log: LogConfig{
			InteractionCapacity: 1000,
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "hydrochat-data"
		}
	}
	return filepath.Join(dir, "hydrochat")
}

// Load reads configuration from a .env file in the working directory (if
// present) and the process environment. Environment variables always win
// over .env values, which godotenv guarantees by never overriding keys
// that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	// The API key has no HYDROCHAT_ prefix so the same variable works
	// for every other tool that talks to OpenAI.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}

	if cfg.OpenAI.Backend != "openai" {
		return Config{}, fmt.Errorf("unsupported embedding backend %q: only \"openai\" is available", cfg.OpenAI.Backend)
	}
	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable OPENAI_API_KEY or a .env file")
	}

	return cfg, nil
}
