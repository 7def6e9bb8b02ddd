// Package config loads service configuration from defaults, an optional
// .env file, and BANKASSIST_* environment variables, in that order.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Speech  SpeechConfig
	OCR     OCRConfig
	Storage StorageConfig
	Uploads UploadsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Addr string
	Port int
}

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

type SpeechConfig struct {
	Endpoint string
	APIKey   string
}

type OCRConfig struct {
	Binary    string
	Languages string
}

type StorageConfig struct {
	DataDir string
}

type UploadsConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr: "127.0.0.1",
			Port: 8000,
		},
		Gemini: GeminiConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-1.5-flash",
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
		},
		Speech: SpeechConfig{
			Endpoint: "https://speech.googleapis.com/v1/speech:recognize",
		},
		OCR: OCRConfig{
			Binary:    "tesseract",
			Languages: "hin+eng+kan+tam+ben",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Uploads: UploadsConfig{
			Dir: "uploads",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. A .env file in the working directory is applied
// to the environment first (missing file is fine), then BANKASSIST_* env
// vars override defaults. The Gemini API key is required.
func Load() (Config, error) {
	// Ignore the error: a missing .env file simply means env-only config.
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Gemini API key. Set BANKASSIST_GEMINI_API_KEY (or GEMINI_API_KEY in .env)")
	}
	return cfg, nil
}
