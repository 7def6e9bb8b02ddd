package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	typ   keyType
	env   string
	alt   string // legacy alias, checked when env is unset
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		typ: kString, env: "BANKASSIST_SERVER_ADDR",
		apply: func(cfg *Config, v any) { cfg.Server.Addr = v.(string) },
	},
	{
		typ: kInt, env: "BANKASSIST_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		typ: kString, env: "BANKASSIST_GEMINI_API_KEY", alt: "GEMINI_API_KEY",
		apply: func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_GEMINI_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.Gemini.BaseURL = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_GEMINI_MODEL",
		apply: func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
	},
	{
		typ: kDuration, env: "BANKASSIST_GEMINI_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Gemini.Timeout = v.(time.Duration) },
	},
	{
		typ: kInt, env: "BANKASSIST_GEMINI_MAX_ATTEMPTS",
		apply: func(cfg *Config, v any) { cfg.Gemini.MaxAttempts = v.(int) },
	},
	{
		typ: kString, env: "BANKASSIST_SPEECH_ENDPOINT",
		apply: func(cfg *Config, v any) { cfg.Speech.Endpoint = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_SPEECH_API_KEY", alt: "SPEECH_API_KEY",
		apply: func(cfg *Config, v any) { cfg.Speech.APIKey = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_OCR_BINARY",
		apply: func(cfg *Config, v any) { cfg.OCR.Binary = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_OCR_LANGUAGES",
		apply: func(cfg *Config, v any) { cfg.OCR.Languages = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_STORAGE_DATA_DIR", alt: "DATABASE_PATH",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_UPLOADS_DIR",
		apply: func(cfg *Config, v any) { cfg.Uploads.Dir = v.(string) },
	},
	{
		typ: kString, env: "BANKASSIST_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" && s.alt != "" {
			raw = os.Getenv(s.alt)
		}
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
