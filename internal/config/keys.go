package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "HYDROCHAT_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "HYDROCHAT_OPENAI_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
	},
	{
		env: "HYDROCHAT_EMBEDDING_BACKEND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.Backend = v.(string) },
	},
	{
		env: "HYDROCHAT_CHAT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
	},
	{
		env: "HYDROCHAT_EMBED_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
	},
	{
		env: "HYDROCHAT_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "HYDROCHAT_INGEST_ARTIFACT_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Ingest.ArtifactDir = v.(string) },
	},
	{
		env: "HYDROCHAT_INGEST_PDF_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Ingest.PDFDir = v.(string) },
	},
	{
		env: "HYDROCHAT_INGEST_WRITE_ARTIFACTS", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Ingest.WriteArtifacts = v.(bool) },
	},
	{
		env: "HYDROCHAT_ANSWER_TEMPERATURE", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Answer.Temperature = v.(float64) },
	},
	{
		env: "HYDROCHAT_ANSWER_MAX_TOKENS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Answer.MaxTokens = v.(int) },
	},
	{
		env: "HYDROCHAT_ANSWER_TIMEOUT_SECONDS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Answer.TimeoutSeconds = v.(int) },
	},
	{
		env: "HYDROCHAT_TELEGRAM_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Telegram.Token = v.(string) },
	},
	{
		env: "HYDROCHAT_INTERACTION_CAPACITY", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Log.InteractionCapacity = v.(int) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
