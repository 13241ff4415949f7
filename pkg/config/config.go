// Package config loads gateway configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the variable holding the optional YAML config path.
const FileEnv = "EKA_CONFIG"

// Config holds all gateway settings. Backends with an empty URL are disabled.
type Config struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
	LogLevel   string `yaml:"log_level"`

	Neo4jURL  string `yaml:"neo4j_url"`
	Neo4jUser string `yaml:"neo4j_user"`
	Neo4jPass string `yaml:"neo4j_pass"`

	NATSURL string `yaml:"nats_url"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
	OllamaURL        string `yaml:"ollama_url"`
	EmbedModel       string `yaml:"embed_model"`
	EmbedDims        int    `yaml:"embed_dims"`

	ChatBackendURL string        `yaml:"chat_backend_url"`
	ChatTimeout    time.Duration `yaml:"chat_timeout"`
	SpeechURL      string        `yaml:"speech_url"`

	WorkshopAPIURL  string  `yaml:"workshop_api_url"`
	WorkshopAPIRate float64 `yaml:"workshop_api_rate"` // requests per second

	SupabaseJWTSecret string `yaml:"supabase_jwt_secret"`
	JWTAudience       string `yaml:"jwt_audience"`

	SessionTTL    time.Duration `yaml:"session_ttl"`
	SupplierGSTIN string        `yaml:"supplier_gstin"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:             "8080",
		CORSOrigin:       "*",
		LogLevel:         "info",
		Neo4jUser:        "neo4j",
		QdrantCollection: "eka_job_cards",
		EmbedModel:       "nomic-embed-text",
		EmbedDims:        768,
		ChatBackendURL:   "http://localhost:8000",
		ChatTimeout:      60 * time.Second,
		WorkshopAPIRate:  10,
		JWTAudience:      "authenticated",
		SessionTTL:       2 * time.Hour,
	}
}

// Load builds the configuration. path may be empty, in which case $EKA_CONFIG
// is consulted; a missing file is only an error when a path was given.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = envOr("PORT", c.Port)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.Neo4jURL = envOr("NEO4J_URL", c.Neo4jURL)
	c.Neo4jUser = envOr("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPass = envOr("NEO4J_PASS", c.Neo4jPass)
	c.NATSURL = envOr("NATS_URL", c.NATSURL)
	c.QdrantURL = envOr("QDRANT_URL", c.QdrantURL)
	c.QdrantCollection = envOr("QDRANT_COLLECTION", c.QdrantCollection)
	c.OllamaURL = envOr("OLLAMA_URL", c.OllamaURL)
	c.EmbedModel = envOr("EMBED_MODEL", c.EmbedModel)
	c.ChatBackendURL = envOr("CHAT_BACKEND_URL", c.ChatBackendURL)
	c.SpeechURL = envOr("SPEECH_URL", c.SpeechURL)
	c.WorkshopAPIURL = envOr("WORKSHOP_API_URL", c.WorkshopAPIURL)
	c.SupabaseJWTSecret = envOr("SUPABASE_JWT_SECRET", c.SupabaseJWTSecret)
	c.JWTAudience = envOr("JWT_AUDIENCE", c.JWTAudience)
	c.SupplierGSTIN = envOr("SUPPLIER_GSTIN", c.SupplierGSTIN)

	var errs []error
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_TTL: %w", err))
		} else {
			c.SessionTTL = d
		}
	}
	if v := os.Getenv("CHAT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CHAT_TIMEOUT: %w", err))
		} else {
			c.ChatTimeout = d
		}
	}
	if v := os.Getenv("EMBED_DIMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("EMBED_DIMS: %w", err))
		} else {
			c.EmbedDims = n
		}
	}
	if v := os.Getenv("WORKSHOP_API_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("WORKSHOP_API_RATE: %w", err))
		} else {
			c.WorkshopAPIRate = f
		}
	}
	return errors.Join(errs...)
}

// Validate reports settings the gateway cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.Port == "" {
		missing = append(missing, "port")
	}
	if c.ChatBackendURL == "" {
		missing = append(missing, "chat_backend_url")
	}
	if c.SupabaseJWTSecret == "" {
		missing = append(missing, "supabase_jwt_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session_ttl must be positive, got %s", c.SessionTTL)
	}
	if c.WorkshopAPIRate <= 0 {
		return fmt.Errorf("config: workshop_api_rate must be positive, got %g", c.WorkshopAPIRate)
	}
	return nil
}

// SpeechBaseURL is the TTS host, defaulting to the chat backend.
func (c Config) SpeechBaseURL() string {
	if c.SpeechURL != "" {
		return c.SpeechURL
	}
	return c.ChatBackendURL
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
