// Package config loads the application configuration from defaults, an
// optional YAML file, and environment overrides, and resolves the
// provider credential.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/guidepostlabs/guidepost/internal/advice"
)

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Advice   AdviceConfig   `yaml:"advice"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AdviceConfig configures the chat-completions client.
type AdviceConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// RequestTimeout caps one advice round trip. Zero means no timeout:
	// the call blocks until the provider answers.
	RequestTimeout Duration `yaml:"request_timeout"`
}

// SecretsConfig names the cloud secret holding the API key. An empty name
// skips the secrets store and reads the environment directly.
type SecretsConfig struct {
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

// SessionsConfig selects and tunes the session store.
type SessionsConfig struct {
	Store string      `yaml:"store"`
	TTL   Duration    `yaml:"ttl"`
	Redis RedisConfig `yaml:"redis"`

	// EncryptionKey enables encryption at rest when set. It must decode
	// to 32 bytes of standard base64. EncryptionFallbackKeys are tried on
	// decryption failure, so keys can rotate without dropping sessions.
	EncryptionKey          string   `yaml:"encryption_key"`
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys"`

	// PIIPatterns are regular expressions masked out of conversation text
	// before it is persisted.
	PIIPatterns []string `yaml:"pii_patterns"`
}

// RedisConfig configures the optional Redis session store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Advice: AdviceConfig{
			BaseURL: advice.DefaultBaseURL,
			Model:   advice.DefaultModel,
		},
		Sessions: SessionsConfig{
			Store: StoreMemory,
			TTL:   Duration(30 * time.Minute),
		},
	}
}

// Load builds the configuration. Precedence, lowest to highest: built-in
// defaults, the YAML file at path (missing is fine), environment
// variables. A local .env file is folded into the environment first;
// values already exported win over it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file: defaults plus environment.
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "GUIDEPOST_ADDR")
	setString(&cfg.Advice.BaseURL, "GUIDEPOST_BASE_URL")
	setString(&cfg.Advice.Model, "GUIDEPOST_MODEL")
	setString(&cfg.Secrets.Name, "GUIDEPOST_SECRET_NAME")
	setString(&cfg.Secrets.Region, "GUIDEPOST_SECRET_REGION")
	setString(&cfg.Sessions.Store, "GUIDEPOST_SESSION_STORE")
	setString(&cfg.Sessions.EncryptionKey, "GUIDEPOST_SESSION_ENCRYPTION_KEY")
	setString(&cfg.Sessions.Redis.Addr, "GUIDEPOST_REDIS_ADDR")
	setString(&cfg.Sessions.Redis.Password, "GUIDEPOST_REDIS_PASSWORD")

	if err := setInt(&cfg.Sessions.Redis.DB, "GUIDEPOST_REDIS_DB"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Advice.RequestTimeout, "GUIDEPOST_REQUEST_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&cfg.Sessions.TTL, "GUIDEPOST_SESSION_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = Duration(parsed)
	return nil
}

func (c Config) validate() error {
	switch c.Sessions.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown session store %q (want %q or %q)", c.Sessions.Store, StoreMemory, StoreRedis)
	}
	if c.Sessions.Store == StoreRedis && c.Sessions.Redis.Addr == "" {
		return fmt.Errorf("sessions.redis.addr is required when the %s store is selected", StoreRedis)
	}

	if c.Sessions.EncryptionKey != "" {
		if _, err := decodeKey(c.Sessions.EncryptionKey); err != nil {
			return fmt.Errorf("invalid sessions.encryption_key: %w", err)
		}
	}
	for i, v := range c.Sessions.EncryptionFallbackKeys {
		if _, err := decodeKey(v); err != nil {
			return fmt.Errorf("invalid sessions.encryption_fallback_keys[%d]: %w", i, err)
		}
	}
	for i, p := range c.Sessions.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid sessions.pii_patterns[%d]: %w", i, err)
		}
	}
	return nil
}

// ActiveEncryptionKey returns the decoded encryption key, or nil when
// encryption at rest is disabled. Load already validated the encoding.
func (s SessionsConfig) ActiveEncryptionKey() []byte {
	if s.EncryptionKey == "" {
		return nil
	}
	key, _ := decodeKey(s.EncryptionKey)
	return key
}

// FallbackEncryptionKeys returns the decoded fallback keys.
func (s SessionsConfig) FallbackEncryptionKeys() [][]byte {
	keys := make([][]byte, 0, len(s.EncryptionFallbackKeys))
	for _, v := range s.EncryptionFallbackKeys {
		if key, err := decodeKey(v); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

func decodeKey(value string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("got %d bytes, want 32", len(key))
	}
	return key, nil
}
