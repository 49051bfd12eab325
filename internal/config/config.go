// Package config provides application configuration management using Viper.
// It supports loading from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Telephony    TelephonyConfig
	OpenAI       OpenAIConfig
	Speech       SpeechConfig
	Conversation ConversationConfig
	Campaign     CampaignConfig
	Agent        AgentConfig
	App          AppConfig
	Log          LogConfig
	RateLimit    RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelephonyConfig holds settings for the telephony provider webhooks and
// outbound dialing.
type TelephonyConfig struct {
	AccountSID    string
	AuthToken     string
	FromNumber    string
	WebhookSecret string
	APIURL        string
}

// OpenAIConfig holds settings for the LLM used to naturalize responses and
// analyze finished calls.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// SpeechConfig holds text-to-speech synthesis settings.
type SpeechConfig struct {
	Enabled         bool
	APIKey          string
	APIURL          string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64
	CacheDir        string
	Timeout         time.Duration
}

// ConversationConfig holds the turn-engine limits and thresholds.
type ConversationConfig struct {
	MaxCallSeconds    int
	MaxOffTopic       int
	MaxRetries        int
	MaxResponseChars  int
	MinConfidence     float64
	MinUtteranceChars int
	SessionTTL        time.Duration
}

// CampaignConfig holds outbound dialing limits.
type CampaignConfig struct {
	CallsPerMinute int
	CallingFrom    string // "HH:MM" local time
	CallingUntil   string
	MaxAttempts    int
}

// AgentConfig holds the agent's identity used in greetings and pitches.
type AgentConfig struct {
	Name         string
	BusinessName string
}

// AppConfig holds general application settings.
type AppConfig struct {
	PublicURL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file options
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/callagent")

	// Enable environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Build config struct
	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Environment: v.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
		},
		Telephony: TelephonyConfig{
			AccountSID:    v.GetString("telephony.account_sid"),
			AuthToken:     v.GetString("telephony.auth_token"),
			FromNumber:    v.GetString("telephony.from_number"),
			WebhookSecret: v.GetString("telephony.webhook_secret"),
			APIURL:        v.GetString("telephony.api_url"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      v.GetString("openai.api_key"),
			Model:       v.GetString("openai.model"),
			MaxTokens:   v.GetInt("openai.max_tokens"),
			Temperature: v.GetFloat64("openai.temperature"),
			Timeout:     v.GetDuration("openai.timeout"),
		},
		Speech: SpeechConfig{
			Enabled:         v.GetBool("speech.enabled"),
			APIKey:          v.GetString("speech.api_key"),
			APIURL:          v.GetString("speech.api_url"),
			VoiceID:         v.GetString("speech.voice_id"),
			Stability:       v.GetFloat64("speech.stability"),
			SimilarityBoost: v.GetFloat64("speech.similarity_boost"),
			CacheDir:        v.GetString("speech.cache_dir"),
			Timeout:         v.GetDuration("speech.timeout"),
		},
		Conversation: ConversationConfig{
			MaxCallSeconds:    v.GetInt("conversation.max_call_seconds"),
			MaxOffTopic:       v.GetInt("conversation.max_off_topic"),
			MaxRetries:        v.GetInt("conversation.max_retries"),
			MaxResponseChars:  v.GetInt("conversation.max_response_chars"),
			MinConfidence:     v.GetFloat64("conversation.min_confidence"),
			MinUtteranceChars: v.GetInt("conversation.min_utterance_chars"),
			SessionTTL:        v.GetDuration("conversation.session_ttl"),
		},
		Campaign: CampaignConfig{
			CallsPerMinute: v.GetInt("campaign.calls_per_minute"),
			CallingFrom:    v.GetString("campaign.calling_from"),
			CallingUntil:   v.GetString("campaign.calling_until"),
			MaxAttempts:    v.GetInt("campaign.max_attempts"),
		},
		Agent: AgentConfig{
			Name:         v.GetString("agent.name"),
			BusinessName: v.GetString("agent.business_name"),
		},
		App: AppConfig{
			PublicURL: v.GetString("app.public_url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "callagent")
	v.SetDefault("database.name", "callagent")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.connection_max_lifetime", "5m")

	// Telephony defaults
	v.SetDefault("telephony.api_url", "https://api.twilio.com")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", "5s")

	// Speech defaults
	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.api_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.voice_id", "EXAVITQu4vr4xnSDxMaL")
	v.SetDefault("speech.stability", 0.5)
	v.SetDefault("speech.similarity_boost", 0.75)
	v.SetDefault("speech.cache_dir", "audio_cache")
	v.SetDefault("speech.timeout", "10s")

	// Conversation defaults
	v.SetDefault("conversation.max_call_seconds", 270)
	v.SetDefault("conversation.max_off_topic", 3)
	v.SetDefault("conversation.max_retries", 2)
	v.SetDefault("conversation.max_response_chars", 250)
	v.SetDefault("conversation.min_confidence", 0.3)
	v.SetDefault("conversation.min_utterance_chars", 2)
	v.SetDefault("conversation.session_ttl", "10m")

	// Campaign defaults
	v.SetDefault("campaign.calls_per_minute", 2)
	v.SetDefault("campaign.calling_from", "09:00")
	v.SetDefault("campaign.calling_until", "17:00")
	v.SetDefault("campaign.max_attempts", 3)

	// Agent defaults
	v.SetDefault("agent.name", "Petra")
	v.SetDefault("agent.business_name", "Moravia Webworks")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Password == "" {
		missing = append(missing, "DATABASE_PASSWORD")
	}
	if c.Telephony.AuthToken == "" {
		missing = append(missing, "TELEPHONY_AUTH_TOKEN")
	}
	if c.App.PublicURL == "" {
		missing = append(missing, "APP_PUBLIC_URL")
	}
	if c.Speech.Enabled && c.Speech.APIKey == "" {
		missing = append(missing, "SPEECH_API_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Conversation.MaxCallSeconds <= 0 {
		return fmt.Errorf("conversation.max_call_seconds must be positive, got %d", c.Conversation.MaxCallSeconds)
	}
	if c.Conversation.MinConfidence < 0 || c.Conversation.MinConfidence > 1 {
		return fmt.Errorf("conversation.min_confidence must be in [0, 1], got %v", c.Conversation.MinConfidence)
	}
	if c.Campaign.CallsPerMinute <= 0 {
		return fmt.Errorf("campaign.calls_per_minute must be positive, got %d", c.Campaign.CallsPerMinute)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
