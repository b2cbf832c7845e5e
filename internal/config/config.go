package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string

	AIProvider     string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	QuestionModel  string
	SynthesisModel string
	AdvisorModel   string

	AssessmentConcurrency int
	QuestionTimeout       time.Duration
	RunTimeout            time.Duration
	RetryAttempts         int
	RetryBackoff          time.Duration
	AnswerCacheTTL        time.Duration
	DefaultConfidence     float64
	FrameworkVersion      string

	AdminImportToken string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("KOMPAS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "KOMPAS API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.question_model", "gpt-4o-mini")
	v.SetDefault("ai.synthesis_model", "gpt-4o")
	v.SetDefault("ai.advisor_model", "gpt-4o-mini")
	v.SetDefault("assessment.concurrency", 5)
	v.SetDefault("assessment.question_timeout", "30s")
	v.SetDefault("assessment.run_timeout", "5m")
	v.SetDefault("assessment.retry_attempts", 3)
	v.SetDefault("assessment.retry_backoff", "500ms")
	v.SetDefault("assessment.cache_ttl", "720h")
	v.SetDefault("assessment.default_confidence", 0.8)
	v.SetDefault("assessment.framework_version", "v1")

	questionTimeout, err := parseDuration(v, "assessment.question_timeout", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	runTimeout, err := parseDuration(v, "assessment.run_timeout", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	retryBackoff, err := parseDuration(v, "assessment.retry_backoff", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "assessment.cache_ttl", 720*time.Hour)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),

		AIProvider:     strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:   v.GetString("openai_api_key"),
		OpenAIBaseURL:  v.GetString("openai_base_url"),
		QuestionModel:  v.GetString("ai.question_model"),
		SynthesisModel: v.GetString("ai.synthesis_model"),
		AdvisorModel:   v.GetString("ai.advisor_model"),

		AssessmentConcurrency: v.GetInt("assessment.concurrency"),
		QuestionTimeout:       questionTimeout,
		RunTimeout:            runTimeout,
		RetryAttempts:         v.GetInt("assessment.retry_attempts"),
		RetryBackoff:          retryBackoff,
		AnswerCacheTTL:        cacheTTL,
		DefaultConfidence:     v.GetFloat64("assessment.default_confidence"),
		FrameworkVersion:      v.GetString("assessment.framework_version"),

		AdminImportToken: v.GetString("admin.import_token"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.AssessmentConcurrency <= 0 {
		cfg.AssessmentConcurrency = 5
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}

	if cfg.DefaultConfidence < 0 || cfg.DefaultConfidence > 1 {
		return Config{}, fmt.Errorf("assessment default confidence must be within [0,1]")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
