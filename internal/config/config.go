package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the assessment API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string

	// Session timing.
	InviteLinkTTL      time.Duration
	SessionDuration    time.Duration
	ItemsPerSession    int
	EvaluationCacheTTL time.Duration

	// Sandbox execution.
	DockerHost       string
	ExecutionTimeout time.Duration
	CodeRunMemoryMB  int
	CodeRunCPUShares int

	// AI adapters.
	AIProvider      string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	WhisperModel    string

	// Background dispatcher.
	DispatcherWorkers   int
	DispatcherQueueSize int
	TaskTimeout         time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether the service runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASSESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Assess API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("invite_link_ttl", "168h")
	v.SetDefault("session_duration", "60m")
	v.SetDefault("items_per_session", 3)
	v.SetDefault("evaluation.cache_ttl", "5m")
	v.SetDefault("execution_timeout_ms", 5000)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("whisper_model", "whisper-1")
	v.SetDefault("nats.subject", "assess.session.summarized")
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.queue_size", 64)
	v.SetDefault("task_timeout", "2m")

	linkTTL, err := time.ParseDuration(v.GetString("invite_link_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid invite link ttl: %w", err)
	}

	sessionDuration, err := time.ParseDuration(v.GetString("session_duration"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session duration: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("evaluation.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid evaluation cache ttl: %w", err)
	}

	taskTimeout, err := time.ParseDuration(v.GetString("task_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid task timeout: %w", err)
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		NATSSubject:         v.GetString("nats.subject"),
		InviteLinkTTL:       linkTTL,
		SessionDuration:     sessionDuration,
		ItemsPerSession:     v.GetInt("items_per_session"),
		EvaluationCacheTTL:  cacheTTL,
		DockerHost:          v.GetString("docker_host"),
		ExecutionTimeout:    time.Duration(timeoutMs) * time.Millisecond,
		CodeRunMemoryMB:     v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:    v.GetInt("code_run_cpu_shares"),
		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIModel:         v.GetString("openai_model"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
		WhisperModel:        v.GetString("whisper_model"),
		DispatcherWorkers:   v.GetInt("dispatcher.workers"),
		DispatcherQueueSize: v.GetInt("dispatcher.queue_size"),
		TaskTimeout:         taskTimeout,
	}

	if cfg.ItemsPerSession <= 0 {
		cfg.ItemsPerSession = 3
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	if cfg.DispatcherWorkers <= 0 {
		cfg.DispatcherWorkers = 4
	}

	if cfg.DispatcherQueueSize <= 0 {
		cfg.DispatcherQueueSize = 64
	}

	return cfg, nil
}
