package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "chorus.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CHORUS_PORT")
	setString(&cfg.Server.CORSOrigin, "CHORUS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CHORUS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CHORUS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CHORUS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CHORUS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CHORUS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "CHORUS_NATS_ENABLED")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setBool(&cfg.MCP.Enabled, "CHORUS_MCP_ENABLED")
	setString(&cfg.MCP.Command, "CHORUS_MCP_COMMAND")
	setString(&cfg.Logging.Level, "CHORUS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CHORUS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CHORUS_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CHORUS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CHORUS_BREAKER_TIMEOUT")
	setInt64(&cfg.Cache.MaxCostBytes, "CHORUS_CACHE_MAX_COST_BYTES")
	setDuration(&cfg.Cache.ModelInfoTTL, "CHORUS_CACHE_MODEL_INFO_TTL")
	setBool(&cfg.Telemetry.Enabled, "CHORUS_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "CHORUS_OTEL_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "CHORUS_OTEL_INSECURE")

	// Orchestrator
	setInt(&cfg.Orchestrator.HistoryTail, "CHORUS_ORCH_HISTORY_TAIL")
	setInt(&cfg.Orchestrator.RestartTail, "CHORUS_ORCH_RESTART_TAIL")
	setFloat64(&cfg.Orchestrator.RestartThreshold, "CHORUS_ORCH_RESTART_THRESHOLD")
	setInt(&cfg.Orchestrator.DefaultContextWindow, "CHORUS_ORCH_DEFAULT_CONTEXT_WINDOW")
	setInt(&cfg.Orchestrator.SystemPromptOverhead, "CHORUS_ORCH_SYSTEM_PROMPT_OVERHEAD")
	setDuration(&cfg.Orchestrator.InferenceTimeout, "CHORUS_ORCH_INFERENCE_TIMEOUT")
	setInt(&cfg.Orchestrator.QueueWarnDepth, "CHORUS_ORCH_QUEUE_WARN_DEPTH")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.MCP.Enabled && cfg.MCP.Command == "" {
		return errors.New("mcp.command is required when mcp is enabled")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Orchestrator.RestartThreshold <= 0 || cfg.Orchestrator.RestartThreshold > 1 {
		return errors.New("orchestrator.restart_threshold must be in (0, 1]")
	}
	if cfg.Orchestrator.RestartTail < 1 {
		return errors.New("orchestrator.restart_tail must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
