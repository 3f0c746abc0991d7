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
const DefaultConfigFile = "outlive.yaml"

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
	setString(&cfg.Agent.ID, "OUTLIVE_AGENT_ID")
	setInt(&cfg.Agent.Generation, "OUTLIVE_AGENT_GENERATION")
	setString(&cfg.Agent.ParentID, "OUTLIVE_AGENT_PARENT_ID")
	setString(&cfg.Agent.Network, "OUTLIVE_NETWORK")
	setInt(&cfg.Agent.HistoryTurns, "OUTLIVE_HISTORY_TURNS")
	setString(&cfg.Agent.WalletPath, "OUTLIVE_WALLET_PATH")

	setUint64(&cfg.Survival.Thresholds.Normal, "OUTLIVE_THRESHOLD_NORMAL")
	setUint64(&cfg.Survival.Thresholds.LowCompute, "OUTLIVE_THRESHOLD_LOW_COMPUTE")
	setUint64(&cfg.Survival.Thresholds.Critical, "OUTLIVE_THRESHOLD_CRITICAL")
	setDuration(&cfg.Survival.Cadence.Normal, "OUTLIVE_CADENCE_NORMAL")
	setDuration(&cfg.Survival.Cadence.LowCompute, "OUTLIVE_CADENCE_LOW_COMPUTE")
	setDuration(&cfg.Survival.Cadence.Critical, "OUTLIVE_CADENCE_CRITICAL")
	setDuration(&cfg.Survival.Cadence.Dead, "OUTLIVE_CADENCE_DEAD")

	setDuration(&cfg.Loop.FailureBackoff, "OUTLIVE_FAILURE_BACKOFF")
	setDuration(&cfg.Loop.CallTimeout, "OUTLIVE_CALL_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "OUTLIVE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "OUTLIVE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "OUTLIVE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "OUTLIVE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "OUTLIVE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.LLM.URL, "OUTLIVE_LLM_URL")
	setString(&cfg.LLM.APIKey, "OUTLIVE_LLM_API_KEY")
	setString(&cfg.LLM.PrimaryModel, "OUTLIVE_LLM_PRIMARY_MODEL")
	setString(&cfg.LLM.FallbackModel, "OUTLIVE_LLM_FALLBACK_MODEL")
	setInt(&cfg.LLM.MaxTokens, "OUTLIVE_LLM_MAX_TOKENS")
	setInt(&cfg.LLM.FallbackMaxTokens, "OUTLIVE_LLM_FALLBACK_MAX_TOKENS")

	setString(&cfg.Solana.RPCURL, "OUTLIVE_SOLANA_RPC_URL")
	setString(&cfg.Solana.USDCMint, "OUTLIVE_USDC_MINT")
	setString(&cfg.Solana.USDCTokenAccount, "OUTLIVE_USDC_TOKEN_ACCOUNT")

	setString(&cfg.Jupiter.URL, "OUTLIVE_JUPITER_URL")
	setInt(&cfg.Jupiter.SlippageBps, "OUTLIVE_JUPITER_SLIPPAGE_BPS")

	setString(&cfg.Sources.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.Sources.GitHub.Query, "OUTLIVE_GITHUB_QUERY")
	setString(&cfg.Sources.GitHub.URL, "OUTLIVE_GITHUB_URL")
	setString(&cfg.Sources.Workboard.URL, "OUTLIVE_WORKBOARD_URL")
	setString(&cfg.Sources.Workboard.APIKey, "OUTLIVE_WORKBOARD_API_KEY")

	setDuration(&cfg.Monitor.InterCallDelay, "OUTLIVE_MONITOR_DELAY")
	setUint64(&cfg.Monitor.PaymentTolerance, "OUTLIVE_PAYMENT_TOLERANCE")
	setInt(&cfg.Monitor.CleanupDays, "OUTLIVE_CLEANUP_DAYS")

	setString(&cfg.Server.Port, "OUTLIVE_PORT")
	setString(&cfg.Server.CORSOrigin, "OUTLIVE_CORS_ORIGIN")
	setString(&cfg.Logging.Level, "OUTLIVE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "OUTLIVE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "OUTLIVE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "OUTLIVE_BREAKER_TIMEOUT")
	setString(&cfg.Notify.DiscordWebhook, "OUTLIVE_DISCORD_WEBHOOK")
}

// validate checks that required fields are set and thresholds are ordered.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	th := cfg.Survival.Thresholds
	if !(th.Normal > th.LowCompute && th.LowCompute > th.Critical && th.Critical > 0) {
		return errors.New("survival.thresholds must satisfy normal > low_compute > critical > 0")
	}
	if cfg.Agent.HistoryTurns < 1 {
		return errors.New("agent.history_turns must be >= 1")
	}
	if cfg.LLM.PrimaryModel == "" {
		return errors.New("llm.primary_model is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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
