// Package config centralizes the orchestrator's process-wide configuration
// (§6): environment-variable feature gates and bounds, plus an optional
// static YAML overlay merged on top of defaults. Adapted from the teacher's
// pkg/config.Initialize — load, expand, merge, validate — scaled down from
// the teacher's multi-file agent/chain/MCP registry system to this
// service's flatter, mostly-env-driven surface; ExpandEnv is carried over
// unchanged since ${VAR} substitution in YAML is not domain-specific.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, process-wide configuration. Per-tenant
// TenantCareConfig fallbacks and budget caps have their own loaders
// (tenantconfig.Cache, budget.DefaultCaps) and are not duplicated here;
// this type covers the feature gates and infrastructure settings that sit
// above those packages.
type Config struct {
	AutonomyEnabled         bool `yaml:"autonomy_enabled"`
	ShadowMode              bool `yaml:"shadow_mode"`
	StateWriteEnabled       bool `yaml:"state_write_enabled"`
	WorkflowTriggersEnabled bool `yaml:"workflow_triggers_enabled"`
	WebhookMaxConcurrency   int  `yaml:"webhook_max_concurrency"`
	WebhookBatchSize        int  `yaml:"webhook_batch_size"`
	ConfigCacheMaxSize      int  `yaml:"config_cache_max_size"`
	LeadStagnantDays        int  `yaml:"lead_stagnant_days"`
	DealDecayDays           int  `yaml:"deal_decay_days"`

	DatabaseURL     string `yaml:"database_url"`
	RedisAddr       string `yaml:"redis_addr"`
	SlackBotToken   string `yaml:"slack_bot_token"`
	DashboardURL    string `yaml:"dashboard_url"`
	WebhookBaseURL  string `yaml:"webhook_base_url"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
}

// Initialize loads, validates, and returns ready-to-use configuration: the
// primary entry point, mirroring the teacher's Initialize(ctx, configDir).
// yamlPath may be empty; environment variables always take precedence over
// both the built-in defaults and the YAML overlay.
func Initialize(yamlPath string) (Config, error) {
	log := slog.With("config_path", yamlPath)
	log.Info("initializing configuration")

	cfg, err := load(yamlPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"autonomy_enabled", cfg.AutonomyEnabled,
		"shadow_mode", cfg.ShadowMode,
		"workflow_triggers_enabled", cfg.WorkflowTriggersEnabled,
	)
	return cfg, nil
}

func load(yamlPath string) (Config, error) {
	cfg := Defaults()

	if yamlPath != "" {
		overlay, err := loadYAML(yamlPath)
		if err != nil {
			return Config{}, err
		}
		if overlay != nil {
			if err := mergo.Merge(&cfg, *overlay, mergo.WithOverride); err != nil {
				return Config{}, fmt.Errorf("merge yaml config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	data = ExpandEnv(data)

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &overlay, nil
}

func applyEnv(cfg *Config) {
	applyBool("CARE_AUTONOMY_ENABLED", &cfg.AutonomyEnabled)
	applyBool("CARE_SHADOW_MODE", &cfg.ShadowMode)
	applyBool("CARE_STATE_WRITE_ENABLED", &cfg.StateWriteEnabled)
	applyBool("CARE_WORKFLOW_TRIGGERS_ENABLED", &cfg.WorkflowTriggersEnabled)
	applyInt("CARE_WEBHOOK_MAX_CONCURRENCY", &cfg.WebhookMaxConcurrency)
	applyInt("CARE_WEBHOOK_BATCH_SIZE", &cfg.WebhookBatchSize)
	applyInt("CARE_CONFIG_CACHE_MAX_SIZE", &cfg.ConfigCacheMaxSize)
	applyInt("CARE_LEAD_STAGNANT_DAYS", &cfg.LeadStagnantDays)
	applyInt("CARE_DEAL_DECAY_DAYS", &cfg.DealDecayDays)

	applyString("CARE_DATABASE_URL", &cfg.DatabaseURL)
	applyString("CARE_REDIS_ADDR", &cfg.RedisAddr)
	applyString("SLACK_BOT_TOKEN", &cfg.SlackBotToken)
	applyString("CARE_DASHBOARD_URL", &cfg.DashboardURL)
	applyString("CARE_WEBHOOK_BASE_URL", &cfg.WebhookBaseURL)
	applyString("ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey)
}

func applyBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	*dst = parsed
}

func applyInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = parsed
}

func applyString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func validate(cfg Config) error {
	if cfg.WebhookMaxConcurrency <= 0 {
		return fmt.Errorf("webhook_max_concurrency must be positive, got %d", cfg.WebhookMaxConcurrency)
	}
	if cfg.WebhookBatchSize <= 0 {
		return fmt.Errorf("webhook_batch_size must be positive, got %d", cfg.WebhookBatchSize)
	}
	if cfg.ConfigCacheMaxSize <= 0 {
		return fmt.Errorf("config_cache_max_size must be positive, got %d", cfg.ConfigCacheMaxSize)
	}
	if cfg.LeadStagnantDays <= 0 || cfg.DealDecayDays <= 0 {
		return fmt.Errorf("lead_stagnant_days and deal_decay_days must be positive")
	}
	if !cfg.AutonomyEnabled && !cfg.ShadowMode {
		return fmt.Errorf("autonomy_enabled=false requires shadow_mode=true: without autonomy there must be no silent no-op path")
	}
	return nil
}
