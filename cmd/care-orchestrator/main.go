// care-orchestrator is the C.A.R.E. process entry point: it wires
// configuration, the persistence store, the tenant-config cache, the
// trigger worker, and the suggestion gate together and serves the admin
// HTTP surface. Adapted from the teacher's cmd/tarsy/main.go.
package main

import (
	"context"
	stdsql "database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/care-orchestrator/pkg/adminapi"
	"github.com/codeready-toolchain/care-orchestrator/pkg/audit"
	"github.com/codeready-toolchain/care-orchestrator/pkg/budget"
	"github.com/codeready-toolchain/care-orchestrator/pkg/bus"
	"github.com/codeready-toolchain/care-orchestrator/pkg/config"
	"github.com/codeready-toolchain/care-orchestrator/pkg/llmprovider"
	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
	"github.com/codeready-toolchain/care-orchestrator/pkg/noop"
	"github.com/codeready-toolchain/care-orchestrator/pkg/notify/slack"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store/memory"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store/postgres"
	"github.com/codeready-toolchain/care-orchestrator/pkg/suggestion"
	"github.com/codeready-toolchain/care-orchestrator/pkg/tenantconfig"
	"github.com/codeready-toolchain/care-orchestrator/pkg/trigger"
	"github.com/codeready-toolchain/care-orchestrator/pkg/version"
	"github.com/codeready-toolchain/care-orchestrator/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CARE_CONFIG_PATH", ""),
		"Path to an optional YAML configuration overlay")
	envPath := flag.String("env-file", getEnv("CARE_ENV_FILE", ".env"),
		"Path to a .env file to load before reading configuration")
	httpAddr := flag.String("http-addr", getEnv("CARE_HTTP_ADDR", ":8080"),
		"Address the admin HTTP surface listens on")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("no .env file loaded from %s: %v", *envPath, err)
	}

	cfg, err := config.Initialize(*configPath)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	logger := slog.Default()
	logger.Info("starting care-orchestrator", "version", version.Full())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, dbClient := newStore(ctx, cfg, logger)
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(); err != nil {
				logger.Error("error closing database connection", "error", err)
			}
		}()
	}

	promRegistry := prometheus.NewRegistry()
	careMetrics := metrics.NewRegistry(promRegistry)

	configCache := tenantconfig.New(st, tenantconfig.EnvDefaults{
		WebhookBaseURL:    cfg.WebhookBaseURL,
		IsEnabled:         cfg.WorkflowTriggersEnabled,
		StateWriteEnabled: cfg.StateWriteEnabled,
		ShadowMode:        cfg.ShadowMode,
		WebhookTimeoutMS:  3000,
		WebhookMaxRetries: 2,
	}, 60*time.Second, cfg.ConfigCacheMaxSize).
		WithMetrics(careMetrics)

	invalidator, redisClient := newCacheInvalidator(ctx, cfg, configCache, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("error closing redis connection", "error", err)
			}
		}()
	}

	webhookClient := webhook.NewClient(cfg.WebhookMaxConcurrency, logger).WithMetrics(careMetrics)
	webhookBus := bus.New(configCache, webhookClient, logger)
	auditEmitter := audit.NewSlogEmitter(logger)
	generator := newGenerator(cfg, logger)

	gate := suggestion.New(st, generator, webhookBus, auditEmitter, logger).
		WithBudgetCaps(budget.DefaultCaps()).
		WithCriticalNotifier(noop.Notifier{}).
		WithMetrics(careMetrics)

	channel := getEnv("CARE_SLACK_CHANNEL", "")
	if svc := slack.NewService(cfg.SlackBotToken, slack.StaticChannelResolver{Channel: channel}, cfg.DashboardURL); svc != nil {
		gate = gate.WithCriticalNotifier(svc)
	}

	locker := trigger.NewInProcessLocker()
	worker := trigger.NewWorker(st, st, gate, locker, trigger.DefaultConfig(), 30*time.Second, 5*time.Second, logger).
		WithMetrics(careMetrics)

	if cfg.WorkflowTriggersEnabled {
		worker.Start(ctx)
		defer worker.Stop()
		logger.Info("trigger worker started")
	} else {
		logger.Info("trigger worker disabled", "workflow_triggers_enabled", cfg.WorkflowTriggersEnabled)
	}

	var dbHandle *stdsql.DB
	if dbClient != nil {
		dbHandle = dbClient.DB()
	}

	admin := adminapi.NewServer(
		dbHandle,
		adminapi.NewTenantConfigAdapter(configCache),
		locker,
		getEnv("GIN_MODE", "release"),
		promRegistry,
		invalidator,
	)

	logger.Info("admin HTTP surface listening", "addr", *httpAddr)
	if err := admin.Router().Run(*httpAddr); err != nil {
		log.Fatalf("admin HTTP surface failed: %v", err)
	}
}

// newStore selects the persistence adapter: postgres when CARE_DATABASE_URL
// is configured, the in-memory store otherwise (local development and
// demos). dbClient is nil for the in-memory path.
func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, *postgres.Client) {
	if cfg.DatabaseURL == "" {
		logger.Warn("CARE_DATABASE_URL not set, using in-memory store")
		return memory.New(), nil
	}

	dbCfg, err := postgres.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	client, err := postgres.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	return postgres.NewStore(client), client
}

// newCacheInvalidator wires cross-replica tenant-config cache invalidation
// over Redis pub/sub (§4.E) when CARE_REDIS_ADDR is configured; it is a
// nil-safe optional feature otherwise, returning a nil interface and nil
// client. The returned *redis.Client is the caller's to close on shutdown.
func newCacheInvalidator(ctx context.Context, cfg config.Config, cache *tenantconfig.Cache, logger *slog.Logger) (adminapi.TenantInvalidator, *redis.Client) {
	if cfg.RedisAddr == "" {
		logger.Info("CARE_REDIS_ADDR not set, cross-replica cache invalidation disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	invalidator := tenantconfig.NewRedisInvalidator(client, cache, logger)
	invalidator.Start(ctx)
	logger.Info("cross-replica cache invalidation enabled", "redis_addr", cfg.RedisAddr)
	return invalidator, client
}

func newGenerator(cfg config.Config, logger *slog.Logger) suggestion.Generator {
	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, using deterministic mock LLM provider")
		return &llmprovider.MockProvider{}
	}
	return llmprovider.NewClient(cfg.AnthropicAPIKey)
}
