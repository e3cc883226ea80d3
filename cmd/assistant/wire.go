// cmd/assistant/wire.go
package main

import (
	"context"
	"fmt"
	"time"

	"banking-assistant/internal/api"
	"banking-assistant/internal/assistant/clarification"
	"banking-assistant/internal/assistant/datafetch"
	"banking-assistant/internal/assistant/memory"
	"banking-assistant/internal/assistant/normalize"
	"banking-assistant/internal/assistant/orchestrator"
	"banking-assistant/internal/assistant/session"
	"banking-assistant/internal/assistant/timerange"
	"banking-assistant/internal/audit"
	"banking-assistant/internal/common/auth"
	appaws "banking-assistant/internal/common/aws"
	"banking-assistant/internal/common/config"
	"banking-assistant/internal/common/database"
	"banking-assistant/internal/common/logger"
	"banking-assistant/internal/common/observability"
	"banking-assistant/internal/integrations/genai"
	"banking-assistant/internal/integrations/providers"
	"banking-assistant/internal/models"

	"go.uber.org/zap"
)

// app holds everything a subcommand needs once the dependencies are connected.
type app struct {
	cfg      *config.Config
	zap      *zap.Logger
	logger   logger.Logger
	obs      *observability.Observability
	redis    *database.RedisClient
	postgres *database.PostgresClient
	es       *database.ElasticsearchClient
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
	closers  []func() error
}

type wireOptions struct {
	// metrics exports otel metrics through Prometheus and enables tracing when configured.
	metrics bool
	// audit attaches the Postgres and SNS turn sinks.
	audit bool
	// retries bounds the connection attempts per dependency.
	retries int
}

func newLogger(cfg *config.Config) (*zap.Logger, logger.Logger) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return zapLog, logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func wireApp(ctx context.Context, cfg *config.Config, opts wireOptions) (*app, error) {
	zapLog, log := newLogger(cfg)
	a := &app{cfg: cfg, zap: zapLog, logger: log}

	if opts.metrics {
		a.obs = observability.New(cfg.Observability.ServiceName)
		if cfg.Observability.Tracing.Enabled {
			if err := a.obs.EnableTracing(cfg.Observability.ServiceName, cfg.Observability.Tracing.JaegerEndpoint); err != nil {
				log.Warn("tracing disabled", map[string]interface{}{"error": err})
			}
		}
	} else {
		a.obs = observability.NewNoop()
	}

	// --- Redis: session store and rate limiter ---
	err := retryWithBackoff(func() error {
		var err error
		a.redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return a.redis.Ping(ctx)
	}, opts.retries, 2*time.Second, log, "Redis connection")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.redis.Close)
	log.Info("Redis connected successfully", nil)

	// --- Elasticsearch: document provider backend ---
	if cfg.Providers.Backend == "elasticsearch" {
		err = retryWithBackoff(func() error {
			var err error
			a.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return a.es.Ping(ctx)
		}, opts.retries, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			a.close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	ai := genai.NewClient(&genai.Config{
		BaseURL:          cfg.APIs.GenAI.BaseURL,
		APIKey:           cfg.APIs.GenAI.APIKey,
		Timeout:          config.GetDuration(cfg.APIs.GenAI.Timeout),
		IntentTimeout:    config.GetDuration(cfg.APIs.GenAI.IntentTimeout),
		TimeRangeTimeout: config.GetDuration(cfg.APIs.GenAI.TimeRangeTimeout),
		DraftTimeout:     config.GetDuration(cfg.APIs.GenAI.DraftTimeout),
	}, log)

	registry, err := providers.New(cfg.Providers, a.es, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("wire providers: %w", err)
	}

	a.sessions = session.NewManager(a.redis.Client, session.Options{
		KeyPrefix:       cfg.Database.Redis.KeyPrefix,
		IdleTTL:         cfg.Assistant.IdleTTL(),
		RetentionTTL:    cfg.Assistant.RetentionTTL(),
		DefaultTimezone: cfg.Assistant.DefaultTimezone,
	}, log)

	loc, err := time.LoadLocation(cfg.Assistant.DefaultTimezone)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load default timezone: %w", err)
	}

	recorder, err := a.wireAudit(ctx, opts)
	if err != nil {
		a.close()
		return nil, err
	}

	deps := orchestrator.Deps{
		Sessions: a.sessions,
		Intents:  ai,
		Drafter:  ai,
		Language: ai,
		Screener: ai,
		TimeRanges: timerange.NewResolver(ai, log,
			timerange.WithDefaultTimezone(loc),
			timerange.WithEscalationTimeout(config.GetDuration(cfg.APIs.GenAI.TimeRangeTimeout))),
		Clarification: clarification.NewCoordinator(a.sessions, log,
			clarification.WithFallbacks(models.ParseDomain(cfg.Assistant.FallbackDomain), cfg.Assistant.MainAccountAlias)),
		Fetcher:       datafetch.NewCoordinator(registry, log),
		Normalizer:    normalize.NewEngine(log),
		Memory:        memory.New(cfg.Assistant.SummaryCap, cfg.Assistant.HistoryWindow),
		Observability: a.obs,
	}
	if recorder != nil {
		deps.Recorder = recorder
	}

	a.orch = orchestrator.New(deps, orchestratorConfig(cfg), log)
	return a, nil
}

// wireAudit returns nil when no sink is enabled.
func (a *app) wireAudit(ctx context.Context, opts wireOptions) (*audit.Fanout, error) {
	if !opts.audit {
		return nil, nil
	}
	cfg := a.cfg
	fanout := audit.NewFanout(a.logger)

	if cfg.Audit.Postgres.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			a.postgres, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return a.postgres.Ping(ctx)
		}, opts.retries, 2*time.Second, a.logger, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.postgres.Close)

		pg := audit.NewPostgresRecorder(a.postgres.DB)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure audit schema: %w", err)
		}
		fanout.Add("postgres", pg)
		a.logger.Info("PostgreSQL audit sink ready", nil)
	}

	if cfg.Audit.SNS.Enabled {
		client, err := appaws.NewSNSClient(ctx, cfg.Audit.SNS.Region)
		if err != nil {
			return nil, fmt.Errorf("create sns client: %w", err)
		}
		fanout.Add("sns", audit.NewSNSPublisher(client, cfg.Audit.SNS.TopicARN))
		a.logger.Info("SNS audit sink ready", map[string]interface{}{"topicArn": cfg.Audit.SNS.TopicARN})
	}

	if fanout.Len() == 0 {
		return nil, nil
	}
	return fanout, nil
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	return orchestrator.Config{
		WorkingLanguage:    cfg.Assistant.WorkingLanguage,
		ScreeningEnabled:   cfg.Assistant.ScreeningEnabled,
		ScreeningFailOpen:  cfg.Assistant.ScreeningFailOpen,
		TranslationEnabled: cfg.Assistant.TranslationEnabled,
	}
}

func newIdentifier(cfg config.AuthConfig) api.Identifier {
	if cfg.Mode == "keycloak" {
		return api.KeycloakIdentifier{
			Introspector: auth.NewKeycloakClient(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret),
			Claim:        cfg.Keycloak.CustomerAttr,
		}
	}
	return api.HeaderIdentifier{Header: cfg.TrustedHeader}
}

// readinessChecks probes every connected backing store.
func (a *app) readinessChecks() []api.Option {
	opts := []api.Option{api.WithReadinessCheck("redis", a.redis.Ping)}
	if a.postgres != nil {
		opts = append(opts, api.WithReadinessCheck("postgres", a.postgres.Ping))
	}
	if a.es != nil {
		opts = append(opts, api.WithReadinessCheck("elasticsearch", a.es.Ping))
	}
	return opts
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing dependency", map[string]interface{}{"error": err})
		}
	}
	a.closers = nil
	if a.obs != nil {
		a.obs.Shutdown()
	}
	_ = a.zap.Sync()
}
