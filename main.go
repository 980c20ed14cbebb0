package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource/mssql"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/adapters/datasource/postgres"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/llm"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/logging"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/mcp"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/mcp/tools"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/metrics"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/services"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/validators"
)

// Version is set at build time via ldflags
var Version = "dev"

const snapshotCacheTTL = 5 * time.Minute

// liveDatasource is what both database adapters provide: plan previews for
// dry runs and catalog discovery for schema validation.
type liveDatasource interface {
	datasource.PreviewExecutor
	datasource.SchemaDiscoverer
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("sqlguard-engine failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting sqlguard-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("datasource_driver", cfg.Datasource.Driver),
		zap.String("ai_provider", cfg.AI.Provider))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	glossary, policy, snapshot, err := loadDocuments(cfg, logger)
	if err != nil {
		return err
	}

	// Documents-only mode unless a live datasource is configured.
	var previewer datasource.PreviewExecutor
	provider := schema.MetadataProvider(schema.NewStaticProvider(snapshot))
	if cfg.Datasource.Driver != "" {
		adapter, adapterErr := connectDatasource(ctx, cfg, logger)
		if adapterErr != nil {
			return adapterErr
		}
		defer adapter.Close()

		previewer = adapter
		provider = schema.NewCachingProvider(
			datasource.NewDiscovererProvider(adapter), snapshotCacheTTL, logger)
	}

	var sinks []services.MetricsSink
	if cfg.Metrics.Enabled {
		sinks = append(sinks, metrics.NewPrometheusSink(prometheus.DefaultRegisterer))
		go serveMetrics(cfg.Metrics.Addr, logger)
	}
	collector := services.NewMetricsCollector(logger, sinks...)

	orchestrator := services.NewValidationOrchestrator(
		&cfg.Validation,
		validators.NewSecurityValidator(&cfg.Validation, logger),
		validators.NewSemanticValidator(glossary, &cfg.Validation, logger),
		validators.NewSchemaComplianceValidator(logger),
		validators.NewBusinessLogicValidator(policy, &cfg.Validation, logger),
		provider,
		logger,
	)

	var corrections services.SelfCorrectionEngine
	if cfg.Correction.Enabled {
		corrector, correctorErr := llm.NewCorrector(cfg.AI.Provider, &llm.Config{
			Endpoint:    cfg.AI.Endpoint,
			Model:       cfg.AI.Model,
			APIKey:      cfg.AI.APIKey,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		}, logger)
		if correctorErr != nil {
			return fmt.Errorf("failed to create corrector: %w", correctorErr)
		}
		corrections = services.NewSelfCorrectionEngine(
			corrector, cfg.Correction.ToConfiguration(), orchestrator, provider, logger)
	}

	pipeline := services.NewQueryValidationService(
		orchestrator,
		corrections,
		services.NewDryRunExecutor(previewer, &cfg.DryRun, logger),
		collector,
		&cfg.Correction,
		&cfg.DryRun,
		logger,
	)

	server := mcp.NewServer("sqlguard-engine", cfg.Version, logger)
	tools.RegisterValidationTools(server.MCP(), pipeline, logger)
	tools.RegisterHealthTool(server.MCP(), cfg.Version)

	if err := server.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the process logger. Logs go to stderr; stdout is reserved
// for the MCP stdio transport.
func newLogger(env string) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()
	if env == "local" {
		logConfig = zap.NewDevelopmentConfig()
	}
	logConfig.OutputPaths = []string{"stderr"}
	logConfig.ErrorOutputPaths = []string{"stderr"}
	return logConfig.Build()
}

func loadDocuments(cfg *config.Config, logger *zap.Logger) (*schema.Glossary, *schema.AccessPolicy, *schema.Snapshot, error) {
	glossary := &schema.Glossary{}
	if cfg.Documents.GlossaryPath != "" {
		loaded, err := schema.LoadGlossary(cfg.Documents.GlossaryPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		glossary = loaded
		logger.Info("glossary loaded", zap.Int("terms", len(glossary.Terms)))
	}

	policy := &schema.AccessPolicy{}
	if cfg.Documents.PolicyPath != "" {
		loaded, err := schema.LoadPolicy(cfg.Documents.PolicyPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load access policy: %w", err)
		}
		policy = loaded
		logger.Info("access policy loaded", zap.Int("roles", len(policy.Roles)))
	}

	var snapshot *schema.Snapshot
	if cfg.Documents.SchemaPath != "" {
		loaded, err := schema.LoadSnapshot(cfg.Documents.SchemaPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load schema snapshot: %w", err)
		}
		snapshot = loaded
		logger.Info("schema snapshot loaded", zap.Int("tables", len(snapshot.Tables)))
	}

	return glossary, policy, snapshot, nil
}

func connectDatasource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (liveDatasource, error) {
	connString := cfg.Datasource.ConnectionString()
	logger.Info("connecting to datasource",
		zap.String("driver", cfg.Datasource.Driver),
		zap.String("connection", logging.SanitizeConnectionString(connString)))

	switch cfg.Datasource.Driver {
	case "postgres":
		return postgres.New(ctx, connString, cfg.Datasource.MaxConns, logger)
	case "mssql":
		return mssql.New(ctx, connString, int(cfg.Datasource.MaxConns), logger)
	default:
		return nil, fmt.Errorf("unsupported datasource driver %q", cfg.Datasource.Driver)
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", zap.Error(err))
		os.Exit(1)
	}
}
