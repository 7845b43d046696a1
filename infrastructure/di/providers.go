package di

import (
	"context"
	"fmt"
	"time"

	"rndindex/application/commands"
	"rndindex/application/commands/bus"
	commands_handlers "rndindex/application/commands/handlers"
	"rndindex/application/ports"
	"rndindex/application/queries"
	querybus "rndindex/application/queries/bus"
	queries_handlers "rndindex/application/queries/handlers"
	"rndindex/application/services"
	"rndindex/domain/graph"
	"rndindex/domain/references"
	"rndindex/domain/versioning"
	"rndindex/infrastructure/config"
	"rndindex/infrastructure/messaging"
	"rndindex/infrastructure/messaging/eventbridge"
	"rndindex/infrastructure/persistence/dynamodb"
	"rndindex/infrastructure/persistence/memory"
	"rndindex/infrastructure/persistence/postgres"
	"rndindex/pkg/observability"
	"rndindex/pkg/ratelimit"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// lockResource names the rebuild lock in every backend
const lockResource = "reference-graph-rebuild"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return cfg.NewLogger()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvidePostgresPool opens the pool for the postgres backend after applying
// migrations. Other backends get a nil pool.
func ProvidePostgresPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, func(), error) {
	if cfg.ChangeLogBackend != config.BackendPostgres {
		return nil, func() {}, nil
	}

	if cfg.MigrationsEnabled {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// ProvideChangeLogStore selects the change log backend. The memory backend is
// seeded from CHANGELOG_SEED_FILE when set.
func ProvideChangeLogStore(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) (ports.ChangeLogStore, error) {
	switch cfg.ChangeLogBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory change log")
		store := memory.NewChangeLogStore()
		if cfg.ChangeLogSeedFile == "" {
			return store, nil
		}
		records, err := memory.LoadSeedFile(cfg.ChangeLogSeedFile)
		if err != nil {
			return nil, err
		}
		if err := store.Append(ctx, records...); err != nil {
			return nil, err
		}
		logger.Info("Seeded change log",
			zap.String("file", cfg.ChangeLogSeedFile),
			zap.Int("changes", len(records)),
		)
		return store, nil
	case config.BackendDynamoDB:
		return dynamodb.NewChangeLogStore(client, cfg.ChangeLogTable, logger), nil
	case config.BackendPostgres:
		return postgres.NewChangeLogStore(pool, logger), nil
	default:
		return nil, fmt.Errorf("unknown change log backend %q", cfg.ChangeLogBackend)
	}
}

// ProvideRebuildLock picks the lock matching the change log backend
func ProvideRebuildLock(
	cfg *config.Config,
	client *awsdynamodb.Client,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) ports.RebuildLock {
	switch cfg.ChangeLogBackend {
	case config.BackendDynamoDB:
		return dynamodb.NewDistributedLock(client, cfg.LockTable, lockResource, logger)
	case config.BackendPostgres:
		return postgres.NewAdvisoryLock(pool, lockResource, logger)
	default:
		return memory.NewRebuildLock()
	}
}

// ProvideEventPublisher publishes rebuild outcomes to EventBridge, or to the
// log when no bus is configured
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) ports.Metrics {
	namespace := fmt.Sprintf("RND/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("rnd-reference-index", cfg.EnableTracing)
}

// ProvideReferenceTable loads the reference table file, or the built-in table
func ProvideReferenceTable(cfg *config.Config, logger *zap.Logger) (*references.Table, error) {
	if cfg.ReferenceTableFile == "" {
		return references.DefaultTable(), nil
	}
	table, err := references.LoadTableFile(cfg.ReferenceTableFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded reference table",
		zap.String("file", cfg.ReferenceTableFile),
		zap.Int("rules", len(table.Rules)),
	)
	return table, nil
}

// ProvideExtractor creates the attribute reference extractor
func ProvideExtractor(table *references.Table) *references.Extractor {
	return references.NewExtractor(table)
}

// ProvideHistoryBuilder creates the version history builder
func ProvideHistoryBuilder(cfg *config.Config) *versioning.Builder {
	return versioning.NewBuilder(cfg.TimestampResolution)
}

// ProvideGenerationPublisher creates the holder of the published generation
func ProvideGenerationPublisher() *graph.Publisher {
	return graph.NewPublisher()
}

// ProvideGraphBuilder creates the reference graph builder
func ProvideGraphBuilder(
	changeLog ports.ChangeLogStore,
	histories *versioning.Builder,
	extractor *references.Extractor,
	publisher *graph.Publisher,
	lock ports.RebuildLock,
	eventPublisher ports.EventPublisher,
	metrics ports.Metrics,
	tracer *observability.Tracer,
	cfg *config.Config,
	logger *zap.Logger,
) *services.ReferenceGraphBuilder {
	return services.NewReferenceGraphBuilder(
		changeLog,
		histories,
		extractor,
		publisher,
		lock,
		eventPublisher,
		metrics,
		tracer,
		logger,
		services.BuilderOptions{
			Concurrency: cfg.RebuildConcurrency,
			LockTTL:     cfg.RebuildLockTTL,
		},
	)
}

// ProvideRebuildScheduler creates the periodic rebuild scheduler
func ProvideRebuildScheduler(builder *services.ReferenceGraphBuilder, cfg *config.Config, logger *zap.Logger) *services.RebuildScheduler {
	return services.NewRebuildScheduler(builder, cfg.RebuildInterval, logger)
}

// ProvideRebuildLimiter throttles manual rebuild requests per client.
// REBUILD_RATE_LIMIT=0 lets every request through.
func ProvideRebuildLimiter(cfg *config.Config) ratelimit.Limiter {
	return ratelimit.NewSlidingWindowLimiter(cfg.RebuildRateLimit, time.Minute)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	builder *services.ReferenceGraphBuilder,
	cfg *config.Config,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.TimeoutMiddleware(cfg.RebuildTimeout),
	)

	// Register RebuildIndexCommand handler
	rebuildHandler := commands_handlers.NewRebuildIndexHandler(builder, logger)
	err := commandBus.Register(commands.RebuildIndexCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			rebuildCmd, ok := cmd.(commands.RebuildIndexCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return rebuildHandler.Handle(ctx, rebuildCmd)
		},
	})
	if err != nil {
		return nil, err
	}

	return commandBus, nil
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	changeLog ports.ChangeLogStore,
	histories *versioning.Builder,
	builder *services.ReferenceGraphBuilder,
	metrics ports.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.NewLoggingMiddleware(logger))

	// Register GetVersionQuery handler
	getVersionHandler := queries_handlers.NewGetVersionHandler(changeLog, histories, builder, cfg.SourceName, metrics, logger)
	if err := queryBus.Register(queries.GetVersionQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetVersionQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getVersionHandler.Handle(ctx, getQuery)
		},
	}); err != nil {
		return nil, err
	}

	// Register ListVersionsQuery handler
	listVersionsHandler := queries_handlers.NewListVersionsHandler(changeLog, histories, cfg.SourceName, logger)
	if err := queryBus.Register(queries.ListVersionsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListVersionsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listVersionsHandler.Handle(ctx, listQuery)
		},
	}); err != nil {
		return nil, err
	}

	// Register IndexStatusQuery handler
	indexStatusHandler := queries_handlers.NewIndexStatusHandler(builder, logger)
	if err := queryBus.Register(queries.IndexStatusQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			statusQuery, ok := query.(queries.IndexStatusQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return indexStatusHandler.Handle(ctx, statusQuery)
		},
	}); err != nil {
		return nil, err
	}

	return queryBus, nil
}
