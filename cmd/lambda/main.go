package main

import (
	"context"
	"log"
	"time"

	"rndindex/application/commands"
	"rndindex/application/services"
	"rndindex/infrastructure/config"
	"rndindex/infrastructure/di"
	"rndindex/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart     = true
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()
	log.Println("Lambda cold start initiated")

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The cleanup func is dropped: the execution environment owns the process lifetime
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(
		container.CommandBus,
		container.QueryBus,
		rest.Options{
			EnableCORS:     cfg.EnableCORS,
			EnableTracing:  cfg.EnableTracing,
			RebuildLimiter: container.RebuildLimiter,
		},
		container.Logger,
	)
	chiLambda = chiadapter.NewV2(router.Setup())

	log.Printf("Lambda cold start completed in %v", time.Since(coldStartTime))
}

// warmIndex builds a generation on the first invocation of this environment
// and refreshes it when the change log has moved past its watermark.
// A failure is logged and lookups answer "not yet indexed" until the next attempt.
func warmIndex(ctx context.Context) {
	trigger := services.TriggerStartup
	if container.Builder.Current() != nil {
		stale, err := container.Builder.IsStale(ctx)
		if err != nil {
			container.Logger.Warn("Staleness check failed", zap.Error(err))
			return
		}
		if !stale {
			return
		}
		trigger = services.TriggerStale
	}

	if err := container.CommandBus.Send(ctx, commands.RebuildIndexCommand{Trigger: trigger}); err != nil {
		container.Logger.Warn("Rebuild on invocation failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	container.Logger.Debug("Lambda received request",
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("request_id", req.RequestContext.RequestID),
	)

	warmIndex(ctx)

	// Process the request through the Chi router
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	// Add custom headers for monitoring
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}

	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		resp.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}

	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}
	resp.Headers["X-Lambda-Stage"] = req.RequestContext.Stage

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", resp.Body),
		)
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
