// Command rebuild runs reference graph rebuilds outside the API process.
//
// Deployed as a Lambda it handles scheduled EventBridge events. Run locally
// it performs a single rebuild and prints the resulting index status.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"rndindex/application/commands"
	"rndindex/application/queries"
	"rndindex/application/services"
	"rndindex/infrastructure/config"
	"rndindex/infrastructure/di"
	"rndindex/infrastructure/persistence/memory"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var container *di.Container

// HandleScheduledEvent rebuilds the index for an EventBridge schedule tick
func HandleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) error {
	container.Logger.Info("Scheduled rebuild invoked",
		zap.String("event_id", event.ID),
		zap.String("source", event.Source),
		zap.Time("time", event.Time),
	)
	return container.CommandBus.Send(ctx, commands.RebuildIndexCommand{Trigger: services.TriggerScheduled})
}

func main() {
	once := flag.Bool("once", false, "run a single rebuild and print the index status")
	verify := flag.Bool("verify", false, "rebuild twice and fail if the checksums differ")
	seed := flag.String("seed", "", "YAML change log to append before rebuilding")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var cleanup func()
	container, cleanup, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	if cfg.LambdaFunctionName != "" && !*once {
		lambda.Start(HandleScheduledEvent)
		return
	}

	err = runLocal(ctx, *seed, *verify)
	cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild: %v\n", err)
		os.Exit(1)
	}
}

func runLocal(ctx context.Context, seedFile string, verify bool) error {
	if seedFile != "" {
		records, err := memory.LoadSeedFile(seedFile)
		if err != nil {
			return err
		}
		if err := container.ChangeLog.Append(ctx, records...); err != nil {
			return fmt.Errorf("failed to append seed records: %w", err)
		}
	}

	if err := container.CommandBus.Send(ctx, commands.RebuildIndexCommand{Trigger: services.TriggerManual}); err != nil {
		return err
	}

	if verify {
		first := container.Builder.Current()
		if err := container.CommandBus.Send(ctx, commands.RebuildIndexCommand{Trigger: services.TriggerManual}); err != nil {
			return err
		}
		second := container.Builder.Current()
		if second.Watermark == first.Watermark && second.Checksum != first.Checksum {
			return fmt.Errorf("checksum mismatch at watermark %d: %s != %s", first.Watermark, first.Checksum, second.Checksum)
		}
	}

	status, err := container.QueryBus.Ask(ctx, queries.IndexStatusQuery{})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}
