package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/flowplan/pkg/cmd"
	"github.com/dukex/flowplan/pkg/log"
	"github.com/dukex/flowplan/pkg/otelhelper"
	"github.com/dukex/flowplan/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort = 9091
	serviceName = "flowplan-api"
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Edit, plan and simulate workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL (a path, file://, postgres:// or redis://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "default-executor",
				Usage:   "Executor for nodes that do not name one",
				Value:   "log",
				Sources: cli.EnvVars("DEFAULT_EXECUTOR"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing executor plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowplan API")

			tracer := otelhelper.NoopTracer()

			if command.Bool("otel-enabled") {
				var (
					shutdown func(context.Context) error
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			return run(ctx, command, tracer)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("API exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command, tracer trace.Tracer) error {
	logger := log.WithModule("api")

	registry, err := cmd.NewRegistry(logger, command.String("plugins-path"))
	if err != nil {
		return err
	}

	dispatcher, err := cmd.NewDispatcher(registry, command.String("default-executor"), nil)
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if err := logRunEvents(ctx, eventBus, logger); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	api := NewAPI(
		logger,
		persistence,
		registry,
		workflow.WithExecutor(dispatcher),
		workflow.WithPublisher(eventBus),
		workflow.WithTracer(tracer),
	)

	return api.Start(command.Int("port"))
}
