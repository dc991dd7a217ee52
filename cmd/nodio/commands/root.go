package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/nodio/internal/app"
	"github.com/florianilch/nodio/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodio",
		Usage: "Podio app API client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: app.DefaultConfigLogExporter,
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "Podio API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "api--token-url",
				Usage: "Podio OAuth token endpoint",
				Value: app.DefaultConfigAPITokenURL,
			},
			&cli.DurationFlag{
				Name:  "api--timeout",
				Usage: "timeout per HTTP request",
				Value: app.DefaultConfigAPITimeout,
			},
			&cli.StringFlag{
				Name:  "credentials--app-id",
				Usage: "Podio app id",
			},
			&cli.StringFlag{
				Name:  "credentials--client-id",
				Usage: "OAuth client id",
			},
			&cli.StringFlag{
				Name:  "secrets--storage",
				Usage: "secret storage (file|env|keyring)",
				Value: string(app.DefaultConfigSecretStorage),
			},
		},
		Commands: []*cli.Command{
			itemCommand(),
			commentCommand(),
			taskCommand(),
			secretCommand(),
			serveCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the local HTTP gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: withApp(func(ctx context.Context, _ *cli.Command, application *app.App) error {
			slog.InfoContext(ctx, "starting")

			if err := application.Serve(ctx); err != nil {
				return fmt.Errorf("gateway failed: %w", err)
			}

			slog.InfoContext(ctx, "stopped gracefully")
			return nil
		}),
	}
}

// configAction receives the loaded configuration after logging is set up.
type configAction func(ctx context.Context, cmd *cli.Command, cfg *app.Config) error

// appAction receives a fully constructed App.
type appAction func(ctx context.Context, cmd *cli.Command, application *app.App) error

// withConfig loads configuration and installs the logger before running fn.
// The log pipeline is flushed when fn returns.
func withConfig(fn configAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.LogExporter)
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if shutdownErr := shutdown(context.WithoutCancel(ctx)); shutdownErr != nil && err == nil {
				err = fmt.Errorf("failed to flush logs: %w", shutdownErr)
			}
		}()

		return fn(ctx, cmd, cfg)
	}
}

// withApp builds an App from the loaded configuration before running fn.
func withApp(fn appAction) cli.ActionFunc {
	return withConfig(func(ctx context.Context, cmd *cli.Command, cfg *app.Config) error {
		application, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		return fn(ctx, cmd, application)
	})
}
