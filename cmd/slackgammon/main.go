// Command slackgammon runs the Slack slash-command frontend for GNU
// Backgammon. It accepts slash-command webhooks over HTTP, drives one gnubg
// process per active game, and posts results back through a Slack incoming
// webhook.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/gammonbot/slackgammon/config"
	"github.com/gammonbot/slackgammon/engine"
	"github.com/gammonbot/slackgammon/logger"
	"github.com/gammonbot/slackgammon/manager"
	"github.com/gammonbot/slackgammon/notify"
	"github.com/gammonbot/slackgammon/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "slackgammon",
		Usage: "Slack slash-command frontend for GNU Backgammon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "port to listen on",
			},
			&cli.StringFlag{
				Name:  "slash-token",
				Usage: "Slack slash-command verification token",
			},
			&cli.StringFlag{
				Name:  "webhook-url",
				Usage: "Slack incoming webhook URL",
			},
			&cli.IntFlag{
				Name:  "max-games",
				Usage: "maximum concurrent games",
			},
			&cli.StringFlag{
				Name:  "gnubg-path",
				Usage: "path to the gnubg binary",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger.SetDebug(cmd.Bool("debug"))
	log := logger.Get()

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	webhook := notify.NewWebhook(cfg.WebhookURL)
	factory := func() (manager.EngineProcess, error) {
		proc := engine.New(engine.Options{
			Path:            cfg.GnubgPath,
			ResponseTimeout: time.Duration(cfg.ResponseTimeout),
			TerminateGrace:  time.Duration(cfg.TerminateGrace),
		})
		if err := proc.Start(); err != nil {
			return nil, err
		}
		return proc, nil
	}
	registry := manager.NewRegistry(cfg.MaxGames, factory, webhook)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.New(registry, cfg.SlashToken).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening for slash commands", "addr", cfg.Addr(), "max_games", cfg.MaxGames)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	registry.Shutdown()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// applyFlags layers explicitly-set command-line flags over the loaded
// configuration.
func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("slash-token") {
		cfg.SlashToken = cmd.String("slash-token")
	}
	if cmd.IsSet("webhook-url") {
		cfg.WebhookURL = cmd.String("webhook-url")
	}
	if cmd.IsSet("max-games") {
		cfg.MaxGames = cmd.Int("max-games")
	}
	if cmd.IsSet("gnubg-path") {
		cfg.GnubgPath = cmd.String("gnubg-path")
	}
}
