package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slipstream/slskbridge/internal/api"
	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/logger"
	"github.com/slipstream/slskbridge/internal/scheduler"
	"github.com/slipstream/slskbridge/internal/scheduler/tasks"
	"github.com/slipstream/slskbridge/internal/startup"
	"github.com/slipstream/slskbridge/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

func RunServeCommand(configPath *string) *cobra.Command {
	var waitForClient bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath, waitForClient)
		},
	}
	command.Flags().BoolVar(&waitForClient, "wait", true, "wait for slskd to answer before serving")

	return command
}

func serve(ctx context.Context, configPath string, waitForClient bool) error {
	bootstrap := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	watcher, err := config.LoadAndWatch(configPath, bootstrap)
	if err != nil {
		return err
	}
	cfg := watcher.Config()
	if err := cfg.Validate(); err != nil {
		return err
	}

	stream := logger.NewStream(0)
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, stream)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Str("slskd", cfg.Slskd.ClientConfig().BaseURL()).
		Msg("starting slskbridge")

	// Only the log level can change without a restart.
	watcher.OnReload(func(next *config.Config) {
		logger.SetLevel(next.Logging.Level)
		log.Info().Str("logLevel", next.Logging.Level).Msg("log level reloaded")
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log.WithComponent("websocket"))
	stream.SetHub(hub)

	client := slskd.NewFromConfig(cfg.Slskd.ClientConfig())
	server := api.NewServer(client, hub, cfg, log.Logger)
	server.SetLogs(logSource{Stream: stream, log: log})

	if waitForClient {
		if err := server.WaitForClient(ctx, startup.DefaultRetryConfig()); err != nil {
			return err
		}
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return err
	}
	if err := registerTasks(sched, server, cfg, log.Logger); err != nil {
		return err
	}
	server.SetScheduler(sched)
	if err := sched.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		return sched.Stop()
	})

	err = g.Wait()
	log.Info().Msg("slskbridge stopped")
	return err
}

func registerTasks(sched *scheduler.Scheduler, server *api.Server, cfg *config.Config, log zerolog.Logger) error {
	if err := tasks.RegisterHealthTasks(sched, server.Downloader(), server.StorageChecker(), &cfg.Health, log); err != nil {
		return err
	}
	return tasks.RegisterSearchCleanupTask(sched, server.Search(), &cfg.Search, log)
}

// logSource serves the in-memory stream and the rotating log file.
type logSource struct {
	*logger.Stream
	log *logger.Logger
}

func (l logSource) FilePath() string {
	return l.log.FilePath()
}
