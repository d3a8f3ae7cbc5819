package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/api"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/broadcast"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/catalog"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/config"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/display"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/handlers"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/ingest"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/query"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/store"
)

// decoderRestartDelay is the pause before a crashed decoder is restarted.
const decoderRestartDelay = 5 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Lookup tables
	cat := catalog.Load(catalog.Paths{
		Capcodes:  cfg.CapcodesFile,
		Ignore:    cfg.IgnoreFile,
		Filter:    cfg.FilterFile,
		Police:    cfg.PoliceFile,
		Fire:      cfg.FireFile,
		Ambulance: cfg.AmbulanceFile,
		Test:      cfg.TestFile,
	}, logger)

	messages := store.NewMessageStore(cfg.MessagesLimit)

	var notifier *display.Notifier
	if cfg.Display {
		notifier = display.NewNotifier()
	}

	loopCfg := ingest.Config{
		Store:     messages,
		Filter:    cat.Filter(),
		Senders:   cat.Senders,
		Directory: cat.Directory,
		Logger:    logger,
	}
	if notifier != nil {
		loopCfg.Notifier = notifier
	}
	loop := ingest.NewLoop(loopCfg)

	// Push sinks
	hub := broadcast.NewHub(logger)
	sinks := []broadcast.Sink{hub}
	services := make(map[string]handlers.Pinger)
	var recent handlers.RecentSource

	if cfg.WebhookURL != "" {
		sinks = append(sinks, broadcast.NewWebhookSink(cfg.WebhookURL, 0))
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook enabled")
	}

	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		sinks = append(sinks, broadcast.NewRedisSink(redisStore))
		services["redis"] = redisStore
		recent = redisStore
		logger.Info().Str("channel", redisStore.Channel()).Msg("connected to Redis")
	}

	if cfg.DatabaseURL != "" {
		pgArchive, err := store.NewPostgresArchive(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgArchive.Close()
		sinks = append(sinks, broadcast.NewArchiveSink("postgres", pgArchive))
		services["postgres"] = pgArchive
		logger.Info().Msg("connected to PostgreSQL")
	}

	if cfg.SQLitePath != "" {
		sqliteArchive, err := store.NewSQLiteArchive(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteArchive.Close()
		sinks = append(sinks, broadcast.NewArchiveSink("sqlite", sqliteArchive))
		services["sqlite"] = sqliteArchive
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite archive opened")
	}

	multi, err := broadcast.NewMultiSink(sinks...)
	if err != nil {
		logger.Fatal().Err(err).Msg("no push sinks")
	}
	scheduler := broadcast.NewScheduler(messages, multi, cfg.ScanInterval, cfg.PostDelay, logger)

	// Create router
	handler := handlers.NewHandler(query.NewService(messages), loop, services)
	if recent != nil {
		handler.WithRecent(recent)
	}
	router := api.NewRouter(logger, handler, hub, cfg.StaticDir)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting P2000 receiver")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	go hub.Run(ctx)
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("broadcast scheduler failed")
		}
	}()
	go runIngest(ctx, cfg, loop, logger)

	// Wait for interrupt signal or the display to quit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	displayDone := make(chan struct{})
	if cfg.Display {
		pager := display.NewPaginator(messages, cfg.DisplayLines, cfg.DisplayWidth, localAddress(cfg.Port))
		program := tea.NewProgram(display.NewModel(pager, notifier), tea.WithAltScreen())
		go func() {
			defer close(displayDone)
			if _, err := program.Run(); err != nil {
				logger.Error().Err(err).Msg("display failed")
			}
		}()
		go func() {
			<-quit
			program.Quit()
		}()
		<-displayDone
	} else {
		<-quit
	}

	logger.Info().Msg("shutting down...")
	cancel()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Int("records", messages.Len()).Msg("receiver stopped")
}

// newLogger logs to stdout, or to LOG_FILE when set. While the terminal
// display owns the screen and no log file is configured, logs are dropped.
func newLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	case cfg.Display:
		out = io.Discard
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.LogFile != ""}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(out).
			With().
			Timestamp().
			Logger()
	}
	return logger, closeFn, nil
}

// runIngest feeds the loop from the configured input. The decoder pipeline
// is restarted when it exits; stdin and replay files are read once.
func runIngest(ctx context.Context, cfg *config.Config, loop *ingest.Loop, logger zerolog.Logger) {
	switch cfg.InputMode {
	case config.InputStdin, config.InputFile:
		path := "-"
		if cfg.InputMode == config.InputFile {
			path = cfg.InputFile
		}
		r, err := ingest.OpenFile(path)
		if err != nil {
			logger.Error().Err(err).Msg("input not opened")
			return
		}
		defer r.Close()
		if err := loop.Run(ctx, r); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("ingestion failed")
		}
		return
	}

	command := cfg.DecoderCommand
	if command == "" {
		if err := ingest.CheckTools(); err != nil {
			logger.Error().Err(err).Msg("configuration is not complete, decoder not started")
			return
		}
		command = ingest.DefaultDecoderCommand(cfg.Frequency, cfg.Gain, cfg.PPMCorrection)
	}

	for {
		src := ingest.NewCommandSource(command, logger)
		r, err := src.Start(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("decoder not started")
		} else {
			err = loop.Run(ctx, r)
			_ = src.Wait()
			if errors.Is(err, context.Canceled) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(decoderRestartDelay):
			logger.Warn().Msg("restarting decoder")
		}
	}
}

// localAddress returns the first non-loopback IPv4 address with port, as
// shown in the display header.
func localAddress(port string) string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
				return net.JoinHostPort(ipNet.IP.String(), port)
			}
		}
	}
	return net.JoinHostPort("127.0.0.1", port)
}
