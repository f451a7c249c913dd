// Command tmhi-bot runs the T-MHI community bot. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Connects to Discord, syncs every guild it is in and dispatches commands.
//   - Restores clock, timer and stopwatch widgets once the gateway is ready.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tmhi/discord-bot/clock"
	"github.com/tmhi/discord-bot/commands"
	"github.com/tmhi/discord-bot/config"
	"github.com/tmhi/discord-bot/crypto"
	"github.com/tmhi/discord-bot/db"
	"github.com/tmhi/discord-bot/discord"
	"github.com/tmhi/discord-bot/server"
	"github.com/tmhi/discord-bot/telemetry"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "tmhi-bot",
		Usage:   "T-MHI community Discord bot",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: config.DefaultEnvFile, Usage: "dotenv file loaded before the environment is read"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", EnvVars: []string{"LOG_FORMAT"}, Usage: "text or json"},
			&cli.StringFlag{Name: "http-addr", EnvVars: []string{"HTTP_ADDR"}, Usage: "listen address of the health and metrics server"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("bot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadFrom(c.String("env-file"))
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := c.String("log-format"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := c.String("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("tmhi-bot", version)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DBDsn, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; the embedded statement runner covers
	// databases golang-migrate cannot drive.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
	}

	gwOpts := []db.Option{db.WithOperator(cfg.OperatorID)}
	if cfg.EncryptionKey != "" {
		sealer, err := crypto.NewSealer(cfg.EncryptionKey)
		if err != nil {
			return err
		}
		gwOpts = append(gwOpts, db.WithSealer(sealer))
	} else {
		slog.Warn("ENCRYPTION_KEY not set; member e-mail addresses are stored unencrypted")
	}
	gateway := db.NewGateway(database, gwOpts...)

	session, err := discord.New(cfg.DiscordToken)
	if err != nil {
		return err
	}

	forget := func(ctx context.Context, w clock.Widget) {
		if _, err := gateway.DeleteClock(ctx, w.ID()); err != nil {
			slog.Error("failed to delete widget", slog.String("widget", w.ID()), slog.Any("err", err))
		}
	}
	clocks := clock.NewManager(session, clock.OnGone(forget), clock.OnFinish(forget))
	defer clocks.StopAll()

	dispatcher := commands.NewDispatcher(gateway, session, clocks, commands.Config{
		Version:        version,
		DocsURL:        cfg.DocsURL,
		CommandDocsURL: cfg.CommandDocsURL,
	})
	session.Bind(ctx, dispatcher, func(ctx context.Context) {
		n, err := dispatcher.RestoreWidgets(ctx, session)
		if err != nil {
			slog.Error("failed to restore widgets", slog.Any("err", err))
			return
		}
		slog.Info("widgets restored", slog.Int("count", n))
	})

	router := server.NewRouter(server.Deps{
		Store: gateway,
		MigrationVersion: func(ctx context.Context) (uint, bool, error) {
			return db.GetMigrationVersion(ctx, database)
		},
		Connected:     session.Connected,
		ActiveWidgets: clocks.Len,
		Version:       version,
	})
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, router); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	if err := session.Run(ctx); err != nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}

// setupLogging installs the default slog logger. Unknown values were
// rejected by config validation.
func setupLogging(level, format string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}
