package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/codefair/internal/bot"
	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/dedup"
	"github.com/danielolaszy/codefair/internal/ghapp"
	"github.com/danielolaszy/codefair/internal/http/router"
	"github.com/danielolaszy/codefair/internal/http/webhook"
	"github.com/danielolaszy/codefair/internal/id"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/internal/spdx"
	"github.com/danielolaszy/codefair/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GitHub App webhook server",
	Long: `Run the webhook server of the GitHub App.

The server handles these events:
- installation.created and installation_repositories.added: check every new repository
- push to the default branch: re-check the repository
- issue_comment.created: run maintainer commands on compliance issues

Required environment variables:
  GITHUB_APP_ID, GITHUB_PRIVATE_KEY or GITHUB_PRIVATE_KEY_PATH, GITHUB_WEBHOOK_SECRET

Set REDIS_URL to share the issue and pull request creation guard between
several server instances.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, err := cmd.Flags().GetInt64("node-id")
		if err != nil {
			return err
		}
		return serve(cmd.Context(), nodeID)
	},
}

func init() {
	serveCmd.Flags().Int64("node-id", 1, "Snowflake node id of this instance, unique per replica (0-1023)")
}

func serve(ctx context.Context, nodeID int64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateAppConfig(cfg); err != nil {
		return err
	}

	// Telemetry comes first: the production logger writes to its provider.
	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	setupLogging(cfg, tel != nil)

	if tel != nil {
		logging.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		logging.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	logging.InfoContext(ctx, "codefair starting",
		"env", cfg.Env,
		"bot_login", cfg.Bot.Login,
		"mention", cfg.Bot.Mention)

	if err := id.Init(nodeID); err != nil {
		return fmt.Errorf("failed to initialize snowflake id generator: %w", err)
	}

	catalog, err := spdx.Load(cfg.SPDX.CatalogPath)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "spdx catalog loaded",
		"version", catalog.Version(),
		"licenses", len(catalog.Licenses()))

	guard, closeGuard, err := newGuard(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeGuard()

	app, err := ghapp.New(cfg.GitHub)
	if err != nil {
		return err
	}

	b := bot.New(bot.ClientFactoryFunc(func(ctx context.Context, installationID int64) (bot.Client, error) {
		client, err := app.InstallationClient(ctx, installationID)
		if err != nil {
			return nil, err
		}
		return client, nil
	}), bot.Options{
		BotLogin: cfg.Bot.Login,
		Mention:  cfg.Bot.Mention,
		Licenses: catalog,
		Guard:    guard,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := router.RouterConfig{WebhookPath: cfg.Server.WebhookPath}
	if tel != nil {
		routerCfg.ServiceName = cfg.OTel.ServiceName
	}
	engine := router.New(routerCfg, webhook.NewGitHubWebhookHandler(cfg.GitHub.WebhookSecret, b))

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.InfoContext(ctx, "http server starting",
			"port", cfg.Server.Port,
			"webhook_path", cfg.Server.WebhookPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	logging.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logging.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	logging.InfoContext(shutdownCtx, "shutdown complete")
	return nil
}

// newGuard connects to Redis when it is configured and falls back to a
// guard local to this process.
func newGuard(ctx context.Context, cfg config.RedisConfig) (dedup.Guard, func(), error) {
	if !cfg.Enabled() {
		logging.InfoContext(ctx, "redis disabled, using in-process creation guard")
		return dedup.NewMemoryGuard(cfg.DedupTTL), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logging.InfoContext(ctx, "redis connected", "addr", opts.Addr, "dedup_ttl", cfg.DedupTTL)

	return dedup.NewRedisGuard(client, cfg.DedupTTL), func() {
		if err := client.Close(); err != nil {
			logging.Warn("failed to close redis client", "error", err)
		}
	}, nil
}
