package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/api"
	"github.com/Kerhoff/GiftboT/internal/auth"
	"github.com/Kerhoff/GiftboT/internal/config"
	"github.com/Kerhoff/GiftboT/internal/handlers"
	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/preview"
	"github.com/Kerhoff/GiftboT/internal/repository"
	"github.com/Kerhoff/GiftboT/internal/repository/memory"
	"github.com/Kerhoff/GiftboT/internal/repository/postgres"
	"github.com/Kerhoff/GiftboT/internal/service"
	"github.com/Kerhoff/GiftboT/internal/telegram"
	"github.com/Kerhoff/GiftboT/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.Infof("Starting %s...", cfg.AppName)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, l)
	if err != nil {
		l.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	// Collaborators
	hasher := auth.NewHasher(0)
	mailCfg := mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Sender:   cfg.MailSender,
		AppName:  cfg.AppName,
		BaseURL:  cfg.AppBaseURL,
	}
	var m mailer.Mailer
	if cfg.MailEnabled() {
		m = mailer.NewSMTPMailer(mailCfg, l)
	} else {
		l.Warn("SMTP_HOST not set, emails will only be logged")
		m = mailer.NewLogMailer(mailCfg, l)
	}

	// Service layer
	svc := service.New(service.Deps{
		Store:     store,
		Logger:    l,
		Hasher:    hasher,
		Verifier:  auth.NewPasswordVerifier(store.Persons(), hasher),
		Mailer:    m,
		Preview:   preview.NewFetcher(cfg.PreviewTimeout, l),
		Metrics:   service.NewMetrics(prometheus.DefaultRegisterer),
		InviteTTL: cfg.InviteTTL,
		ResetTTL:  cfg.ResetTTL,
	})
	svc.RefreshMetrics(ctx)

	go svc.StartHousekeeping(ctx, cfg.HousekeepingEvery)

	// HTTP API
	apiServer := api.NewServer(svc, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve(l, "HTTP server", httpServer)

	// Prometheus metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve(l, "Metrics server", metricsServer)

	// Telegram bot
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		registerCommands(bot, svc, cfg.AppName, l)

		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		l.Info("TELEGRAM_TOKEN not set, Telegram bot disabled")
	}

	l.Infof("%s started successfully", cfg.AppName)

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	l.Info("Shutting down HTTP servers...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown: %v", err)
	}

	l.Infof("%s stopped", cfg.AppName)
}

// openStore connects the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config, l *logrus.Logger) (repository.Store, error) {
	if cfg.Storage == config.StorageMemory {
		l.Warn("Using in-memory storage, all data is lost on exit")
		return memory.NewStore(), nil
	}

	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		return nil, err
	}

	if cfg.MigrationsEnabled {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return postgres.NewStore(db.DB), nil
}

func registerCommands(bot *telegram.Bot, svc *service.Service, appName string, l *logrus.Logger) {
	bot.RegisterCommand("start", "Welcome and setup", handlers.NewStartHandler(appName, l))
	bot.RegisterCommand("help", "Show all commands", handlers.NewHelpHandler(l))

	// Account handlers
	bot.RegisterCommand("link", "Link your Telegram account", handlers.NewLinkHandler(svc, l))
	bot.RegisterCommand("members", "Show the family", handlers.NewMembersHandler(svc, l))
	bot.RegisterCommand("child", "Add a child profile", handlers.NewChildHandler(svc, l))

	// Wish list handlers
	bot.RegisterCommand("wish", "Add to your wish list", handlers.NewWishAddHandler(svc, l))
	bot.RegisterCommand("wishlist", "View a wish list", handlers.NewWishListHandler(svc, l))
	bot.RegisterCommand("move", "Reorder your wish list", handlers.NewMoveHandler(svc, l))
	bot.RegisterCommand("remove", "Remove a wish", handlers.NewWishRemoveHandler(svc, l))

	// Claim handlers
	claim := handlers.NewClaimHandler(svc, l)
	unclaim := handlers.NewUnclaimHandler(svc, l)
	bot.RegisterCommand("claim", "Claim an item", claim)
	bot.RegisterCommand("unclaim", "Release a claim", unclaim)
	bot.RegisterCommand("myclaims", "Items you are buying", handlers.NewMyClaimsHandler(svc, l))
	bot.RegisterCallback("claim", claim)
	bot.RegisterCallback("unclaim", unclaim)

	// Lifecycle handlers
	bot.RegisterCommand("archive", "Archive a member", handlers.NewArchiveHandler(svc, l))
	bot.RegisterCommand("restore", "Restore a member", handlers.NewRestoreHandler(svc, l))
	bot.RegisterCommand("promote", "Promote a child profile", handlers.NewPromoteHandler(svc, l))
}

func serve(l *logrus.Logger, name string, srv *http.Server) {
	l.Infof("%s listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Errorf("%s error: %v", name, err)
	}
}
