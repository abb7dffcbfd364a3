package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/config"
	"github.com/mcmanager/milkledger/internal/repository/couchdb"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
	"github.com/mcmanager/milkledger/internal/repository/mongodb"
	"github.com/mcmanager/milkledger/internal/repository/sheets"
	"github.com/mcmanager/milkledger/internal/scheduler"
	"github.com/mcmanager/milkledger/internal/server/handlers"
	"github.com/mcmanager/milkledger/internal/server/router"
	billingsvc "github.com/mcmanager/milkledger/internal/service/billing"
	commandsvc "github.com/mcmanager/milkledger/internal/service/commands"
	"github.com/mcmanager/milkledger/internal/service/entry"
	"github.com/mcmanager/milkledger/internal/service/ledger"
	membersvc "github.com/mcmanager/milkledger/internal/service/members"
	ratecardsvc "github.com/mcmanager/milkledger/internal/service/ratecard"
	reportingsvc "github.com/mcmanager/milkledger/internal/service/reporting"
	whatsappsvc "github.com/mcmanager/milkledger/internal/service/whatsapp"
	whatsappclient "github.com/mcmanager/milkledger/pkg/clients/whatsapp"
	"github.com/mcmanager/milkledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, auth, closeStore := openStore(ctx, cfg, baseLogger)
	defer closeStore()

	loc := cfg.Location()

	members := membersvc.NewService(docs, cfg.WhatsApp.CountryCode, logger.Named(baseLogger, "svc.members"))
	rates := ratecardsvc.NewService(docs, cfg.Billing.DefaultPayRate, loc, logger.Named(baseLogger, "svc.ratecard"))
	ledgers := ledger.NewStore(docs, members, loc, logger.Named(baseLogger, "svc.ledger"))
	workspace := entry.NewWorkspace(ledgers, logger.Named(baseLogger, "svc.entry"))
	calculator := billingsvc.NewCalculator(rates, ledgers, workspace, cfg.Billing.PreservePayments, logger.Named(baseLogger, "svc.billing"))

	reportOpts := reportingsvc.Options{
		SheetRange:  cfg.Sheets.LedgerRange,
		CountryCode: cfg.WhatsApp.CountryCode,
		Location:    loc,
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		reportOpts.Sheets = sheetsRepo
	} else {
		baseLogger.Warn("google sheets credentials missing, sheets export disabled")
	}
	reports := reportingsvc.NewService(workspace, members, rates, reportOpts, logger.Named(baseLogger, "svc.reporting"))

	commandDispatcher := commandsvc.NewService(members, reports, loc, logger.Named(baseLogger, "svc.commands"))

	var whatsClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Warn("whatsapp credentials missing, statements are shared as links only")
	}
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, reports, logger.Named(baseLogger, "svc.whatsapp"))

	h := router.Handlers{
		Webhook: handlers.NewWebhookHandler(messagingSvc, logger.Named(baseLogger, "handlers.whatsapp")),
		Members: handlers.NewMemberHandler(members, rates, loc, logger.Named(baseLogger, "handlers.members")),
		Ledgers: handlers.NewLedgerHandler(workspace, calculator, reports, messagingSvc, loc, logger.Named(baseLogger, "handlers.ledgers")),
	}
	opts := router.Options{AdminUser: cfg.Auth.AdminUser}
	if auth != nil {
		opts.Auth = auth
		h.Session = handlers.NewSessionHandler(auth, logger.Named(baseLogger, "handlers.session"))
	}
	engine := router.New(h, opts, logger.Named(baseLogger, "router"))

	var notifier scheduler.Notifier
	if cfg.WhatsApp.Enabled() && cfg.WhatsApp.ManagerID != "" {
		notifier = messagingSvc
	}
	sched := scheduler.NewScheduler(*cfg, workspace, reports, notifier, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	sched.Stop()

	// Edits made since the last autosave tick.
	if saved, err := workspace.FlushDirty(shutdownCtx); err != nil {
		baseLogger.Error("final flush failed", zap.Int("saved", saved), zap.Error(err))
	}
}

// openStore connects the configured document store. auth is nil unless
// sessions are enabled on a CouchDB store.
func openStore(ctx context.Context, cfg *config.Config, base *zap.Logger) (docstore.Store, handlers.Authenticator, func()) {
	switch cfg.Store.Driver {
	case config.DriverMongoDB:
		repo, err := mongodb.NewRepository(ctx, cfg.Store.MongoDB, logger.Named(base, "repo.mongodb"))
		if err != nil {
			base.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		return repo, nil, func() {
			if err := repo.Close(context.Background()); err != nil {
				base.Error("failed to close mongodb connection", zap.Error(err))
			}
		}
	case config.DriverMemory:
		base.Warn("using in-memory document store, data is lost on restart")
		return docstore.NewMemoryStore(), nil, func() {}
	default:
		repo := couchdb.NewRepository(cfg.Store.CouchDB, logger.Named(base, "repo.couchdb"))
		if err := repo.EnsureDatabase(ctx); err != nil {
			base.Fatal("failed to reach couchdb", zap.Error(err))
		}
		if !cfg.Auth.Enabled {
			return repo, nil, func() {}
		}
		return repo, repo, func() {}
	}
}
