package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/server/handlers"
)

// Handlers groups the HTTP adapters served by the engine.
type Handlers struct {
	Webhook *handlers.WebhookHandler
	Session *handlers.SessionHandler
	Members *handlers.MemberHandler
	Ledgers *handlers.LedgerHandler
}

// Options controls access to the API.
type Options struct {
	// Auth resolves session cookies. Nil serves the API without sessions.
	Auth      handlers.Authenticator
	AdminUser string
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, opts Options, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/webhook", h.Webhook.Verify)
	r.POST("/webhook", h.Webhook.Receive)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	admin := []gin.HandlerFunc{}
	if opts.Auth != nil {
		api.POST("/session", h.Session.Login)
		api.GET("/session", h.Session.Current)
		api.DELETE("/session", h.Session.Logout)

		api.Use(requireSession(opts.Auth, logger))
		admin = append(admin, requireAdminToConfirm(opts.AdminUser))
	}

	api.POST("/messages", h.Webhook.SendMessage)

	api.GET("/periods/current", h.Ledgers.CurrentPeriod)
	api.GET("/periods/:period", h.Ledgers.Period)

	api.GET("/members", h.Members.List)
	api.POST("/members", h.Members.Create)
	api.PUT("/members/:custNo", h.Members.Update)

	api.GET("/rate-card", h.Members.RateCard)
	api.POST("/rate-card/items", h.Members.AddRateItem)

	ledgers := api.Group("/ledgers/:period")
	ledgers.GET("", h.Ledgers.Get)
	ledgers.PUT("/entries", h.Ledgers.RecordEntries)
	ledgers.POST("/save", h.Ledgers.Save)
	ledgers.DELETE("/draft", h.Ledgers.DiscardDraft)
	ledgers.POST("/bills", append(admin, h.Ledgers.RunBills)...)
	ledgers.PUT("/bills/:custNo/payment", h.Ledgers.RecordPayment)
	ledgers.GET("/export", h.Ledgers.Export)
	ledgers.POST("/export/sheets", h.Ledgers.ExportSheets)
	ledgers.GET("/passbook/:custNo", h.Ledgers.Passbook)
	ledgers.POST("/passbook/:custNo/share", h.Ledgers.ShareStatement)

	logger.Info("router initialized", zap.Bool("auth", opts.Auth != nil))

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
