package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency /readyz checks, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 路由依赖。Accounts、Auth、ReadyChecks 可为空
type Deps struct {
	Extraction  *ExtractionHandler
	Accounts    *AccountHandler
	Activation  *ActivationHandler
	Tools       *ToolsHandler
	Auth        Authenticator
	ReadyChecks map[string]Pinger
	MQConnected func() bool
	Logger      *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(d Deps) *Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(d.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(d.ReadyChecks, d.MQConnected))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.GET("/extract_emails", d.Extraction.ExtractEmails)
	r.GET("/check_balance", d.Extraction.CheckBalance)
	r.GET("/check_email_inventory", d.Extraction.CheckInventory)
	r.POST("/get_verification", d.Tools.GetVerification)
	r.POST("/test_proxy", d.Tools.TestProxy)

	// Protected：配置了管理口令时才需要登录
	protected := r.Group("/")
	if d.Auth != nil && d.Auth.Enabled() {
		r.POST("/login", NewAuthHandler(d.Auth).Login)
		protected.Use(AuthMiddleware(d.Auth))
	}
	{
		if d.Accounts != nil {
			protected.GET("/fetch_accounts", d.Accounts.FetchAccounts)
			protected.GET("/get_account", d.Accounts.GetAccount)
			protected.POST("/save_account", d.Accounts.SaveAccount)
			protected.POST("/update_account", d.Accounts.UpdateAccount)
			protected.POST("/delete_account", d.Accounts.DeleteAccount)
		} else {
			noStore := unavailable("account storage is not configured")
			protected.GET("/fetch_accounts", noStore)
			protected.GET("/get_account", noStore)
			protected.POST("/save_account", noStore)
			protected.POST("/update_account", noStore)
			protected.POST("/delete_account", noStore)
		}
		protected.POST("/activate_account", d.Activation.ActivateAccount)
	}

	return &Router{Engine: r}
}

func readyHandler(checks map[string]Pinger, mqConnected func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		if mqConnected != nil && !mqConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func unavailable(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": msg})
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
