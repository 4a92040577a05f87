package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger      *zap.Logger
	RateLimiter *RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Dev mounts the /dev routes when set.
	Dev *DevHandler
}

func NewRouter(api *HTTPHandler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", api.HealthCheck)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := r.Group("/api")
	v1.Use(cfg.RateLimiter.Middleware())
	{
		v1.POST("/listings", api.ListItem)
		v1.GET("/listings/:collection/:token_id", api.GetListing)
		v1.PUT("/listings/:collection/:token_id", api.UpdateListing)
		v1.DELETE("/listings/:collection/:token_id", api.CancelListing)
		v1.POST("/listings/:collection/:token_id/buy", api.BuyItem)
		v1.GET("/proceeds/:account", api.GetProceeds)
		v1.POST("/proceeds/withdraw", api.WithdrawProceeds)
	}

	if cfg.Dev != nil {
		dev := r.Group("/dev")
		dev.POST("/assets/mint", cfg.Dev.Mint)
		dev.POST("/assets/approve", cfg.Dev.Approve)
		dev.GET("/assets/:collection/:token_id", cfg.Dev.GetAsset)
		dev.GET("/wallets/:account", cfg.Dev.GetWallet)
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
