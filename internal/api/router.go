package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/app"
	"github.com/dstarenko/storebot/internal/fulfillment"
	"github.com/dstarenko/storebot/internal/services"
)

// NewRouter builds the Gin engine for the reports/ops surface. The chat-bot
// layer consumes the services directly; this API only exposes read-side
// referral reports, health, metrics, and manual job triggers.
func NewRouter(db *gorm.DB, referrals *services.ReferralService, runner *fulfillment.Runner, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if referrals == nil {
		return nil, fmt.Errorf("referral service must be provided")
	}
	if runner == nil {
		return nil, fmt.Errorf("fulfillment runner must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", healthHandler(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	registerReferralRoutes(api, referrals)
	registerJobRoutes(api, runner)

	return r, nil
}
