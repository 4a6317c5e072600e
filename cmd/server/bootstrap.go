package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/api"
	"github.com/dstarenko/storebot/internal/app"
	"github.com/dstarenko/storebot/internal/chat"
	"github.com/dstarenko/storebot/internal/database"
	"github.com/dstarenko/storebot/internal/fulfillment"
	"github.com/dstarenko/storebot/internal/notify"
	"github.com/dstarenko/storebot/internal/services"
)

// runtimeStack bundles the long-lived components of the fulfillment backend.
type runtimeStack struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Orders   *services.OrderService
	Carts    *services.CartService
	Referral *services.ReferralService
	Sessions *chat.SessionCache
	Runner   *fulfillment.Runner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, services, worker, and router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	gin.SetMode(gin.ReleaseMode)

	db, err := database.Open(database.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		Options:  cfg.Database.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	notifier, err := notify.NewTelegramNotifier(notify.TelegramSettings{
		Enabled: cfg.Telegram.Enabled,
		Token:   cfg.Telegram.Token,
		APIBase: cfg.Telegram.APIBase,
		Timeout: cfg.Telegram.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise notifier: %w", err)
	}

	orders, err := services.NewOrderService(db, notifier,
		services.WithInviteExpiry(cfg.Fulfillment.InviteExpiry),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise order service: %w", err)
	}

	carts, err := services.NewCartService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise cart service: %w", err)
	}

	referral, err := services.NewReferralService(db,
		services.WithReferralMaxDepth(cfg.Referral.MaxDepth),
		services.WithManagerReportDepth(cfg.Referral.ManagerDepth),
		services.WithReferralCodeLength(cfg.Referral.CodeLength),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise referral service: %w", err)
	}

	runner, err := fulfillment.NewRunner(db, orders, carts, cfg.Telegram.ChannelID,
		fulfillment.WithInviteSchedule(cfg.Fulfillment.InviteSchedule),
		fulfillment.WithReapSchedule(cfg.Fulfillment.ReapSchedule),
		fulfillment.WithSweepSchedule(cfg.Fulfillment.SweepSchedule),
		fulfillment.WithCartIdleThreshold(cfg.Fulfillment.CartIdleThreshold),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise fulfillment runner: %w", err)
	}

	router, err := api.NewRouter(db, referral, runner, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise router: %w", err)
	}

	log.Info("runtime initialised",
		zap.String("database", cfg.Database.Driver),
		zap.Bool("telegram", cfg.Telegram.Enabled),
	)

	return &runtimeStack{
		DB:       db,
		Notifier: notifier,
		Orders:   orders,
		Carts:    carts,
		Referral: referral,
		Sessions: chat.NewSessionCache(cfg.Sessions.TTL),
		Runner:   runner,
		Router:   router,
	}, nil
}

// Shutdown releases held resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil || s.DB == nil {
		return
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		log.Warn("database handle unavailable at shutdown", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
