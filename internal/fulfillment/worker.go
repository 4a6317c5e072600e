package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dstarenko/storebot/internal/models"
	"github.com/dstarenko/storebot/internal/notify"
	"github.com/dstarenko/storebot/internal/services"
	"github.com/dstarenko/storebot/pkg/logger"
	"github.com/dstarenko/storebot/pkg/metrics"
)

const (
	defaultInviteSpec       = "@every 60s"
	defaultReapSpec         = "@every 60m"
	defaultSweepSpec        = "@every 2m"
	defaultCartIdleDuration = 24 * time.Hour
)

// Runner coordinates the recurring fulfillment jobs: sending invites to
// approved orders, reaping idle carts, and sweeping expired invites.
//
// Every job is at-least-once: each run re-derives its work set from durable
// state, so a crashed or skipped run self-heals on the next tick. Runs of the
// same job never overlap; different jobs run concurrently.
type Runner struct {
	db      *gorm.DB
	orders  *services.OrderService
	carts   *services.CartService
	channel string
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	inviteSchedule string
	reapSchedule   string
	sweepSchedule  string
	idleThreshold  time.Duration
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithNow overrides the clock used for selection cutoffs.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithInviteSchedule overrides the cron specification for the batch invite sender.
func WithInviteSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.inviteSchedule = spec
		}
	}
}

// WithReapSchedule overrides the cron specification for the idle-cart reaper.
func WithReapSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.reapSchedule = spec
		}
	}
}

// WithSweepSchedule overrides the cron specification for the invite-expiry sweeper.
func WithSweepSchedule(spec string) Option {
	return func(r *Runner) {
		if spec != "" {
			r.sweepSchedule = spec
		}
	}
}

// WithCartIdleThreshold adjusts how long a cart may stay untouched before the
// reaper reclaims it.
func WithCartIdleThreshold(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.idleThreshold = d
		}
	}
}

// NewRunner constructs a Runner. The channel is the chat destination that
// access grants are scoped to.
func NewRunner(db *gorm.DB, orders *services.OrderService, carts *services.CartService, channel string, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("fulfillment: db is required")
	}
	if orders == nil {
		return nil, errors.New("fulfillment: order service is required")
	}
	if carts == nil {
		return nil, errors.New("fulfillment: cart service is required")
	}

	runner := &Runner{
		db:             db,
		orders:         orders,
		carts:          carts,
		channel:        channel,
		now:            time.Now,
		log:            logger.WithModule("fulfillment"),
		inviteSchedule: defaultInviteSpec,
		reapSchedule:   defaultReapSpec,
		sweepSchedule:  defaultSweepSpec,
		idleThreshold:  defaultCartIdleDuration,
	}

	for _, opt := range opts {
		opt(runner)
	}

	if runner.cron == nil {
		runner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return runner, nil
}

// Start registers the three jobs with the cron scheduler and launches it.
// SkipIfStillRunning guarantees a batch completes before the next tick of the
// same job is allowed to start.
func (r *Runner) Start() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"invite_sender", r.inviteSchedule, func(ctx context.Context) error {
			_, err := r.SendPendingInvites(ctx)
			return err
		}},
		{"cart_reaper", r.reapSchedule, func(ctx context.Context) error {
			_, err := r.ReapIdleCarts(ctx)
			return err
		}},
		{"invite_sweeper", r.sweepSchedule, func(ctx context.Context) error {
			_, err := r.SweepExpiredInvites(ctx)
			return err
		}},
	}

	for _, job := range jobs {
		job := job
		log := logger.WithJob(job.name)
		wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).
			Then(cron.FuncJob(func() {
				if err := job.run(context.Background()); err != nil {
					log.Warn("job run failed", zap.Error(err))
				}
			}))
		if _, err := r.cron.AddJob(job.spec, wrapped); err != nil {
			return fmt.Errorf("fulfillment: schedule %s: %w", job.name, err)
		}
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce executes all three jobs sequentially. Primarily used in tests and
// during graceful shutdown.
func (r *Runner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := r.SendPendingInvites(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.ReapIdleCarts(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := r.SweepExpiredInvites(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// SendPendingInvites dispatches invites for every approved order, optionally
// restricted to the supplied user ids. One order's failure never aborts the
// batch; idempotency of the dispatch operation makes redelivery safe.
func (r *Runner) SendPendingInvites(ctx context.Context, userIDs ...string) (int, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", models.OrderStatusApproved).
		Order("created_at")
	if len(userIDs) > 0 {
		query = query.Where("user_id IN ?", userIDs)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return 0, fmt.Errorf("fulfillment: select approved orders: %w", err)
	}

	sent := 0
	for _, order := range orders {
		if _, err := r.orders.DispatchInvite(ctx, order.ID, r.channel); err != nil {
			metrics.JobItemFailures.WithLabelValues("invite_sender").Inc()
			if notify.IsUnreachable(err) {
				r.log.Warn("invite skipped, destination unreachable",
					zap.String("order_id", order.ID), zap.Error(err))
			} else {
				r.log.Warn("invite dispatch failed",
					zap.String("order_id", order.ID), zap.Error(err))
			}
			continue
		}
		metrics.InvitesDispatched.Inc()
		sent++
	}

	return sent, nil
}

// ReapIdleCarts reclaims carts idle past the configured threshold.
func (r *Runner) ReapIdleCarts(ctx context.Context) (int, error) {
	reclaimed, err := r.carts.ReapIdle(ctx, r.idleThreshold)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		metrics.CartsReclaimed.Add(float64(reclaimed))
		r.log.Info("idle carts reclaimed", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// SweepExpiredInvites revokes grants for invite_sent orders whose expiry
// window has passed and that are not yet revoked. The revocation itself is
// guarded by the same predicate the selection uses, so each order is revoked
// at most once.
func (r *Runner) SweepExpiredInvites(ctx context.Context) (int, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND invite_revoked = ? AND invite_expires_at < ?",
			models.OrderStatusInviteSent, false, r.now()).
		Order("invite_expires_at").
		Find(&orders).Error; err != nil {
		return 0, fmt.Errorf("fulfillment: select expired invites: %w", err)
	}

	swept := 0
	for _, order := range orders {
		revoked, err := r.orders.RevokeExpiredInvite(ctx, order.ID, r.channel)
		if err != nil {
			metrics.JobItemFailures.WithLabelValues("invite_sweeper").Inc()
			r.log.Warn("invite revocation failed",
				zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		if revoked {
			metrics.InvitesRevoked.Inc()
			swept++
		}
	}

	return swept, nil
}
