package sweeper

import (
	"context"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/metrics"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
)

type PlanExpirer interface {
	ExpireOverduePlans(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error)
}

type InvoiceMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type SessionSkipper interface {
	SkipStaleSessions(ctx context.Context, asOf time.Time) (int64, error)
}

// Result counts what one sweep changed.
type Result struct {
	PlansExpired    int64
	InvoicesOverdue int64
	SessionsSkipped int64
}

type Params struct {
	Plans    PlanExpirer
	Invoices InvoiceMarker
	// Sessions is optional; nil leaves stale Scheduled sessions alone.
	Sessions SessionSkipper
	Interval time.Duration
	Now      func() time.Time
	Metrics  *metrics.Manager
}

// Sweeper periodically applies the date-driven status changes that no request triggers:
// plan expiry, overdue invoices and stale sessions.
type Sweeper struct {
	plans    PlanExpirer
	invoices InvoiceMarker
	sessions SessionSkipper
	interval time.Duration
	now      func() time.Time
	metrics  *metrics.Manager
}

func New(p Params) *Sweeper {
	if p.Interval <= 0 {
		p.Interval = time.Hour
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NewTestManager()
	}
	return &Sweeper{
		plans:    p.Plans,
		invoices: p.Invoices,
		sessions: p.Sessions,
		interval: p.Interval,
		now:      p.Now,
		metrics:  p.Metrics,
	}
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	log.WithField("interval", s.interval.String()).Info("sweeper started")
	defer log.Info("sweeper stopped")

	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// lastZone is the final zone to enter any calendar date. A date begun there has begun for
// every client, whatever their timezone.
var lastZone = time.FixedZone("UTC-12", -12*60*60)

// AsOf returns the latest calendar date that every client has reached. Sweeping with it
// never expires a plan on the last day of a client behind the server's timezone.
func (s *Sweeper) AsOf() time.Time {
	return domain.Today(s.now(), lastZone)
}

func (s *Sweeper) tick(ctx context.Context) {
	asOf := s.AsOf()
	res, err := s.SweepOnce(ctx, asOf)
	if err != nil {
		log.WithError(err).WithField("as_of", asOf.Format(domain.DateLayout)).Error("sweep failed")
		return
	}
	log.WithFields(log.Fields{
		"as_of":            asOf.Format(domain.DateLayout),
		"plans_expired":    res.PlansExpired,
		"invoices_overdue": res.InvoicesOverdue,
		"sessions_skipped": res.SessionsSkipped,
	}).Debug("sweep done")
}

// SweepOnce runs every step for asOf. A failing step does not stop the others; their errors
// are combined.
func (s *Sweeper) SweepOnce(ctx context.Context, asOf time.Time) (Result, error) {
	start := time.Now()
	defer func() {
		s.metrics.HistSweepDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		res  Result
		errs error
		err  error
	)
	asOf = domain.NormalizeDate(asOf)

	res.PlansExpired, err = s.plans.ExpireOverduePlans(ctx, primitive.NilObjectID, asOf)
	errs = multierr.Append(errs, err)

	res.InvoicesOverdue, err = s.invoices.MarkOverdue(ctx, asOf)
	errs = multierr.Append(errs, err)

	if s.sessions != nil {
		res.SessionsSkipped, err = s.sessions.SkipStaleSessions(ctx, asOf)
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		s.metrics.CounterSweeperRuns.WithLabelValues("error").Inc()
		return res, errs
	}
	s.metrics.CounterSweeperRuns.WithLabelValues("ok").Inc()
	return res, nil
}
