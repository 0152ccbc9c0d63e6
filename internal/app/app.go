package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fittrainer/pro/internal/api"
	"fittrainer/pro/internal/config"
	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/metrics"
	"fittrainer/pro/internal/repository"
	"fittrainer/pro/internal/repository/memory"
	mongorepo "fittrainer/pro/internal/repository/mongo"
	"fittrainer/pro/internal/repository/postgres"
	"fittrainer/pro/internal/service"
	"fittrainer/pro/internal/storage"
	"fittrainer/pro/internal/sweeper"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const indexTimeout = time.Minute

var ErrMissingJWTSecret = errors.New("jwt.secret is required to serve the API")

// App is the wired object graph shared by the server and the CLI.
type App struct {
	Config   config.Config
	Metrics  *metrics.Manager
	Registry *prometheus.Registry // nil when metrics are disabled
	Repos    *repository.Repositories
	Services *api.Services
	Sweeper  *sweeper.Sweeper
	Location *time.Location

	closers []func() error
}

// New opens the configured store and builds every service on top of it.
// Services.Auth is nil when no JWT secret is configured.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	loc, err := domain.LoadLocation(cfg.Sessions.DefaultTimezone, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}
	a := &App{Config: cfg, Location: loc}

	var collectors []prometheus.Collector
	switch cfg.Database.Driver {
	case config.DriverMemory:
		log.Warn("using the in-memory store, data is lost on exit")
		a.Repos = memory.NewRepositories()
	case config.DriverMongo:
		if err := a.openMongo(ctx); err != nil {
			return nil, err
		}
	case config.DriverPostgres:
		c, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, c)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if cfg.Metrics.Enabled {
		a.Registry = metrics.SetupPrometheus(collectors...)
		a.Metrics = metrics.NewManager(cfg.Metrics.Namespace, "api", a.Registry)
	} else {
		a.Metrics = metrics.NewManager(cfg.Metrics.Namespace, "api", prometheus.NewRegistry())
	}

	fileStorage, err := newFileStorage(ctx, cfg.S3)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := service.Options{
		StoreTimeout: cfg.Store.Timeout,
		Metrics:      a.Metrics,
		Location:     loc,
	}
	a.Services = NewServices(a.Repos, fileStorage, cfg, opts)

	sweepParams := sweeper.Params{
		Plans:    a.Services.Plans,
		Invoices: a.Services.Invoices,
		Interval: cfg.Sweeper.Interval,
		Metrics:  a.Metrics,
	}
	if cfg.Sweeper.SkipStaleSessions {
		sweepParams.Sessions = a.Services.Sessions
	}
	a.Sweeper = sweeper.New(sweepParams)

	return a, nil
}

// NewServices builds the service layer over repos.
func NewServices(repos *repository.Repositories, fileStorage storage.FileStorage, cfg config.Config, opts service.Options) *api.Services {
	plans := service.NewPlanService(repos, opts)
	svc := &api.Services{
		Profiles:  service.NewProfileService(repos.Users, fileStorage, opts),
		Exercises: service.NewExerciseService(repos.Exercises, repos.Users, fileStorage, opts),
		Coach:     service.NewCoachService(repos, opts),
		Plans:     plans,
		Sessions:  service.NewSessionService(repos, service.MaterializationPolicy(cfg.Sessions.MaterializationPolicy), opts),
		Invoices:  service.NewInvoiceService(repos, opts),
		Dashboard: service.NewDashboardService(repos, plans, opts),
		Progress:  service.NewProgressService(repos, opts),
	}
	if cfg.JWT.Secret != "" {
		svc.Auth = service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration, opts)
	}
	return svc
}

func (a *App) openMongo(ctx context.Context) error {
	client, err := mongorepo.ConnectDB(ctx, a.Config.Database.URI)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, func() error {
		log.Info("disconnecting mongo")
		return mongorepo.DisconnectDB(client)
	})
	db := client.Database(a.Config.Database.Name)

	idxCtx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	if err := mongorepo.EnsureIndexes(idxCtx, db); err != nil {
		_ = a.Close()
		return fmt.Errorf("ensure indexes: %w", err)
	}
	a.Repos = mongorepo.NewRepositories(client, db)
	log.Infof("connected to mongo database %s", a.Config.Database.Name)
	return nil
}

func (a *App) openPostgres(ctx context.Context) (prometheus.Collector, error) {
	pool, err := postgres.NewDBPool(ctx, postgres.NewDBPoolParams{ConnString: a.Config.Database.URI})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}
	a.closers = append(a.closers, func() error {
		log.Info("closing postgres pool")
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Repos = postgres.NewRepositories(pool)
	log.Info("connected to postgres")

	return pgxpoolprometheus.NewCollector(pool, map[string]string{"db_name": a.Config.Database.Name}), nil
}

// newFileStorage returns S3 storage when a bucket is configured, else a storage that refuses
// every call so media endpoints answer 503.
func newFileStorage(ctx context.Context, cfg config.S3Config) (storage.FileStorage, error) {
	if cfg.BucketName == "" {
		log.Warn("s3.bucket_name not set, media uploads are disabled")
		return storage.NewDisabledStorage(), nil
	}
	fs, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init s3 storage: %w", err)
	}
	return fs, nil
}

// Close releases the store connections in reverse order of opening.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
