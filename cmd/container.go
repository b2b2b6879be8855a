// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis) and wires the job
// queue and revenue modules. This is the only place that knows about ALL
// modules.
package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/config"
	"github.com/meridian-hq/meridian/pkg/jobx"
	"github.com/meridian-hq/meridian/pkg/jobx/jobxhttp"
	"github.com/meridian-hq/meridian/pkg/jobx/jobxpg"
	"github.com/meridian-hq/meridian/pkg/jobx/jobxredis"
	"github.com/meridian-hq/meridian/pkg/revenue"
	"github.com/meridian-hq/meridian/pkg/revenue/revenuehttp"
	"github.com/meridian-hq/meridian/pkg/revenue/revenueinfra"
	"github.com/meridian-hq/meridian/pkg/revenue/revenuesrv"
)

// Container holds shared infrastructure and composed module services.
type Container struct {
	Config *config.Config
	Log    *zap.Logger

	// Infrastructure (shared across all modules)
	DB    *sqlx.DB
	Redis *redis.Client

	// Job queue
	Worker      *jobx.Worker
	JobHandlers *jobxhttp.Handlers

	// Revenue
	RevenueService  *revenuesrv.Service
	RevenueHandlers *revenuehttp.Handlers
}

func NewContainer(cfg *config.Config, log *zap.Logger) *Container {
	log.Info("initializing application container")

	c := &Container{Config: cfg, Log: log}

	c.initInfrastructure()
	c.initModules()

	log.Info("application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, migrations, Redis
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		c.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	c.Log.Info("database connected",
		zap.String("host", c.Config.Database.Host),
		zap.String("name", c.Config.Database.Name))

	if err := goose.SetDialect("postgres"); err != nil {
		c.Log.Fatal("failed to set migration dialect", zap.Error(err))
	}
	if err := goose.Up(db.DB, c.Config.Database.MigrationsDir); err != nil {
		c.Log.Fatal("failed to run migrations", zap.Error(err))
	}
	c.Log.Info("migrations applied", zap.String("dir", c.Config.Database.MigrationsDir))

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		c.Log.Fatal("failed to connect to redis", zap.Error(err))
	}
	c.Log.Info("redis connected", zap.String("addr", c.Config.Redis.Address()))
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	// Job queue: Postgres store, Redis dispatch lock, processor registry.
	jobStore := jobxpg.NewStore(c.DB)
	registry := jobx.NewRegistry()

	c.Worker = jobx.NewWorker(jobStore, registry, c.Log,
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithRetryBackoff(c.Config.Jobx.RetryBackoff),
		jobx.WithJobTimeout(c.Config.Jobx.JobTimeout),
		jobx.WithMaxJobsPerTick(c.Config.Jobx.MaxJobsPerTick),
		jobx.WithStuckAfter(c.Config.Jobx.StuckAfter),
	).WithLeaderLock(jobxredis.NewLeaderLock(c.Redis, c.Config.Jobx.LeaderLockTTL))

	c.JobHandlers = jobxhttp.NewHandlers(c.Worker, c.Log)

	// Revenue: ledger store, commission engine, service, processors.
	ledger := revenueinfra.NewPostgresLedgerStore(c.DB)
	engine := revenue.NewEngine()
	c.RevenueService = revenuesrv.NewService(ledger, engine, c.Log)
	revenuesrv.RegisterProcessors(registry, c.RevenueService)

	c.RevenueHandlers = revenuehttp.NewHandlers(c.RevenueService, c.Worker, c.Log)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices() {
	if c.Config.Jobx.AutoStart {
		c.Worker.Start()
		c.Log.Info("job worker started")
	} else {
		c.Log.Info("job worker autostart disabled")
	}
}

func (c *Container) Cleanup() {
	c.Log.Info("cleaning up resources")

	if c.Worker != nil && c.Worker.IsRunning() {
		c.Worker.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Log.Error("error closing redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Log.Error("error closing database", zap.Error(err))
		}
	}
}
