// Package app wires the workspace pieces together for the CLI and server:
// database, migrations, config, logger and the optional cache.
package app

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"crewplan/internal/cache"
	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/engine"
	"crewplan/internal/migrate"
)

type App struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
	Log    *zap.Logger
	Cache  *cache.Cache
}

// Open initializes a workspace: creates the data directory, opens and
// migrates the database, loads config (falling back to defaults when
// crewplan.yml is absent) and connects the cache when enabled.
func Open(workspace string, verbose bool) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(verbose)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	var c *cache.Cache
	if cfg.Cache.Enabled {
		c = cache.New(cfg.Cache.Addr, time.Duration(cfg.Cache.TTLSeconds)*time.Second, log)
	}
	e := engine.New(conn, cfg)
	e.Cache = c
	e.Log = log

	return &App{
		DB:     conn,
		Engine: e,
		Config: cfg,
		Log:    log,
		Cache:  c,
	}, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
