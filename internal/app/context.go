// Package app wires the workspace pieces together for the CLI and server:
// config, database, repo, event log, and the analysis engine.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"dealscope/internal/config"
	"dealscope/internal/db"
	"dealscope/internal/domain"
	"dealscope/internal/engine"
	"dealscope/internal/events"
	"dealscope/internal/migrate"
	"dealscope/internal/repo"
)

// App is one opened workspace: a loaded config and a migrated database.
type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Log       *logrus.Logger
}

// Open loads the workspace config, opens the database, and applies
// migrations. The caller closes the returned App.
func Open(workspace string) (*App, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(workspace)
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Repo:      repo.Repo{DB: conn},
		Events:    events.Writer{DB: conn},
		Log:       log,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// PortalToken reads the CRM bearer token from the configured environment
// variable.
func (a *App) PortalToken() (string, error) {
	name := a.Config.Portal.TokenEnv
	if name == "" {
		name = "DEALSCOPE_CRM_TOKEN"
	}
	token := os.Getenv(name)
	if token == "" {
		return "", fmt.Errorf("CRM token not set; export %s", name)
	}
	return token, nil
}

// Engine builds the analysis engine from the latest stored snapshot and
// returns that snapshot alongside it; analyses run over its deals.
func (a *App) Engine(ctx context.Context, now func() time.Time) (engine.Engine, domain.Snapshot, error) {
	snap, err := a.Repo.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return engine.Engine{}, snap, fmt.Errorf("no snapshot in workspace; run ds sync first")
		}
		return engine.Engine{}, snap, err
	}
	e, err := engine.FromSnapshot(a.Config, snap)
	if err != nil {
		return engine.Engine{}, snap, err
	}
	if now != nil {
		e.Now = now
	}
	return e, snap, nil
}
