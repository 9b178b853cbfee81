package app

import (
	"database/sql"
	"fmt"

	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/db"
	"github.com/SmartXchain/piedmont-sub000/internal/engine"
	"github.com/SmartXchain/piedmont-sub000/internal/logger"
	"github.com/SmartXchain/piedmont-sub000/internal/metrics"
	"github.com/SmartXchain/piedmont-sub000/internal/migrate"
)

// Workspace is an opened workspace: migrated database plus piedmont.yml.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
}

// Open creates the workspace directory if needed, migrates the database and
// loads the config, falling back to defaults when no file exists.
func Open(dir string) (*Workspace, error) {
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Path(dir), err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Workspace{Dir: dir, DB: conn, Config: cfg}, nil
}

// Engine wires an engine to the workspace. A nil logger discards output and
// nil metrics are not recorded.
func (w *Workspace) Engine(log logger.Logger, m *metrics.Metrics) engine.Engine {
	e := engine.New(w.DB, w.Config)
	if log != nil {
		e.Logger = log
	}
	e.Metrics = m
	return e
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}
