// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db          *sql.DB
	logger      *slog.Logger
	actions     *ActionRepository
	datasources *DatasourceRepository
	plugins     *PluginRepository
	orgPlugins  *OrganizationPluginRepository
}

// NewPersistence opens the database, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx); err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewPersistenceWithDB(database, logger), nil
}

// NewPersistenceWithDB wires the repositories over an open database.
func NewPersistenceWithDB(database *sql.DB, logger *slog.Logger) *Persistence {
	return &Persistence{
		db:          database,
		logger:      logger,
		actions:     NewActionRepository(database, logger),
		datasources: NewDatasourceRepository(database),
		plugins:     NewPluginRepository(database, logger),
		orgPlugins:  NewOrganizationPluginRepository(database, logger),
	}
}

func (p *Persistence) ActionRepository() persistence.ActionRepository {
	return p.actions
}

func (p *Persistence) DatasourceRepository() persistence.DatasourceRepository {
	return p.datasources
}

func (p *Persistence) PluginRepository() persistence.PluginRepository {
	return p.plugins
}

func (p *Persistence) OrganizationPluginRepository() persistence.OrganizationPluginRepository {
	return p.orgPlugins
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
