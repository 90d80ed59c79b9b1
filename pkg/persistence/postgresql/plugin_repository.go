package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

// PluginRepository handles plugin descriptor database operations.
type PluginRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPluginRepository(db *sql.DB, logger *slog.Logger) *PluginRepository {
	return &PluginRepository{db: db, logger: logger}
}

const pluginColumns = `id, name, description, type, artifact_url, default_install`

func scanPlugin(row scanner) (*models.Plugin, error) {
	var plugin models.Plugin

	err := row.Scan(
		&plugin.ID,
		&plugin.Name,
		&plugin.Description,
		&plugin.Type,
		&plugin.ArtifactURL,
		&plugin.DefaultInstall,
	)
	if err != nil {
		return nil, err
	}

	return &plugin, nil
}

func (r *PluginRepository) GetByID(ctx context.Context, id string) (*models.Plugin, error) {
	plugin, err := scanPlugin(r.db.QueryRowContext(ctx, "SELECT "+pluginColumns+" FROM plugins WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRecordError("GetByID", "plugin", id, persistence.ErrPluginNotFound)
	}

	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "plugin", id, err)
	}

	return plugin, nil
}

func (r *PluginRepository) GetAll(ctx context.Context, pluginType models.PluginType) ([]*models.Plugin, error) {
	query := "SELECT " + pluginColumns + " FROM plugins WHERE ($1 = '' OR type = $1) ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, string(pluginType))
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	plugins := make([]*models.Plugin, 0)

	for rows.Next() {
		plugin, err := scanPlugin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}

		plugins = append(plugins, plugin)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plugins: %w", err)
	}

	return plugins, nil
}

func (r *PluginRepository) Save(ctx context.Context, plugin *models.Plugin) error {
	query := `
		INSERT INTO plugins (` + pluginColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			artifact_url = EXCLUDED.artifact_url,
			default_install = EXCLUDED.default_install
	`

	_, err := r.db.ExecContext(ctx, query,
		plugin.ID, plugin.Name, plugin.Description, string(plugin.Type), plugin.ArtifactURL, plugin.DefaultInstall,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "plugin", plugin.ID, err)
	}

	return nil
}
