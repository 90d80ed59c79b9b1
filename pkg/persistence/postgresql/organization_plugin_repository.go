package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

// OrganizationPluginRepository stores installation records keyed by
// (organization_id, plugin_id).
type OrganizationPluginRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewOrganizationPluginRepository(db *sql.DB, logger *slog.Logger) *OrganizationPluginRepository {
	return &OrganizationPluginRepository{db: db, logger: logger}
}

const organizationPluginColumns = `organization_id, plugin_id, status, updated_at`

func recordKey(organizationID, pluginID string) string {
	return organizationID + "/" + pluginID
}

func scanOrganizationPlugin(row scanner) (*models.OrganizationPlugin, error) {
	var record models.OrganizationPlugin

	if err := row.Scan(&record.OrganizationID, &record.PluginID, &record.Status, &record.UpdatedAt); err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *OrganizationPluginRepository) Get(ctx context.Context, organizationID, pluginID string) (*models.OrganizationPlugin, error) {
	query := "SELECT " + organizationPluginColumns + " FROM organization_plugins WHERE organization_id = $1 AND plugin_id = $2"

	record, err := scanOrganizationPlugin(r.db.QueryRowContext(ctx, query, organizationID, pluginID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRecordError("Get", "organization plugin", recordKey(organizationID, pluginID), persistence.ErrOrganizationPluginNotFound)
	}

	if err != nil {
		return nil, persistence.NewRecordError("Get", "organization plugin", recordKey(organizationID, pluginID), err)
	}

	return record, nil
}

// Create inserts the record unless one exists. The primary key makes the
// insert the single point where concurrent installers race.
func (r *OrganizationPluginRepository) Create(ctx context.Context, record *models.OrganizationPlugin) error {
	key := recordKey(record.OrganizationID, record.PluginID)
	record.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO organization_plugins (` + organizationPluginColumns + `)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, plugin_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, record.OrganizationID, record.PluginID, string(record.Status), record.UpdatedAt)
	if err != nil {
		return persistence.NewRecordError("Create", "organization plugin", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRecordError("Create", "organization plugin", key, err)
	}

	if affected == 0 {
		return persistence.NewRecordError("Create", "organization plugin", key, persistence.ErrOrganizationPluginAlreadyExists)
	}

	return nil
}

func (r *OrganizationPluginRepository) UpdateStatus(ctx context.Context, organizationID, pluginID string, status models.PluginStatus) error {
	return r.mutate(ctx, "UpdateStatus", organizationID, pluginID,
		"UPDATE organization_plugins SET status = $3, updated_at = $4 WHERE organization_id = $1 AND plugin_id = $2",
		string(status), time.Now().UTC(),
	)
}

func (r *OrganizationPluginRepository) Delete(ctx context.Context, organizationID, pluginID string) error {
	return r.mutate(ctx, "Delete", organizationID, pluginID,
		"DELETE FROM organization_plugins WHERE organization_id = $1 AND plugin_id = $2",
	)
}

// mutate runs a statement against one record and reports a missing record.
func (r *OrganizationPluginRepository) mutate(ctx context.Context, op, organizationID, pluginID, query string, extra ...any) error {
	key := recordKey(organizationID, pluginID)
	args := append([]any{organizationID, pluginID}, extra...)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewRecordError(op, "organization plugin", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRecordError(op, "organization plugin", key, err)
	}

	if affected == 0 {
		return persistence.NewRecordError(op, "organization plugin", key, persistence.ErrOrganizationPluginNotFound)
	}

	return nil
}

func (r *OrganizationPluginRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.OrganizationPlugin, error) {
	return r.list(ctx,
		"SELECT "+organizationPluginColumns+" FROM organization_plugins WHERE organization_id = $1 ORDER BY plugin_id",
		organizationID,
	)
}

func (r *OrganizationPluginRepository) ListByStatus(ctx context.Context, status models.PluginStatus) ([]*models.OrganizationPlugin, error) {
	return r.list(ctx,
		"SELECT "+organizationPluginColumns+" FROM organization_plugins WHERE status = $1 ORDER BY organization_id, plugin_id",
		string(status),
	)
}

func (r *OrganizationPluginRepository) list(ctx context.Context, query string, arg any) ([]*models.OrganizationPlugin, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization plugins: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.OrganizationPlugin, 0)

	for rows.Next() {
		record, err := scanOrganizationPlugin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization plugin: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating organization plugins: %w", err)
	}

	return records, nil
}
