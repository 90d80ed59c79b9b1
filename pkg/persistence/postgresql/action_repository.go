package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

type scanner interface {
	Scan(dest ...any) error
}

// ActionRepository handles action database operations.
type ActionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewActionRepository(db *sql.DB, logger *slog.Logger) *ActionRepository {
	return &ActionRepository{db: db, logger: logger}
}

const actionColumns = `
	id
  , name
  , organization_id
  , page_id
  , configuration
  , datasource_id
  , datasource
  , timeout_ms
  , is_valid
  , invalids
  , placeholder_keys
  , created_at
  , updated_at
`

func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	query := "SELECT " + actionColumns + " FROM actions WHERE id = $1"

	action, err := scanAction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRecordError("GetByID", "action", id, persistence.ErrActionNotFound)
	}

	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "action", id, err)
	}

	return action, nil
}

// ListByDatasource returns the actions referencing a saved datasource.
func (r *ActionRepository) ListByDatasource(ctx context.Context, datasourceID string) ([]*models.Action, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM actions WHERE datasource_id = $1 ORDER BY id",
		datasourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	actions := make([]*models.Action, 0)

	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}

		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

func scanAction(row scanner) (*models.Action, error) {
	var (
		action                                    models.Action
		configuration, datasource, invalids, keys []byte
		timeoutMs                                 sql.NullInt64
	)

	err := row.Scan(
		&action.ID,
		&action.Name,
		&action.OrganizationID,
		&action.PageID,
		&configuration,
		&action.DatasourceID,
		&datasource,
		&timeoutMs,
		&action.IsValid,
		&invalids,
		&keys,
		&action.CreatedAt,
		&action.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalColumns(
		column{"configuration", configuration, &action.Configuration},
		column{"invalids", invalids, &action.Invalids},
		column{"placeholder_keys", keys, &action.PlaceholderKeys},
	); err != nil {
		return nil, err
	}

	if len(datasource) > 0 {
		action.Datasource = &models.Datasource{}
		if err := json.Unmarshal(datasource, action.Datasource); err != nil {
			return nil, fmt.Errorf("failed to unmarshal datasource: %w", err)
		}
	}

	if timeoutMs.Valid {
		timeout := int(timeoutMs.Int64)
		action.TimeoutMs = &timeout
	}

	return &action, nil
}

// Save upserts an action.
func (r *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}

	action.UpdatedAt = now

	configuration, err := json.Marshal(action.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	invalids, err := marshalList(action.Invalids)
	if err != nil {
		return err
	}

	keys, err := marshalList(action.PlaceholderKeys)
	if err != nil {
		return err
	}

	var datasource []byte
	if action.Datasource != nil {
		if datasource, err = json.Marshal(action.Datasource); err != nil {
			return fmt.Errorf("failed to marshal datasource: %w", err)
		}
	}

	var timeoutMs sql.NullInt64
	if action.TimeoutMs != nil {
		timeoutMs = sql.NullInt64{Int64: int64(*action.TimeoutMs), Valid: true}
	}

	query := `
		INSERT INTO actions (
			id, name, organization_id, page_id, configuration, datasource_id, datasource,
			timeout_ms, is_valid, invalids, placeholder_keys, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			organization_id = EXCLUDED.organization_id,
			page_id = EXCLUDED.page_id,
			configuration = EXCLUDED.configuration,
			datasource_id = EXCLUDED.datasource_id,
			datasource = EXCLUDED.datasource,
			timeout_ms = EXCLUDED.timeout_ms,
			is_valid = EXCLUDED.is_valid,
			invalids = EXCLUDED.invalids,
			placeholder_keys = EXCLUDED.placeholder_keys,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		action.ID, action.Name, action.OrganizationID, action.PageID, configuration,
		action.DatasourceID, datasource, timeoutMs, action.IsValid, invalids, keys,
		action.CreatedAt, action.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "action", action.ID, err)
	}

	return nil
}

func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM actions WHERE id = $1", id); err != nil {
		return persistence.NewRecordError("Delete", "action", id, err)
	}

	return nil
}

type column struct {
	name   string
	data   []byte
	target any
}

func unmarshalColumns(columns ...column) error {
	for _, c := range columns {
		if len(c.data) == 0 {
			continue
		}

		if err := json.Unmarshal(c.data, c.target); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", c.name, err)
		}
	}

	return nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list: %w", err)
	}

	return data, nil
}
