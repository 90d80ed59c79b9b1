package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

// DatasourceRepository handles datasource database operations.
type DatasourceRepository struct {
	db *sql.DB
}

func NewDatasourceRepository(db *sql.DB) *DatasourceRepository {
	return &DatasourceRepository{db: db}
}

func (r *DatasourceRepository) GetByID(ctx context.Context, id string) (*models.Datasource, error) {
	query := `
		SELECT
			id
		  , name
		  , organization_id
		  , plugin_id
		  , configuration
		  , is_valid
		  , invalids
		  , created_at
		  , updated_at
		FROM datasources
		WHERE id = $1
	`

	var (
		datasource              models.Datasource
		configuration, invalids []byte
		isValid                 sql.NullBool
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&datasource.ID,
		&datasource.Name,
		&datasource.OrganizationID,
		&datasource.PluginID,
		&configuration,
		&isValid,
		&invalids,
		&datasource.CreatedAt,
		&datasource.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewRecordError("GetByID", "datasource", id, persistence.ErrDatasourceNotFound)
	}

	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "datasource", id, err)
	}

	if err := unmarshalColumns(
		column{"configuration", configuration, &datasource.Configuration},
		column{"invalids", invalids, &datasource.Invalids},
	); err != nil {
		return nil, err
	}

	if isValid.Valid {
		datasource.IsValid = &isValid.Bool
	}

	return &datasource, nil
}

func (r *DatasourceRepository) Save(ctx context.Context, datasource *models.Datasource) error {
	now := time.Now().UTC()
	if datasource.CreatedAt.IsZero() {
		datasource.CreatedAt = now
	}

	datasource.UpdatedAt = now

	configuration, err := json.Marshal(datasource.Configuration)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	invalids, err := marshalList(datasource.Invalids)
	if err != nil {
		return err
	}

	var isValid sql.NullBool
	if datasource.IsValid != nil {
		isValid = sql.NullBool{Bool: *datasource.IsValid, Valid: true}
	}

	query := `
		INSERT INTO datasources (
			id, name, organization_id, plugin_id, configuration, is_valid, invalids, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			organization_id = EXCLUDED.organization_id,
			plugin_id = EXCLUDED.plugin_id,
			configuration = EXCLUDED.configuration,
			is_valid = EXCLUDED.is_valid,
			invalids = EXCLUDED.invalids,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		datasource.ID, datasource.Name, datasource.OrganizationID, datasource.PluginID,
		configuration, isValid, invalids, datasource.CreatedAt, datasource.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", "datasource", datasource.ID, err)
	}

	return nil
}
