package file

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

// notFound maps a missing document to the repository sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return sentinel
	}

	return err
}

// ActionRepository handles action file operations.
type ActionRepository struct {
	store *jsonStore[models.Action]
}

func NewActionRepository(root string) *ActionRepository {
	return &ActionRepository{store: newJSONStore[models.Action](root, "actions")}
}

func (r *ActionRepository) GetByID(_ context.Context, id string) (*models.Action, error) {
	action, err := r.store.read(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "action", id, notFound(err, persistence.ErrActionNotFound))
	}

	return action, nil
}

func (r *ActionRepository) Save(_ context.Context, action *models.Action) error {
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}

	action.UpdatedAt = now

	if err := r.store.write(action.ID, action); err != nil {
		return persistence.NewRecordError("Save", "action", action.ID, err)
	}

	return nil
}

// Delete removes an action. Deleting a missing action is not an error.
func (r *ActionRepository) Delete(_ context.Context, id string) error {
	err := r.store.remove(id)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewRecordError("Delete", "action", id, err)
	}

	return nil
}

// ListByDatasource returns the actions referencing datasourceID, ordered by id.
func (r *ActionRepository) ListByDatasource(_ context.Context, datasourceID string) ([]*models.Action, error) {
	all, err := r.store.list()
	if err != nil {
		return nil, err
	}

	actions := make([]*models.Action, 0)

	for _, action := range all {
		if action.DatasourceID == datasourceID {
			actions = append(actions, action)
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })

	return actions, nil
}

// DatasourceRepository handles datasource file operations.
type DatasourceRepository struct {
	store *jsonStore[models.Datasource]
}

func NewDatasourceRepository(root string) *DatasourceRepository {
	return &DatasourceRepository{store: newJSONStore[models.Datasource](root, "datasources")}
}

func (r *DatasourceRepository) GetByID(_ context.Context, id string) (*models.Datasource, error) {
	datasource, err := r.store.read(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "datasource", id, notFound(err, persistence.ErrDatasourceNotFound))
	}

	return datasource, nil
}

func (r *DatasourceRepository) Save(_ context.Context, datasource *models.Datasource) error {
	now := time.Now().UTC()
	if datasource.CreatedAt.IsZero() {
		datasource.CreatedAt = now
	}

	datasource.UpdatedAt = now

	if err := r.store.write(datasource.ID, datasource); err != nil {
		return persistence.NewRecordError("Save", "datasource", datasource.ID, err)
	}

	return nil
}

// PluginRepository handles plugin descriptor file operations.
type PluginRepository struct {
	store *jsonStore[models.Plugin]
}

func NewPluginRepository(root string) *PluginRepository {
	return &PluginRepository{store: newJSONStore[models.Plugin](root, "plugins")}
}

func (r *PluginRepository) GetByID(_ context.Context, id string) (*models.Plugin, error) {
	plugin, err := r.store.read(id)
	if err != nil {
		return nil, persistence.NewRecordError("GetByID", "plugin", id, notFound(err, persistence.ErrPluginNotFound))
	}

	return plugin, nil
}

func (r *PluginRepository) GetAll(_ context.Context, pluginType models.PluginType) ([]*models.Plugin, error) {
	all, err := r.store.list()
	if err != nil {
		return nil, err
	}

	plugins := make([]*models.Plugin, 0, len(all))

	for _, plugin := range all {
		if pluginType != "" && plugin.Type != pluginType {
			continue
		}

		plugins = append(plugins, plugin)
	}

	sort.Slice(plugins, func(i, j int) bool { return plugins[i].ID < plugins[j].ID })

	return plugins, nil
}

func (r *PluginRepository) Save(_ context.Context, plugin *models.Plugin) error {
	if err := r.store.write(plugin.ID, plugin); err != nil {
		return persistence.NewRecordError("Save", "plugin", plugin.ID, err)
	}

	return nil
}

// OrganizationPluginRepository stores installation records, named
// <organizationID>__<pluginID>.json so the pair is unique on disk.
type OrganizationPluginRepository struct {
	mu    sync.Mutex
	store *jsonStore[models.OrganizationPlugin]
}

func NewOrganizationPluginRepository(root string) *OrganizationPluginRepository {
	return &OrganizationPluginRepository{store: newJSONStore[models.OrganizationPlugin](root, "organization_plugins")}
}

const keySeparator = "__"

func recordKey(organizationID, pluginID string) string {
	return organizationID + keySeparator + pluginID
}

func (r *OrganizationPluginRepository) Get(_ context.Context, organizationID, pluginID string) (*models.OrganizationPlugin, error) {
	key := recordKey(organizationID, pluginID)

	record, err := r.store.read(key)
	if err != nil {
		return nil, persistence.NewRecordError("Get", "organization plugin", key, notFound(err, persistence.ErrOrganizationPluginNotFound))
	}

	return record, nil
}

func (r *OrganizationPluginRepository) Create(_ context.Context, record *models.OrganizationPlugin) error {
	key := recordKey(record.OrganizationID, record.PluginID)
	record.UpdatedAt = time.Now().UTC()

	err := r.store.create(key, record)
	if errors.Is(err, fs.ErrExist) {
		return persistence.NewRecordError("Create", "organization plugin", key, persistence.ErrOrganizationPluginAlreadyExists)
	}

	if err != nil {
		return persistence.NewRecordError("Create", "organization plugin", key, err)
	}

	return nil
}

func (r *OrganizationPluginRepository) UpdateStatus(_ context.Context, organizationID, pluginID string, status models.PluginStatus) error {
	key := recordKey(organizationID, pluginID)

	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.store.read(key)
	if err != nil {
		return persistence.NewRecordError("UpdateStatus", "organization plugin", key, notFound(err, persistence.ErrOrganizationPluginNotFound))
	}

	record.Status = status
	record.UpdatedAt = time.Now().UTC()

	if err := r.store.write(key, record); err != nil {
		return persistence.NewRecordError("UpdateStatus", "organization plugin", key, err)
	}

	return nil
}

func (r *OrganizationPluginRepository) Delete(_ context.Context, organizationID, pluginID string) error {
	key := recordKey(organizationID, pluginID)

	if err := r.store.remove(key); err != nil {
		return persistence.NewRecordError("Delete", "organization plugin", key, notFound(err, persistence.ErrOrganizationPluginNotFound))
	}

	return nil
}

func (r *OrganizationPluginRepository) ListByOrganization(_ context.Context, organizationID string) ([]*models.OrganizationPlugin, error) {
	return r.filter(func(record *models.OrganizationPlugin) bool {
		return record.OrganizationID == organizationID
	})
}

func (r *OrganizationPluginRepository) ListByStatus(_ context.Context, status models.PluginStatus) ([]*models.OrganizationPlugin, error) {
	return r.filter(func(record *models.OrganizationPlugin) bool {
		return record.Status == status
	})
}

func (r *OrganizationPluginRepository) filter(keep func(*models.OrganizationPlugin) bool) ([]*models.OrganizationPlugin, error) {
	all, err := r.store.list()
	if err != nil {
		return nil, err
	}

	records := make([]*models.OrganizationPlugin, 0, len(all))

	for _, record := range all {
		if keep(record) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return strings.Compare(
			recordKey(records[i].OrganizationID, records[i].PluginID),
			recordKey(records[j].OrganizationID, records[j].PluginID),
		) < 0
	})

	return records, nil
}
