package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheckCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	fp := NewPersistence(root)

	require.NoError(t, fp.HealthCheck(t.Context()))

	_, err := os.Stat(root)
	assert.NoError(t, err)
	assert.NoError(t, fp.Close(t.Context()))
}

func TestActionRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).ActionRepository()

	action := &models.Action{
		ID:            "action-1",
		Name:          "list users",
		Configuration: models.Configuration{"path": "/users/{{id}}"},
		DatasourceID:  "ds-1",
		IsValid:       true,
	}

	require.NoError(t, repo.Save(ctx, action))
	assert.False(t, action.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "action-1")
	require.NoError(t, err)
	assert.Equal(t, "list users", got.Name)
	assert.Equal(t, "/users/{{id}}", got.Configuration["path"])

	require.NoError(t, repo.Delete(ctx, "action-1"))
	require.NoError(t, repo.Delete(ctx, "action-1"))

	_, err = repo.GetByID(ctx, "action-1")
	assert.ErrorIs(t, err, persistence.ErrActionNotFound)
}

func TestActionRepository_ListByDatasource(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).ActionRepository()

	empty, err := repo.ListByDatasource(ctx, "ds-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, action := range []*models.Action{
		{ID: "b", Name: "b", DatasourceID: "ds-1"},
		{ID: "a", Name: "a", DatasourceID: "ds-1"},
		{ID: "c", Name: "c", DatasourceID: "ds-2"},
	} {
		require.NoError(t, repo.Save(ctx, action))
	}

	actions, err := repo.ListByDatasource(ctx, "ds-1")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "a", actions[0].ID)
	assert.Equal(t, "b", actions[1].ID)
}

func TestActionRepository_RejectsTraversal(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ActionRepository()

	_, err := repo.GetByID(t.Context(), "../etc/passwd")
	assert.ErrorIs(t, err, persistence.ErrInvalidID)

	err = repo.Save(t.Context(), &models.Action{ID: "a/b"})
	assert.ErrorIs(t, err, persistence.ErrInvalidID)
}

func TestDatasourceRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).DatasourceRepository()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrDatasourceNotFound)

	valid := false
	require.NoError(t, repo.Save(ctx, &models.Datasource{ID: "ds-1", PluginID: "restapi", IsValid: &valid}))

	got, err := repo.GetByID(ctx, "ds-1")
	require.NoError(t, err)
	assert.True(t, got.ExplicitlyInvalid())
}

func TestPluginRepository_GetAllFiltersByType(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).PluginRepository()

	empty, err := repo.GetAll(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, &models.Plugin{ID: "restapi", Type: models.PluginTypeBuiltin}))
	require.NoError(t, repo.Save(ctx, &models.Plugin{ID: "mongo", Type: models.PluginTypeExternal, ArtifactURL: "http://x/mongo.so"}))

	all, err := repo.GetAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "mongo", all[0].ID)

	external, err := repo.GetAll(ctx, models.PluginTypeExternal)
	require.NoError(t, err)
	require.Len(t, external, 1)
	assert.Equal(t, "mongo", external[0].ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, persistence.ErrPluginNotFound)
}

func TestOrganizationPluginRepository_Lifecycle(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).OrganizationPluginRepository()

	_, err := repo.Get(ctx, "org-1", "mongo")
	assert.ErrorIs(t, err, persistence.ErrOrganizationPluginNotFound)

	record := &models.OrganizationPlugin{OrganizationID: "org-1", PluginID: "mongo", Status: models.PluginStatusInstalling}
	require.NoError(t, repo.Create(ctx, record))

	err = repo.Create(ctx, &models.OrganizationPlugin{OrganizationID: "org-1", PluginID: "mongo"})
	assert.ErrorIs(t, err, persistence.ErrOrganizationPluginAlreadyExists)

	require.NoError(t, repo.UpdateStatus(ctx, "org-1", "mongo", models.PluginStatusInstalled))
	require.NoError(t, repo.Create(ctx, &models.OrganizationPlugin{OrganizationID: "org-2", PluginID: "mongo", Status: models.PluginStatusFailed}))

	got, err := repo.Get(ctx, "org-1", "mongo")
	require.NoError(t, err)
	assert.Equal(t, models.PluginStatusInstalled, got.Status)

	byOrg, err := repo.ListByOrganization(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, byOrg, 1)

	installed, err := repo.ListByStatus(ctx, models.PluginStatusInstalled)
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "org-1", installed[0].OrganizationID)

	require.NoError(t, repo.Delete(ctx, "org-1", "mongo"))
	assert.ErrorIs(t, repo.Delete(ctx, "org-1", "mongo"), persistence.ErrOrganizationPluginNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "org-1", "mongo", models.PluginStatusFailed), persistence.ErrOrganizationPluginNotFound)
}

func TestOrganizationPluginRepository_ConcurrentCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).OrganizationPluginRepository()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := repo.Create(ctx, &models.OrganizationPlugin{OrganizationID: "org-1", PluginID: "mongo", Status: models.PluginStatusInstalling})
			if err == nil {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
