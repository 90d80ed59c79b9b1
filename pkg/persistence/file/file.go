// Package file provides file-based persistence, one JSON document per record.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/actionhub/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root        string
	actions     *ActionRepository
	datasources *DatasourceRepository
	plugins     *PluginRepository
	orgPlugins  *OrganizationPluginRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		actions:     NewActionRepository(cleanRoot),
		datasources: NewDatasourceRepository(cleanRoot),
		plugins:     NewPluginRepository(cleanRoot),
		orgPlugins:  NewOrganizationPluginRepository(cleanRoot),
	}
}

func (fp *Persistence) ActionRepository() persistence.ActionRepository {
	return fp.actions
}

func (fp *Persistence) DatasourceRepository() persistence.DatasourceRepository {
	return fp.datasources
}

func (fp *Persistence) PluginRepository() persistence.PluginRepository {
	return fp.plugins
}

func (fp *Persistence) OrganizationPluginRepository() persistence.OrganizationPluginRepository {
	return fp.orgPlugins
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists, creating it on first use.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.MkdirAll(fp.root, 0750)
	}

	return nil
}
