package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dukex/actionhub/pkg/mocks"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(opts ...Option) *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)), opts...)
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := newTestRegistry()
	connector := &mocks.MockConnector{PluginID: "restapi"}

	r.Register("restapi", connector)

	got, err := r.Resolve("restapi")
	require.NoError(t, err)
	assert.Same(t, connector, got)
	assert.True(t, r.Has("restapi"))
	assert.Equal(t, []string{"restapi"}, r.List())
}

func TestRegistry_ResolveMissing(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Resolve("unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindConfiguration, Code: protocol.CodeConnectorNotFound})
	assert.Contains(t, err.Error(), "connector not found")
	assert.False(t, r.Has("unknown"))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			id := fmt.Sprintf("plugin-%d", i)
			r.Register(id, &mocks.MockConnector{PluginID: id})
		}()

		go func() {
			defer wg.Done()

			_, _ = r.Resolve(fmt.Sprintf("plugin-%d", i))
		}()
	}

	wg.Wait()

	assert.Len(t, r.List(), 50)
}

func TestRegistry_Activate(t *testing.T) {
	var openedPath string

	connector := &mocks.MockConnector{PluginID: "mongo"}
	r := newTestRegistry(WithOpener(func(path string) (protocol.Connector, error) {
		openedPath = path

		return connector, nil
	}))

	err := r.Activate(context.Background(), "mongo", "/plugins/mongo-org1.so")
	require.NoError(t, err)

	assert.Equal(t, "/plugins/mongo-org1.so", openedPath)

	got, err := r.Resolve("mongo")
	require.NoError(t, err)
	assert.Same(t, connector, got)
}

func TestRegistry_ActivateFailure(t *testing.T) {
	r := newTestRegistry(WithOpener(func(string) (protocol.Connector, error) {
		return nil, errors.New("bad elf")
	}))

	err := r.Activate(context.Background(), "mongo", "/plugins/mongo.so")
	require.Error(t, err)
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindPluginInstallation, Code: protocol.CodeActivationFailed})
	assert.False(t, r.Has("mongo"))
}

func TestRegistry_LoadPlugins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mongo-org1.so"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken-org1.so"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600))

	r := newTestRegistry(WithOpener(func(path string) (protocol.Connector, error) {
		if filepath.Base(path) == "broken-org1.so" {
			return nil, errors.New("broken")
		}

		return &mocks.MockConnector{PluginID: "mongo"}, nil
	}))

	loaded, err := r.LoadPlugins(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, []string{"mongo"}, r.List())
}

func TestRegistry_ActivatedPluginSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "echo-org1.so")
	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0o600))

	opener := WithOpener(func(string) (protocol.Connector, error) {
		return &mocks.MockConnector{PluginID: "echo"}, nil
	})

	require.NoError(t, newTestRegistry(opener).Activate(context.Background(), "plg-42", artifact))
	assert.FileExists(t, ManifestPath(artifact))

	restarted := newTestRegistry(opener)

	loaded, err := restarted.LoadPlugins(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, []string{"plg-42"}, restarted.List())
}

func TestRegistry_LoadPluginsKeepsBuiltins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-restapi.so"), []byte("x"), 0o600))

	builtin := &mocks.MockConnector{PluginID: "restapi"}
	r := newTestRegistry(WithOpener(func(string) (protocol.Connector, error) {
		return &mocks.MockConnector{PluginID: "restapi"}, nil
	}))
	r.Register("restapi", builtin)

	loaded, err := r.LoadPlugins(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, loaded)

	got, err := r.Resolve("restapi")
	require.NoError(t, err)
	assert.Same(t, builtin, got)
}

func TestRegistry_LoadPluginsMissingDir(t *testing.T) {
	r := newTestRegistry()

	loaded, err := r.LoadPlugins(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, loaded)
}

func TestAsConnector(t *testing.T) {
	var c protocol.Connector = &mocks.MockConnector{PluginID: "x"}

	got, err := asConnector(c)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID())

	got, err = asConnector(&c)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID())

	_, err = asConnector(42)
	assert.Error(t, err)
}
