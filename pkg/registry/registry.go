// Package registry keeps the connectors active in this process.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"github.com/dukex/actionhub/pkg/protocol"
)

// SymbolName is the exported symbol every connector artifact must provide.
const SymbolName = "Connector"

// Opener loads a connector from an artifact on disk.
type Opener func(path string) (protocol.Connector, error)

type Registry struct {
	logger     *slog.Logger
	opener     Opener
	mu         sync.RWMutex
	connectors map[string]protocol.Connector
}

type Option func(*Registry)

// WithOpener replaces the artifact loader.
func WithOpener(opener Opener) Option {
	return func(r *Registry) {
		r.opener = opener
	}
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:     log.With("module", "registry"),
		opener:     OpenPlugin,
		connectors: make(map[string]protocol.Connector),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register publishes a fully constructed connector under pluginID.
// A later registration for the same id replaces the earlier one.
func (r *Registry) Register(pluginID string, connector protocol.Connector) {
	r.mu.Lock()
	r.connectors[pluginID] = connector
	r.mu.Unlock()

	r.logger.Info("Registered connector", "plugin_id", pluginID)
}

// Resolve returns the connector registered for pluginID.
func (r *Registry) Resolve(pluginID string) (protocol.Connector, error) {
	r.mu.RLock()
	connector, ok := r.connectors[pluginID]
	r.mu.RUnlock()

	if !ok {
		return nil, protocol.NewConfigurationError(
			protocol.CodeConnectorNotFound,
			fmt.Sprintf("connector not found for plugin '%s'", pluginID),
		)
	}

	return connector, nil
}

func (r *Registry) Has(pluginID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.connectors[pluginID]

	return ok
}

// List returns the registered plugin ids in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.connectors))

	for id := range r.connectors {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)

	return ids
}

// Activate loads the artifact at path and registers it under pluginID.
func (r *Registry) Activate(ctx context.Context, pluginID, path string) error {
	l := r.logger.With(slog.String("plugin_id", pluginID), slog.String("path", path))

	connector, err := r.opener(path)
	if err != nil {
		l.ErrorContext(ctx, "Failed to activate connector", "error", err)

		return protocol.NewPluginInstallationError(
			protocol.CodeActivationFailed,
			fmt.Sprintf("failed to activate plugin '%s'", pluginID),
			err,
		)
	}

	r.Register(pluginID, connector)
	l.InfoContext(ctx, "Activated connector")

	if err := writeManifest(path, pluginID); err != nil {
		l.WarnContext(ctx, "Failed to record plugin manifest, the plugin will load under its own ID on restart", "error", err)
	}

	return nil
}

// manifest records the plugin id an artifact was activated under.
type manifest struct {
	PluginID string `json:"pluginId"`
}

// ManifestPath is the sidecar file written next to an activated artifact.
func ManifestPath(artifact string) string {
	return artifact + ".json"
}

func writeManifest(artifact, pluginID string) error {
	data, err := json.Marshal(manifest{PluginID: pluginID})
	if err != nil {
		return err
	}

	return os.WriteFile(ManifestPath(artifact), data, 0o600)
}

// readManifest returns "" when the artifact has no manifest.
func readManifest(artifact string) (string, error) {
	data, err := os.ReadFile(ManifestPath(artifact))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("invalid manifest %s: %w", ManifestPath(artifact), err)
	}

	return m.PluginID, nil
}

// LoadPlugins activates every artifact found under dir. An artifact is
// registered under the plugin id recorded when it was activated, or under
// its own ID when it has no manifest. Artifacts without a manifest never
// replace a connector that is already registered. Artifacts that fail to
// load are logged and skipped.
func (r *Registry) LoadPlugins(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	paths, err := fs.Glob(os.DirFS(dir), "*.so")
	if err != nil {
		return 0, fmt.Errorf("failed to list plugins in %s: %w", dir, err)
	}

	l := r.logger.With(slog.String("path", dir))
	l.InfoContext(ctx, "Loading plugins", "count", len(paths))

	loaded := 0

	for _, p := range paths {
		full := filepath.Join(dir, p)

		pluginID, err := readManifest(full)
		if err != nil {
			l.ErrorContext(ctx, "Failed to read plugin manifest", "plugin", p, "error", err)

			continue
		}

		connector, err := r.opener(full)
		if err != nil {
			l.ErrorContext(ctx, "Failed to load plugin", "plugin", p, "error", err)

			continue
		}

		if pluginID == "" {
			pluginID = connector.ID()

			if r.Has(pluginID) {
				l.WarnContext(ctx, "Skipping plugin shadowing a registered connector", "plugin", p, "plugin_id", pluginID)

				continue
			}
		}

		r.Register(pluginID, connector)

		loaded++
	}

	return loaded, nil
}

// OpenPlugin loads a Go plugin and looks up its exported Connector.
func OpenPlugin(path string) (protocol.Connector, error) {
	plg, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	symbol, err := plg.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup symbol %s: %w", SymbolName, err)
	}

	return asConnector(symbol)
}

func asConnector(symbol any) (protocol.Connector, error) {
	switch v := symbol.(type) {
	case protocol.Connector:
		return v, nil
	case *protocol.Connector:
		if v != nil && *v != nil {
			return *v, nil
		}
	}

	return nil, fmt.Errorf("symbol %s does not implement protocol.Connector (got %T)", SymbolName, symbol)
}
