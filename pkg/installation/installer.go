package installation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukex/actionhub/pkg/eventbus"
	"github.com/dukex/actionhub/pkg/events"
	"github.com/dukex/actionhub/pkg/metrics"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/protocol"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second
)

// Activator makes a downloaded connector available in this process.
type Activator interface {
	Has(pluginID string) bool
	Activate(ctx context.Context, pluginID, path string) error
}

// Installer runs on every instance and activates plugins announced on the
// broadcast channel. Failures stay local to the instance.
type Installer struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	activator   Activator
	pluginsDir  string
	client      *http.Client
	readTimeout time.Duration
}

type InstallerOption func(*Installer)

// WithHTTPClient replaces the download client.
func WithHTTPClient(client *http.Client) InstallerOption {
	return func(i *Installer) {
		i.client = client
	}
}

func WithReadTimeout(timeout time.Duration) InstallerOption {
	return func(i *Installer) {
		i.readTimeout = timeout
	}
}

func NewInstaller(logger *slog.Logger, persistence persistence.Persistence, activator Activator, pluginsDir string, opts ...InstallerOption) *Installer {
	i := &Installer{
		logger:      logger.With("module", "plugin_installer"),
		persistence: persistence,
		activator:   activator,
		pluginsDir:  pluginsDir,
		readTimeout: DefaultReadTimeout,
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.client == nil {
		i.client = newDownloadClient(DefaultConnectTimeout, i.readTimeout)
	}

	return i
}

func newDownloadClient(connectTimeout, readTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	return &http.Client{Transport: transport}
}

// Register subscribes the installer to install requests.
func (i *Installer) Register(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.PluginInstallRequestedEvent, i.HandleInstallRequested)
}

// HandleInstallRequested never returns an error: a failed local install is
// logged and counted, and the broadcast is not redelivered for it.
func (i *Installer) HandleInstallRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.PluginInstallRequested)
	if !ok {
		i.logger.ErrorContext(ctx, "Unexpected event for plugin installer", "event_type", fmt.Sprintf("%T", event))

		return nil
	}

	if err := i.Install(ctx, requested.OrganizationID, requested.PluginOrg.PluginID); err != nil {
		i.logger.ErrorContext(ctx, "Failed to install plugin locally",
			"organization_id", requested.OrganizationID,
			"plugin_id", requested.PluginOrg.PluginID,
			"origin", requested.Origin,
			"error", err,
		)
	}

	return nil
}

// Install downloads and activates a plugin in this process. Plugins already
// active, unknown plugins and plugins without an artifact are skipped.
func (i *Installer) Install(ctx context.Context, organizationID, pluginID string) error {
	if i.activator.Has(pluginID) {
		i.logger.DebugContext(ctx, "Plugin already active", "plugin_id", pluginID)
		metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeSkipped).Inc()

		return nil
	}

	plugin, err := i.persistence.PluginRepository().GetByID(ctx, pluginID)
	if err != nil {
		if persistence.IsNotFound(err) {
			i.logger.DebugContext(ctx, "Plugin not found, nothing to install", "plugin_id", pluginID)
			metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeSkipped).Inc()

			return nil
		}

		metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeFailure).Inc()

		return fmt.Errorf("failed to load plugin %s: %w", pluginID, err)
	}

	if plugin.ArtifactURL == "" {
		i.logger.DebugContext(ctx, "Plugin has no artifact, nothing to download", "plugin_id", pluginID)
		metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeSkipped).Inc()

		return nil
	}

	path := filepath.Join(i.pluginsDir, ArtifactName(plugin, organizationID))

	if err := i.download(ctx, plugin.ArtifactURL, path); err != nil {
		metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeFailure).Inc()

		return protocol.NewPluginInstallationError(
			protocol.CodeDownloadFailed,
			fmt.Sprintf("failed to download plugin '%s'", plugin.Name),
			err,
		)
	}

	if err := i.activator.Activate(ctx, pluginID, path); err != nil {
		metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeFailure).Inc()

		return err
	}

	metrics.PluginInstallations.WithLabelValues(pluginID, metrics.OutcomeSuccess).Inc()
	i.logger.InfoContext(ctx, "Plugin installed locally",
		"organization_id", organizationID,
		"plugin_id", pluginID,
		"path", path,
	)

	return nil
}

// Reconcile activates every INSTALLED plugin this instance is missing, such
// as ones granted while it was not running.
func (i *Installer) Reconcile(ctx context.Context) error {
	records, err := i.persistence.OrganizationPluginRepository().ListByStatus(ctx, models.PluginStatusInstalled)
	if err != nil {
		return fmt.Errorf("failed to list installed plugins: %w", err)
	}

	var errs []error

	for _, record := range records {
		if err := i.Install(ctx, record.OrganizationID, record.PluginID); err != nil {
			errs = append(errs, err)
		}
	}

	i.logger.InfoContext(ctx, "Reconciled installed plugins", "records", len(records), "failures", len(errs))

	return errors.Join(errs...)
}

// ArtifactName is the local file name of a plugin artifact for an organization.
func ArtifactName(plugin *models.Plugin, organizationID string) string {
	return sanitize(plugin.Name) + "-" + sanitize(organizationID) + ".so"
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func (i *Installer) download(ctx context.Context, url, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status fetching artifact: %s", resp.Status)
	}

	if err := os.MkdirAll(i.pluginsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plugins directory: %w", err)
	}

	tmp, err := os.CreateTemp(i.pluginsDir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	// The read timeout applies between chunks of the body, not to the whole transfer.
	timer := time.AfterFunc(i.readTimeout, cancel)
	defer timer.Stop()

	_, copyErr := io.Copy(tmp, &idleReader{r: resp.Body, timer: timer, timeout: i.readTimeout})
	closeErr := tmp.Close()

	if copyErr != nil {
		return fmt.Errorf("failed to read artifact: %w", copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to write artifact: %w", closeErr)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	return nil
}

type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}

	return n, err
}
