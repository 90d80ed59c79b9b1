// Package datasourcecontext hands out connection handles for datasources,
// reusing one handle per saved datasource until it goes idle.
package datasourcecontext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/actionhub/pkg/metrics"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

const DefaultIdleTTL = 10 * time.Minute

// ReleaseFunc returns a handle obtained from Get. It is safe to call more than once.
type ReleaseFunc func()

type entry struct {
	datasourceID string
	fingerprint  string
	factory      protocol.ConnectionFactory
	conn         any
	inUse        int
	lastUsed     time.Time
	retired      bool
}

type Provider struct {
	logger  *slog.Logger
	idleTTL time.Duration
	now     func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*entry

	cron *cron.Cron
}

type Option func(*Provider)

func WithIdleTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.idleTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func NewProvider(logger *slog.Logger, opts ...Option) *Provider {
	p := &Provider{
		logger:  logger.With("module", "datasource_context"),
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		entries: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Get returns the connection handle for datasource. Connectors that do not
// implement protocol.ConnectionFactory get a nil handle. Concurrent callers
// for the same saved datasource share a single Connect call.
func (p *Provider) Get(ctx context.Context, datasource *models.Datasource, connector protocol.Connector) (any, ReleaseFunc, error) {
	factory, ok := connector.(protocol.ConnectionFactory)
	if !ok {
		return nil, func() {}, nil
	}

	if datasource.ID == "" {
		return p.connectUnsaved(ctx, datasource, factory)
	}

	fp, err := fingerprint(connector.ID(), datasource.Configuration)
	if err != nil {
		return nil, nil, err
	}

	for {
		if e := p.acquire(datasource.ID, fp); e != nil {
			return e.conn, p.releaser(e), nil
		}

		v, err, _ := p.group.Do(datasource.ID+"/"+fp, func() (any, error) {
			return p.connect(ctx, datasource, fp, factory)
		})
		if err != nil {
			return nil, nil, err
		}

		created, _ := v.(*entry)

		p.mu.Lock()
		if !created.retired {
			created.inUse++
			created.lastUsed = p.now()
			p.mu.Unlock()

			return created.conn, p.releaser(created), nil
		}
		p.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
	}
}

func (p *Provider) acquire(datasourceID, fp string) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[datasourceID]
	if !ok || e.fingerprint != fp {
		return nil
	}

	e.inUse++
	e.lastUsed = p.now()

	return e
}

func (p *Provider) connect(ctx context.Context, datasource *models.Datasource, fp string, factory protocol.ConnectionFactory) (*entry, error) {
	p.mu.Lock()
	if e, ok := p.entries[datasource.ID]; ok && e.fingerprint == fp {
		p.mu.Unlock()
		return e, nil
	}
	p.mu.Unlock()

	conn, err := factory.Connect(ctx, datasource.Configuration)
	if err != nil {
		return nil, fmt.Errorf("connect datasource %s: %w", datasource.ID, err)
	}

	created := &entry{
		datasourceID: datasource.ID,
		fingerprint:  fp,
		factory:      factory,
		conn:         conn,
		lastUsed:     p.now(),
	}

	p.mu.Lock()
	var stale *entry
	if old, ok := p.entries[datasource.ID]; ok && p.retire(old) {
		stale = old
	}
	p.entries[datasource.ID] = created
	p.mu.Unlock()

	metrics.ActiveDatasourceConnections.Inc()
	p.logger.DebugContext(ctx, "Datasource connected", "datasource_id", datasource.ID)

	if stale != nil {
		p.disconnect(stale)
	}

	return created, nil
}

func (p *Provider) connectUnsaved(ctx context.Context, datasource *models.Datasource, factory protocol.ConnectionFactory) (any, ReleaseFunc, error) {
	conn, err := factory.Connect(ctx, datasource.Configuration)
	if err != nil {
		return nil, nil, fmt.Errorf("connect unsaved datasource: %w", err)
	}

	e := &entry{factory: factory, conn: conn, retired: true}

	var once sync.Once

	return conn, func() { once.Do(func() { p.disconnect(e) }) }, nil
}

func (p *Provider) releaser(e *entry) ReleaseFunc {
	var once sync.Once

	return func() {
		once.Do(func() {
			p.mu.Lock()
			e.inUse--
			e.lastUsed = p.now()
			closeNow := e.retired && e.inUse == 0
			p.mu.Unlock()

			if closeNow {
				p.disconnect(e)
			}
		})
	}
}

// retire removes e from the cache. It must be called with p.mu held and
// reports whether the caller should disconnect e now.
func (p *Provider) retire(e *entry) bool {
	if e.retired {
		return false
	}

	e.retired = true
	if p.entries[e.datasourceID] == e {
		delete(p.entries, e.datasourceID)
	}

	metrics.ActiveDatasourceConnections.Dec()

	return e.inUse == 0
}

func (p *Provider) disconnect(e *entry) {
	if err := e.factory.Disconnect(e.conn); err != nil {
		p.logger.Warn("Failed to disconnect datasource", "datasource_id", e.datasourceID, "error", err)
	}
}

// Evict disconnects every cached handle idle for at least the idle TTL and
// returns how many were removed. Handles in use are never evicted.
func (p *Provider) Evict() int {
	now := p.now()

	p.mu.Lock()
	var idle []*entry
	for _, e := range p.entries {
		if e.inUse == 0 && now.Sub(e.lastUsed) >= p.idleTTL && p.retire(e) {
			idle = append(idle, e)
		}
	}
	p.mu.Unlock()

	for _, e := range idle {
		p.disconnect(e)
	}

	if len(idle) > 0 {
		p.logger.Info("Evicted idle datasource connections", "count", len(idle))
	}

	return len(idle)
}

// Invalidate drops the cached handle of a datasource, e.g. after it was updated.
func (p *Provider) Invalidate(datasourceID string) {
	p.mu.Lock()
	e, ok := p.entries[datasourceID]
	closeNow := ok && p.retire(e)
	p.mu.Unlock()

	if closeNow {
		p.disconnect(e)
	}
}

// Len returns the number of cached handles.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// Start schedules idle eviction every half idle TTL.
func (p *Provider) Start() error {
	interval := p.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { p.Evict() }); err != nil {
		return fmt.Errorf("failed to schedule datasource eviction: %w", err)
	}

	p.cron.Start()
	p.logger.Info("Datasource eviction scheduled", "interval", interval.String(), "idle_ttl", p.idleTTL.String())

	return nil
}

// Stop halts the eviction job and disconnects every idle handle. Handles in
// use are disconnected when released.
func (p *Provider) Stop(ctx context.Context) {
	if p.cron != nil {
		select {
		case <-p.cron.Stop().Done():
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	var idle []*entry
	for _, e := range p.entries {
		if p.retire(e) {
			idle = append(idle, e)
		}
	}
	p.mu.Unlock()

	for _, e := range idle {
		p.disconnect(e)
	}
}

func fingerprint(pluginID string, cfg models.Configuration) (string, error) {
	raw, err := json.Marshal(struct {
		PluginID      string               `json:"plugin_id"`
		Configuration models.Configuration `json:"configuration"`
	}{pluginID, cfg})
	if err != nil {
		return "", fmt.Errorf("fingerprint datasource configuration: %w", err)
	}

	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:8]), nil
}
