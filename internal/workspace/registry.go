package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/swms-manager/internal/realtime"
	"github.com/swms-manager/internal/swms"
	"github.com/swms-manager/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultsSource supplies the company details prefilled into new drafts.
type DefaultsSource interface {
	CompanyDefaults() swms.CompanyDetails
}

type entry struct {
	store     *Store
	companyID string
	lastUsed  time.Time
}

// Registry owns one Store per signed-in user. All stores share one id
// generator so job step ids are unique across the process.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	gw       Gateway
	defaults DefaultsSource
	ids      *swms.IDGenerator
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.MetricsCollector
}

func NewRegistry(gw Gateway, defaults DefaultsSource, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		gw:       gw,
		defaults: defaults,
		ids:      swms.NewIDGenerator(time.Now),
		now:      time.Now,
		logger:   logger.With(zap.String("component", "workspace_registry")),
		metrics:  metricsCollector,
	}
}

// Get returns the user's workspace, creating and loading it on first use.
// Company details are refreshed on every call.
func (r *Registry) Get(ctx context.Context, userID string, company swms.Company) *Store {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok && e.companyID != company.ID {
		ok = false
	}
	if ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		e.store.SetCompany(company)
		return e.store
	}

	store := NewStore(Deps{
		Gateway:  r.gw,
		Company:  company,
		Defaults: r.defaults.CompanyDefaults(),
		IDs:      r.ids,
		Now:      r.now,
		Logger:   r.logger,
		Metrics:  r.metrics,
	})
	r.entries[userID] = &entry{store: store, companyID: company.ID, lastUsed: r.now()}
	count := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetCounter("workspace.active", nil, int64(count))
	if err := store.Reload(ctx); err != nil {
		r.logger.Warn("Initial list load failed", zap.String("user_id", userID), zap.Error(err))
	}
	return store
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drop discards a user's workspace, e.g. on logout.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	delete(r.entries, userID)
	count := len(r.entries)
	r.mu.Unlock()
	r.metrics.SetCounter("workspace.active", nil, int64(count))
}

// Evict drops workspaces unused for longer than ttl and returns how many.
func (r *Registry) Evict(ttl time.Duration) int {
	r.mu.Lock()
	cutoff := r.now().Add(-ttl)
	evicted := 0
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	count := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetCounter("workspace.active", nil, int64(count))
	if evicted > 0 {
		r.logger.Info("Evicted idle workspaces", zap.Int("evicted", evicted), zap.Int("remaining", count))
	}
	return evicted
}

// ReloadCompany refreshes the list of every workspace in the company that
// is currently showing it. It returns the number reloaded.
func (r *Registry) ReloadCompany(ctx context.Context, companyID string) int {
	r.mu.Lock()
	var stores []*Store
	for _, e := range r.entries {
		if e.companyID == companyID {
			stores = append(stores, e.store)
		}
	}
	r.mu.Unlock()

	reloaded := 0
	for _, s := range stores {
		ran, err := s.ReloadIfListing(ctx)
		if err != nil {
			r.logger.Warn("Realtime reload failed", zap.String("company_id", companyID), zap.Error(err))
			continue
		}
		if ran {
			reloaded++
		}
	}
	return reloaded
}

// Run applies document changes from the broker until ctx ends or the
// broker closes.
func (r *Registry) Run(ctx context.Context, broker realtime.Broker) {
	changes, cancel := broker.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			n := r.ReloadCompany(ctx, change.CompanyID)
			r.metrics.IncrementCounter("workspace.realtime_changes", map[string]string{"type": string(change.Type)})
			r.logger.Debug("Applied document change",
				zap.String("type", string(change.Type)),
				zap.String("doc_id", change.DocumentID),
				zap.Int("reloaded", n))
		}
	}
}
