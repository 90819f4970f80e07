package prom

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
)

// Registry holds one query client per configured datasource. Reload
// re-reads the provisioning file, so the set can change while the
// server runs.
type Registry struct {
	path    string
	timeout time.Duration

	mu      sync.RWMutex
	order   []string
	clients map[string]*Client
}

// NewRegistry creates an empty registry for the given provisioning file.
// Call Reload to populate it.
func NewRegistry(path string, timeout time.Duration) *Registry {
	return &Registry{
		path:    path,
		timeout: timeout,
		clients: make(map[string]*Client),
	}
}

// BuildRegistry creates a registry and performs the initial load.
func BuildRegistry(cfg config.DatasourcesConfig, timeout time.Duration) (*Registry, error) {
	reg := NewRegistry(cfg.Path, timeout)
	if _, err := reg.Reload(); err != nil {
		return nil, fmt.Errorf("loading datasources: %w", err)
	}
	return reg, nil
}

// Reload re-reads the provisioning file and swaps the client set. It
// returns the number of datasources now registered. Clients of
// unchanged datasources are kept so their connection pools survive.
func (r *Registry) Reload() (int, error) {
	datasources, err := config.LoadDatasources(r.path)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Client, len(datasources))
	order := make([]string, 0, len(datasources))
	for _, ds := range datasources {
		if prev, ok := r.clients[ds.Name]; ok && prev.Datasource() == ds {
			next[ds.Name] = prev
		} else {
			next[ds.Name] = NewClient(ds, r.timeout)
		}
		order = append(order, ds.Name)
	}

	r.clients = next
	r.order = order

	log.Info().Int("datasources", len(order)).Str("path", r.path).Msg("Datasources loaded")
	return len(order), nil
}

// Get returns the client for a datasource name.
func (r *Registry) Get(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// List returns the datasource descriptors in file order.
func (r *Registry) List() []core.Datasource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Datasource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.clients[name].Datasource())
	}
	return out
}

// Len returns the number of registered datasources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
