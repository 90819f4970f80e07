package audit

import (
	"sync"

	"github.com/app-sre/proms-mcp/internal/core"
)

// maxMemoryEntries bounds the ring so a chatty verifier cannot grow the
// process without limit.
const maxMemoryEntries = 1000

var _ core.Auditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps the most recent audit entries in memory. Used in
// tests and as the default backend when no audit file is configured.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > maxMemoryEntries {
		i.entries = i.entries[len(i.entries)-maxMemoryEntries:]
	}
	return nil
}

func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) {
		limit = len(i.entries)
	}
	start := len(i.entries) - limit
	entries := make([]core.AuditEntry, limit)
	copy(entries, i.entries[start:])

	return entries, nil
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
