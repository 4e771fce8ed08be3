package manager

import (
	"context"
	"time"

	"github.com/poiesic/lexis/core"
)

// DomainSummary describes a domain in listings.
type DomainSummary struct {
	ID            core.DomainID `json:"domain_id"`
	Name          string        `json:"domain_name"`
	NodeCount     int           `json:"node_count"`
	NeighborCount int           `json:"neighbor_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NeighborRef names a neighbor domain.
type NeighborRef struct {
	ID   core.DomainID `json:"domain_id"`
	Name string        `json:"domain_name"`
}

// DomainDetail is a DomainSummary with its neighbors resolved.
type DomainDetail struct {
	DomainSummary
	Neighbors []NeighborRef `json:"neighbors"`
}

func summarize(d *core.Domain) DomainSummary {
	return DomainSummary{
		ID:            d.ID,
		Name:          d.Name,
		NodeCount:     d.Size(),
		NeighborCount: len(d.Neighbors),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ListDomains returns every domain ordered by id.
func (m *Manager) ListDomains() []DomainSummary {
	domains := m.registry.List()
	out := make([]DomainSummary, len(domains))
	for i, d := range domains {
		out[i] = summarize(d)
	}
	return out
}

// GetDomain returns one domain with its neighbors' names. Neighbors that
// are no longer registered are listed without a name.
func (m *Manager) GetDomain(id core.DomainID) (*DomainDetail, error) {
	d, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	detail := &DomainDetail{
		DomainSummary: summarize(d),
		Neighbors:     make([]NeighborRef, len(d.Neighbors)),
	}
	for i, n := range d.Neighbors {
		detail.Neighbors[i] = NeighborRef{ID: n}
		if neighbor, err := m.registry.Get(n); err == nil {
			detail.Neighbors[i].Name = neighbor.Name
		}
	}
	return detail, nil
}

// HealthStatus summarizes Health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health reports whether the engine can serve searches.
type Health struct {
	Status         HealthStatus `json:"status"`
	StorageOK      bool         `json:"storage_ok"`
	EmbeddingOK    bool         `json:"embedding_ok"`
	DomainCount    int          `json:"domain_count"`
	TotalNodeCount int          `json:"total_node_count"`
}

// healthProbe is the text embedded to check the embedding service.
const healthProbe = "health check"

// Health probes the store and the node embedder. The engine is unhealthy
// without storage and degraded without embeddings or domains.
func (m *Manager) Health(ctx context.Context) Health {
	h := Health{}
	for _, d := range m.registry.List() {
		h.DomainCount++
		h.TotalNodeCount += d.Size()
	}

	if err := m.store.Ping(ctx); err != nil {
		m.logger.Warn("storage health check failed", "err", err)
	} else {
		h.StorageOK = true
	}
	if _, err := m.nodes.EmbedText(ctx, healthProbe); err != nil {
		m.logger.Warn("embedding health check failed", "err", err)
	} else {
		h.EmbeddingOK = true
	}

	switch {
	case !h.StorageOK:
		h.Status = StatusUnhealthy
	case !h.EmbeddingOK || h.DomainCount == 0:
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}
	return h
}
