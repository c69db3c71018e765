package memory

import (
	"context"
	"fmt"

	"github.com/dyike/CortexAgents/models"
)

// Backend is the durable side of a Persistent store.
type Backend interface {
	InsertMemory(ctx context.Context, rec models.MemoryRecord) error
	ListMemories(ctx context.Context) ([]models.MemoryRecord, error)
}

// Persistent writes through to a Backend and serves reads from an in-process
// index. Embeddings are recomputed, never stored.
type Persistent struct {
	backend Backend
	index   *InMemory
}

// OpenPersistent loads the records owned by agent.
func OpenPersistent(ctx context.Context, backend Backend, agent string, embedder Embedder) (*Persistent, error) {
	records, err := backend.ListMemories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	p := newPersistent(backend, agent, embedder)
	for _, rec := range records {
		if rec.Agent == agent {
			p.index.append(rec)
		}
	}
	return p, nil
}

func newPersistent(backend Backend, agent string, embedder Embedder) *Persistent {
	return &Persistent{backend: backend, index: newAgentMemory(agent, embedder)}
}

func (p *Persistent) Add(ctx context.Context, situation, lesson, outcome string) (models.MemoryRecord, error) {
	rec, err := p.index.newRecord(situation, lesson, outcome)
	if err != nil {
		return models.MemoryRecord{}, err
	}
	if err := p.backend.InsertMemory(ctx, rec); err != nil {
		return models.MemoryRecord{}, fmt.Errorf("persist memory: %w", err)
	}
	p.index.append(rec)
	return rec, nil
}

func (p *Persistent) Retrieve(ctx context.Context, situation string, k int) ([]models.MemoryMatch, error) {
	return p.index.Retrieve(ctx, situation, k)
}

func (p *Persistent) Len() int {
	return p.index.Len()
}
