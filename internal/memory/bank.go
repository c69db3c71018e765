package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dyike/CortexAgents/internal/logger"
)

// Bank hands out one experience memory per agent, so a role only ever
// recalls its own lessons.
type Bank interface {
	For(agent string) Store
}

// Collections is the Bank implementation. Stores are created on first use.
type Collections struct {
	mu     sync.Mutex
	stores map[string]Store
	create func(agent string) Store
}

func NewInMemoryBank(embedder Embedder) *Collections {
	return &Collections{
		stores: make(map[string]Store),
		create: func(agent string) Store { return newAgentMemory(agent, embedder) },
	}
}

// OpenPersistentBank loads every stored lesson once and splits it by agent.
func OpenPersistentBank(ctx context.Context, backend Backend, embedder Embedder) (*Collections, error) {
	records, err := backend.ListMemories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	c := &Collections{
		stores: make(map[string]Store),
		create: func(agent string) Store { return newPersistent(backend, agent, embedder) },
	}
	for _, rec := range records {
		p := c.For(rec.Agent).(*Persistent)
		p.index.append(rec)
	}
	logger.L().Debug().Int("records", len(records)).Int("agents", len(c.stores)).Msg("experience memory loaded")
	return c, nil
}

func (c *Collections) For(agent string) Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stores[agent]; ok {
		return st
	}
	st := c.create(agent)
	c.stores[agent] = st
	return st
}

// Agents lists the agents that own a collection.
func (c *Collections) Agents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.stores))
	for agent := range c.stores {
		out = append(out, agent)
	}
	sort.Strings(out)
	return out
}

// Len counts records across every agent.
func (c *Collections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, st := range c.stores {
		if l, ok := st.(interface{ Len() int }); ok {
			n += l.Len()
		}
	}
	return n
}
