package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/CortexAgents/models"
)

// Store is the append-only experience memory.
type Store interface {
	Add(ctx context.Context, situation, lesson, outcome string) (models.MemoryRecord, error)
	Retrieve(ctx context.Context, situation string, k int) ([]models.MemoryMatch, error)
}

type Embedder interface {
	Embed(text string) []float64
}

// InMemory keeps records in process. Safe for concurrent use.
type InMemory struct {
	agent    string
	mu       sync.RWMutex
	records  []models.MemoryRecord
	embedder Embedder
	now      func() time.Time
}

func NewInMemory(embedder Embedder) *InMemory {
	return newAgentMemory("", embedder)
}

func newAgentMemory(agent string, embedder Embedder) *InMemory {
	if embedder == nil {
		embedder = NewHashingEmbedder()
	}
	return &InMemory{agent: agent, embedder: embedder, now: time.Now}
}

func (m *InMemory) Add(ctx context.Context, situation, lesson, outcome string) (models.MemoryRecord, error) {
	rec, err := m.newRecord(situation, lesson, outcome)
	if err != nil {
		return models.MemoryRecord{}, err
	}
	m.append(rec)
	return rec, nil
}

func (m *InMemory) newRecord(situation, lesson, outcome string) (models.MemoryRecord, error) {
	if strings.TrimSpace(situation) == "" {
		return models.MemoryRecord{}, fmt.Errorf("memory situation is empty")
	}
	if strings.TrimSpace(lesson) == "" {
		return models.MemoryRecord{}, fmt.Errorf("memory lesson is empty")
	}
	return models.MemoryRecord{
		ID:        uuid.NewString(),
		Agent:     m.agent,
		Situation: situation,
		Lesson:    lesson,
		Outcome:   outcome,
		Embedding: m.embedder.Embed(situation),
		CreatedAt: m.now(),
	}, nil
}

func (m *InMemory) append(rec models.MemoryRecord) {
	if rec.Embedding == nil {
		rec.Embedding = m.embedder.Embed(rec.Situation)
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
}

// Retrieve returns at most k records ordered by non-increasing similarity.
// Equal scores keep the newest record first.
func (m *InMemory) Retrieve(ctx context.Context, situation string, k int) ([]models.MemoryMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []models.MemoryMatch{}, nil
	}
	query := m.embedder.Embed(situation)

	m.mu.RLock()
	matches := make([]models.MemoryMatch, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		matches = append(matches, models.MemoryMatch{Record: rec, Similarity: Cosine(query, rec.Embedding)})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
