package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/CortexAgents/internal/storage/sqlite"
	"github.com/dyike/CortexAgents/models"
)

type HistoryPage struct {
	Items      []models.SessionRecord `json:"items"`
	NextCursor int64                  `json:"next_cursor,omitempty"`
	HasMore    bool                   `json:"has_more"`
}

// History pages sessions newest first.
func (s *Service) History(ctx context.Context, params models.HistoryParams) (*HistoryPage, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	// one extra row tells whether another page exists
	items, err := s.store.ListSessions(ctx, params.Cursor, limit+1)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		page.NextCursor = page.Items[limit-1].RowID
	}
	if page.Items == nil {
		page.Items = []models.SessionRecord{}
	}
	return page, nil
}

type SessionDetail struct {
	models.SessionRecord
	Decision *models.Decision        `json:"decision,omitempty"`
	Verdict  *models.ResearchVerdict `json:"verdict,omitempty"`
	Risk     *models.RiskAssessment  `json:"risk,omitempty"`
}

func (s *Service) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	rec, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{SessionRecord: *rec}

	state, err := s.store.LoadState(ctx, id)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		// still running
	case err != nil:
		return nil, err
	default:
		detail.Decision = state.Decision
		detail.Verdict = state.Verdict
		detail.Risk = state.RiskAssessment
	}
	return detail, nil
}

func (s *Service) ListMessages(ctx context.Context, id string) ([]models.MessageRecord, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.MessageRecord{}
	}
	return msgs, nil
}

// Reflect feeds the realized return of a finished session back into memory.
func (s *Service) Reflect(ctx context.Context, id string, params models.ReflectParams) ([]models.MemoryRecord, error) {
	engine, err := s.Engine()
	if err != nil {
		return nil, err
	}
	state, err := s.store.LoadState(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := engine.Reflector.Reflect(ctx, state, params.Returns)
	if err != nil {
		return records, fmt.Errorf("reflect on %s: %w", id, err)
	}
	return records, nil
}
