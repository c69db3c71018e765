package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/models"
)

func seeded(t *testing.T) *InMemory {
	t.Helper()
	ctx := context.Background()
	m := NewInMemory(nil)
	situations := []string{
		"BTC rallies on ETF inflows with rising volume",
		"Tech earnings beat expectations but guidance is weak",
		"Oil prices spike after supply cuts",
		"BTC drops as exchange outflows accelerate",
		"Interest rate hike surprises the market",
	}
	for i, s := range situations {
		_, err := m.Add(ctx, s, fmt.Sprintf("lesson %d", i), "+1.0%")
		require.NoError(t, err)
	}
	return m
}

func TestRetrieveBoundedAndOrdered(t *testing.T) {
	m := seeded(t)
	for _, k := range []int{0, 1, 2, 5, 10} {
		matches, err := m.Retrieve(context.Background(), "BTC volume rising on inflows", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(matches), k)
		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
		}
	}
}

func TestRetrieveExactMatchFirst(t *testing.T) {
	m := seeded(t)
	matches, err := m.Retrieve(context.Background(), "Oil prices spike after supply cuts", 3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Oil prices spike after supply cuts", matches[0].Record.Situation)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
}

func TestRetrieveTiesPreferNewest(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory(nil)
	_, err := m.Add(ctx, "same situation", "old lesson", "")
	require.NoError(t, err)
	_, err = m.Add(ctx, "same situation", "new lesson", "")
	require.NoError(t, err)

	matches, err := m.Retrieve(ctx, "same situation", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "new lesson", matches[0].Record.Lesson)
}

func TestRetrieveEmptyStore(t *testing.T) {
	matches, err := NewInMemory(nil).Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAddRejectsEmptyInput(t *testing.T) {
	m := NewInMemory(nil)
	_, err := m.Add(context.Background(), "", "lesson", "")
	assert.Error(t, err)
	_, err = m.Add(context.Background(), "situation", " ", "")
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestRetrieveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seeded(t).Retrieve(ctx, "BTC", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedIsNormalizedAndDeterministic(t *testing.T) {
	e := NewHashingEmbedder()
	a := e.Embed("Bitcoin, bitcoin and ETH!")
	b := e.Embed("bitcoin BITCOIN and eth")
	assert.Len(t, a, DefaultDims)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, e.Embed("")))
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) InsertMemory(ctx context.Context, rec models.MemoryRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockBackend) ListMemories(ctx context.Context) ([]models.MemoryRecord, error) {
	args := m.Called(ctx)
	recs, _ := args.Get(0).([]models.MemoryRecord)
	return recs, args.Error(1)
}

func TestPersistentLoadsAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	backend := &mockBackend{}
	backend.On("ListMemories", ctx).Return([]models.MemoryRecord{
		{ID: "m1", Agent: "Trader", Situation: "ETH upgrade lifts sentiment", Lesson: "buy the rumour"},
		{ID: "m2", Agent: "Bull Researcher", Situation: "ETH upgrade lifts sentiment", Lesson: "not mine"},
	}, nil)
	backend.On("InsertMemory", ctx, mock.AnythingOfType("models.MemoryRecord")).Return(nil)

	p, err := OpenPersistent(ctx, backend, "Trader", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())

	rec, err := p.Add(ctx, "BTC halving approaches", "size in slowly", "+4.2%")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Trader", rec.Agent)
	assert.Equal(t, 2, p.Len())

	matches, err := p.Retrieve(ctx, "ETH upgrade lifts sentiment", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].Record.ID)
	backend.AssertExpectations(t)
}

func TestPersistentDoesNotIndexFailedWrites(t *testing.T) {
	ctx := context.Background()
	backend := &mockBackend{}
	backend.On("ListMemories", ctx).Return(nil, nil)
	backend.On("InsertMemory", ctx, mock.Anything).Return(errors.New("disk full"))

	p, err := OpenPersistent(ctx, backend, "Trader", nil)
	require.NoError(t, err)

	_, err = p.Add(ctx, "situation", "lesson", "")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, p.Len())
}

func TestBankKeepsAgentsApart(t *testing.T) {
	ctx := context.Background()
	bank := NewInMemoryBank(nil)
	situation := "BTC rallies on ETF inflows with rising volume"

	_, err := bank.For("Bull Researcher").Add(ctx, situation, "bull lesson", "gain +2.00%")
	require.NoError(t, err)
	_, err = bank.For("Trader").Add(ctx, situation, "trader lesson", "gain +2.00%")
	require.NoError(t, err)

	matches, err := bank.For("Bull Researcher").Retrieve(ctx, situation, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bull lesson", matches[0].Record.Lesson)
	assert.Equal(t, "Bull Researcher", matches[0].Record.Agent)

	empty, err := bank.For("Bear Researcher").Retrieve(ctx, situation, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Same(t, bank.For("Trader"), bank.For("Trader"))
	assert.Equal(t, []string{"Bear Researcher", "Bull Researcher", "Trader"}, bank.Agents())
	assert.Equal(t, 2, bank.Len())
}

func TestPersistentBankSplitsStoredRecords(t *testing.T) {
	ctx := context.Background()
	backend := &mockBackend{}
	backend.On("ListMemories", ctx).Return([]models.MemoryRecord{
		{ID: "m1", Agent: "Trader", Situation: "oil spike", Lesson: "hedge energy"},
		{ID: "m2", Agent: "Risk Judge", Situation: "oil spike", Lesson: "cut size"},
		{ID: "m3", Agent: "Trader", Situation: "rate hike", Lesson: "wait"},
	}, nil)
	backend.On("InsertMemory", ctx, mock.MatchedBy(func(rec models.MemoryRecord) bool {
		return rec.Agent == "Bear Researcher"
	})).Return(nil)

	bank, err := OpenPersistentBank(ctx, backend, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, bank.Len())

	matches, err := bank.For("Risk Judge").Retrieve(ctx, "oil spike", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m2", matches[0].Record.ID)

	_, err = bank.For("Bear Researcher").Add(ctx, "oil spike", "fade the move", "")
	require.NoError(t, err)
	backend.AssertExpectations(t)
}
