package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexAgents/internal/utils"
	"github.com/dyike/CortexAgents/models"
)

type stubProvider struct {
	name  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []models.Bar{{Close: decimal.NewFromInt(1), Source: s.name}}, nil
}

func quickRetry() utils.RetryPolicy {
	return utils.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestFallbackUsesNextProviderAfterRetries(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("503")}
	secondary := &stubProvider{name: "secondary"}

	bars, err := NewFallback(quickRetry(), primary, secondary).Fetch(context.Background(), "BTC-USD", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, "secondary", bars[0].Source)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackSkipsUnsupportedWithoutRetry(t *testing.T) {
	crypto := &stubProvider{name: "crypto", err: ErrNotSupported}
	equity := &stubProvider{name: "equity"}

	_, err := NewFallback(quickRetry(), crypto, equity).Fetch(context.Background(), "AAPL", models.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 1, crypto.calls)
}

func TestFallbackAllFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("boom")}
	b := &stubProvider{name: "b", err: ErrNoData}

	f := NewFallback(quickRetry(), a, b)
	_, err := f.Fetch(context.Background(), "AAPL", models.DateRange{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "a: ")
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "fallback(a,b)", f.Name())
}

func TestFallbackNothingSupports(t *testing.T) {
	a := &stubProvider{name: "a", err: ErrNotSupported}
	_, err := NewFallback(quickRetry(), a).Fetch(context.Background(), "AAPL", models.DateRange{})
	assert.ErrorIs(t, err, ErrNotSupported)
}
