package intel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch-trading/tidewatch/internal/tokens"
)

type stubResolver struct {
	res tokens.Resolution
}

func (s *stubResolver) Resolve(ctx context.Context, symbol, preferredChain string) tokens.Resolution {
	return s.res
}

func TestInspector_UnresolvedSymbol(t *testing.T) {
	i := NewInspector(&stubResolver{}, &stubFetcher{}, DefaultScorerConfig(), 50)

	a := i.InspectSymbol(context.Background(), "OBSCURE", "ethereum", 1.0)
	assert.Equal(t, BiasNeutral, a.Bias)
	assert.Equal(t, 30, a.Confidence)
	require.Len(t, a.Evidence, 1)
	assert.Contains(t, a.Evidence[0], "No contract address available for OBSCURE")
	assert.Equal(t, int64(1), i.Stats().Unresolved)
}

func TestInspector_ResolvedSymbolScoresFlow(t *testing.T) {
	fetcher := &stubFetcher{transfers: []Transfer{
		transfer(RoleWhale, RoleExchange, 1000, 30*time.Minute, time.Now()),
	}}
	resolver := &stubResolver{res: tokens.Resolution{Address: "0xTOKEN", Chain: "ethereum"}}
	i := NewInspector(resolver, fetcher, DefaultScorerConfig(), 50)

	a := i.InspectSymbol(context.Background(), "PEPE", "ethereum", 2.0)
	assert.Equal(t, BiasBearish, a.Bias)
	assert.Equal(t, 1, a.AnalyzedTransfers)
	assert.Equal(t, int64(1), i.Stats().Inspected)
}

func TestInspector_FetchFailureDegrades(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("explorer down")}
	resolver := &stubResolver{res: tokens.Resolution{Address: "0xTOKEN", Chain: "ethereum"}}
	i := NewInspector(resolver, fetcher, DefaultScorerConfig(), 50)

	a := i.InspectSymbol(context.Background(), "PEPE", "ethereum", 2.0)
	assert.Equal(t, BiasNeutral, a.Bias)
	assert.Equal(t, 0, a.Confidence)
	assert.Equal(t, 0, a.AnalyzedTransfers)
}
