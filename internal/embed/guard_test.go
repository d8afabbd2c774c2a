package embed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowProvider counts in-flight embedding calls to detect overlap.
type slowProvider struct {
	inflight atomic.Int32
	overlap  atomic.Bool
	calls    atomic.Int32
}

func (s *slowProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.inflight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond)
	s.inflight.Add(-1)
	s.calls.Add(1)
	return []float32{1}, nil
}

func (s *slowProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *slowProvider) HealthCheck(ctx context.Context) Health { return Health{Healthy: true} }
func (s *slowProvider) Dimensions() int                        { return 1 }
func (s *slowProvider) ProviderID() string                     { return "slow" }
func (s *slowProvider) ModelID() string                        { return "slow-v1" }
func (s *slowProvider) Close() error                           { return nil }

func TestGuard_SerializesConcurrentEmbeds(t *testing.T) {
	// Given: a guarded provider that detects overlapping calls
	inner := &slowProvider{}
	guarded := Guard(inner)

	// When: many goroutines embed at once
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guarded.Embed(context.Background(), "text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Then: every call ran, none overlapped
	assert.Equal(t, int32(8), inner.calls.Load())
	assert.False(t, inner.overlap.Load())
}

func TestGuard_WrappingGuardedIsIdempotent(t *testing.T) {
	inner := &slowProvider{}
	once := Guard(inner)
	twice := Guard(once)
	assert.Same(t, once, twice)
}

func TestGuard_MetadataPassesThrough(t *testing.T) {
	guarded := Guard(&slowProvider{})
	assert.Equal(t, "slow", guarded.ProviderID())
	assert.Equal(t, "slow-v1", guarded.ModelID())
	assert.Equal(t, 1, guarded.Dimensions())
	require.True(t, guarded.HealthCheck(context.Background()).Healthy)
}
