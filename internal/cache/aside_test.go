package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/outstandingcode/gamenight/internal/dedupe"
)

func readyManager(t *testing.T, backend Backend) *Manager {
	t.Helper()
	m := NewManager(managerOpts(func(context.Context) (Backend, error) {
		return backend, nil
	}), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func TestAsideComputesOnMissThenServesLocal(t *testing.T) {
	local := NewLocal()
	defer local.Close()
	a := NewAside(nil, local, dedupe.NewMemory(), zerolog.Nop())

	var computes atomic.Int64
	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		return []byte("fresh"), nil
	}

	ctx := context.Background()
	value, err := a.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), value)

	value, err = a.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), value)
	require.EqualValues(t, 1, computes.Load())
}

func TestAsidePrefersSharedCache(t *testing.T) {
	shared := newFakeBackend()
	require.NoError(t, shared.Set(context.Background(), "k", []byte("from shared"), time.Minute))

	local := NewLocal()
	defer local.Close()
	a := NewAside(readyManager(t, shared), local, nil, zerolog.Nop())

	value, err := a.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		t.Error("compute ran despite a shared cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte("from shared"), value)
}

func TestAsideWritesBackToShared(t *testing.T) {
	shared := newFakeBackend()
	local := NewLocal()
	defer local.Close()
	a := NewAside(readyManager(t, shared), local, nil, zerolog.Nop())

	_, err := a.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	require.NoError(t, err)

	stored, err := shared.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("computed"), stored)

	// The shared write is exclusive; local stays empty for this key.
	_, err = local.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestAsideSharedReadFailureFallsThrough(t *testing.T) {
	shared := newFakeBackend()
	shared.getErr = errors.New("connection reset")

	local := NewLocal()
	defer local.Close()
	require.NoError(t, local.Set(context.Background(), "k", []byte("from local"), time.Minute))

	a := NewAside(readyManager(t, shared), local, nil, zerolog.Nop())
	value, err := a.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		t.Error("compute ran despite a local hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte("from local"), value)
}

func TestAsideComputeErrorPropagates(t *testing.T) {
	local := NewLocal()
	defer local.Close()
	a := NewAside(nil, local, nil, zerolog.Nop())

	boom := errors.New("upstream exploded")
	_, err := a.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// Failures are never cached.
	_, err = local.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestAsideDeduplicatesConcurrentComputes(t *testing.T) {
	local := NewLocal()
	defer local.Close()
	a := NewAside(nil, local, dedupe.NewMemory(), zerolog.Nop())

	var computes atomic.Int64
	gate := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		computes.Add(1)
		<-gate
		return []byte("once"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := a.GetOrCompute(context.Background(), "k", time.Minute, compute)
			require.NoError(t, err)
			results[i] = value
		}(i)
	}

	// Let the callers pile onto the group before releasing the compute.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.EqualValues(t, 1, computes.Load())
	for _, value := range results {
		require.Equal(t, []byte("once"), value)
	}
}

func TestViewDecodesTypedValues(t *testing.T) {
	type payload struct {
		Games []int `json:"games"`
	}

	local := NewLocal()
	defer local.Close()
	a := NewAside(nil, local, nil, zerolog.Nop())

	var computes atomic.Int64
	compute := func(context.Context) (payload, error) {
		computes.Add(1)
		return payload{Games: []int{1, 2, 3}}, nil
	}

	ctx := context.Background()
	out, err := View(ctx, a, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, out.Games)

	out, err = View(ctx, a, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, out.Games)
	require.EqualValues(t, 1, computes.Load())
}

func TestViewRecomputesOnCorruptCacheValue(t *testing.T) {
	local := NewLocal()
	defer local.Close()
	require.NoError(t, local.Set(context.Background(), "k", []byte("garbage"), time.Minute))

	a := NewAside(nil, local, nil, zerolog.Nop())

	var computes atomic.Int64
	compute := func(context.Context) (string, error) {
		computes.Add(1)
		return "recomputed", nil
	}

	out, err := View(context.Background(), a, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "recomputed", out)

	// The corrupt entry was overwritten; the next read decodes cleanly.
	out, err = View(context.Background(), a, "k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "recomputed", out)
	require.EqualValues(t, 1, computes.Load())

	stored, err := local.Get(context.Background(), "k")
	require.NoError(t, err)
	var decoded string
	require.NoError(t, decode(stored, &decoded))
	require.Equal(t, "recomputed", decoded)
}
