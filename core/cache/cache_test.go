package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitionlab/fleetpath/core/model"
)

func TestGetOrComputeSingleWriter(t *testing.T) {
	c, err := New[int](8)
	require.NoError(t, err)

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute("key", func() (int, bool, error) {
				calls.Add(1)
				return 42, true, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one computation")
	assert.Equal(t, 1, c.Len())
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, err := New[int](8)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.GetOrCompute("key", func() (int, bool, error) { return 0, false, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())

	// A later computation succeeds and is cached.
	v, err := c.GetOrCompute("key", func() (int, bool, error) { return 7, true, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, c.Len())
}

func TestGetOrComputeNonStorable(t *testing.T) {
	c, err := New[int](8)
	require.NoError(t, err)

	v, err := c.GetOrCompute("key", func() (int, bool, error) { return 9, false, nil })
	require.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.Zero(t, c.Len(), "non-storable values must not poison the cache")

	_, ok := c.Peek("key")
	assert.False(t, ok)
}

func TestEviction(t *testing.T) {
	c, err := New[int](2)
	require.NoError(t, err)
	for i, key := range []string{"a", "b", "c"} {
		_, err := c.GetOrCompute(key, func() (int, bool, error) { return i, true, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Peek("a")
	assert.False(t, ok, "oldest entry is evicted")
}

func TestFingerprint(t *testing.T) {
	sc := model.ScenarioDefinition{
		ID:              "sc",
		Years:           []int{2025, 2030},
		VehicleTypes:    []string{"bus"},
		TargetReduction: 0.5,
	}

	a := Fingerprint(sc, "v1")
	b := Fingerprint(sc, "v1")
	assert.Equal(t, a, b, "fingerprints are deterministic")

	assert.NotEqual(t, a, Fingerprint(sc, "v2"), "catalog version is part of the key")

	sc.TargetReduction = 0.6
	assert.NotEqual(t, a, Fingerprint(sc, "v1"), "scenario content is part of the key")
}
