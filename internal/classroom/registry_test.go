package classroom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetNeverCreates(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Stats()["active_sessions"])
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(nil)
	s1 := r.GetOrCreate("c1")
	s2 := r.GetOrCreate("c1")
	assert.Same(t, s1, s2)
	assert.Equal(t, "c1", s1.ClassroomID())

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestRegistryConcurrentCreateSingleInstance(t *testing.T) {
	r := NewRegistry(nil)

	const goroutines = 50
	results := make([]*Session, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("c1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, r.Stats()["active_sessions"])
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("c1")
	r.Remove("c1")
	_, ok := r.Get("c1")
	assert.False(t, ok)

	// Removing twice changes nothing.
	r.Remove("c1")
}

func TestRegistryIsolatesClassrooms(t *testing.T) {
	r := NewRegistry(nil)
	for i := 0; i < 5; i++ {
		r.GetOrCreate(fmt.Sprintf("c%d", i))
	}
	assert.Equal(t, 5, r.Stats()["active_sessions"])

	r.Remove("c3")
	assert.Equal(t, 4, r.Stats()["active_sessions"])
}
