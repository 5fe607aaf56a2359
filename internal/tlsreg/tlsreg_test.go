package tlsreg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenseIDs(t *testing.T) {
	var r Registry

	assert.Equal(t, 0, r.RegisterThread())
	assert.Equal(t, 1, r.RegisterThread())
	assert.Equal(t, 2, r.RegisterThread())
	assert.Equal(t, 3, r.ThreadCount())

	r.Reset()
	assert.Equal(t, 0, r.ThreadCount())
	assert.Equal(t, 0, r.RegisterThread())
}

func TestConcurrentRegistration(t *testing.T) {
	var r Registry
	const n = 64

	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			ids[slot] = r.RegisterThread()
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, n)
		seen[id] = true
	}
}
