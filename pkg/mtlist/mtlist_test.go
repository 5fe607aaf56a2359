package mtlist

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	var l List[int]
	for i := range 10 {
		l.Push(i)
	}

	got := l.TryPopAll()
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestTryPopAllEmpty(t *testing.T) {
	var l List[string]
	assert.Nil(t, l.TryPopAll())
	assert.Zero(t, l.Size())
}

func TestPopAllBlocksUntilPush(t *testing.T) {
	l := New[int]()
	done := make(chan []int, 1)

	go func() {
		items, ok := l.PopAll()
		require.True(t, ok)
		done <- items
	}()

	// Give the consumer time to block before producing.
	time.Sleep(20 * time.Millisecond)
	l.Push(42)

	select {
	case items := <-done:
		assert.Equal(t, []int{42}, items)
	case <-time.After(time.Second):
		t.Fatal("consumer did not wake on push")
	}
}

func TestCloseWakesConsumer(t *testing.T) {
	l := New[int]()
	done := make(chan bool, 1)

	go func() {
		_, ok := l.PopAll()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	l.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not wake on close")
	}
}

func TestCloseKeepsQueuedItems(t *testing.T) {
	l := New[int]()
	l.Push(1)
	l.Push(2)
	l.Close()

	items, ok := l.PopAll()
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, items)

	// Now closed and drained.
	_, ok = l.PopAll()
	assert.False(t, ok)

	// Pushes after close are dropped.
	l.Push(3)
	assert.Zero(t, l.Size())
}

func TestConcurrentProducers(t *testing.T) {
	l := New[int]()
	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := range perProducer {
				l.Push(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, v := range l.TryPopAll() {
		assert.False(t, seen[v], "duplicate item %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, producers*perProducer)
}
