package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_SingleWorkerKeepsOrder(t *testing.T) {
	pool := NewWorkerPool(1, 8)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		assert.True(t, pool.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	pool.Shutdown()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(2, 2)
	pool.Shutdown()
	pool.Shutdown()

	assert.False(t, pool.Submit(func() {}))
}
