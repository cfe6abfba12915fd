package vehicle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCounter_SequentialFromZero(t *testing.T) {
	ids := NewIDCounter()
	for want := ID(0); want < 5; want++ {
		assert.Equal(t, want, ids.Peek())
		assert.Equal(t, want, ids.Next())
	}
}

func TestIDCounter_Reset(t *testing.T) {
	ids := NewIDCounter()
	ids.Next()
	ids.Next()

	ids.Reset()
	assert.Equal(t, ID(0), ids.Next())
	assert.Equal(t, ID(1), ids.Next())
}

func TestIDCounter_ConcurrentNextIsUnique(t *testing.T) {
	const workers, perWorker = 8, 250
	ids := NewIDCounter()

	var (
		mu   sync.Mutex
		seen = make(map[ID]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, ids.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for id := ID(0); id < workers*perWorker; id++ {
		_, ok := seen[id]
		assert.True(t, ok, "missing id %d", id)
	}
}
