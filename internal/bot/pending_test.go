package bot

import (
	"sync"
	"testing"

	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStore_TakeSemantics(t *testing.T) {
	store := newPendingStore()
	store.put(1, model.PendingClarification{OwnerID: 10, Categories: []string{"Food"}})

	// Wrong owner leaves the entry in place
	_, err := store.take(1, 99)
	assert.ErrorIs(t, err, common.ErrUnauthorizedSelection)
	assert.Equal(t, 1, store.len())

	// Right owner removes it
	entry, err := store.take(1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Food"}, entry.Categories)
	assert.Equal(t, 0, store.len())

	// Second take is stale
	_, err = store.take(1, 10)
	assert.ErrorIs(t, err, common.ErrStaleSelection)

	// Unknown key is stale too
	_, err = store.take(42, 10)
	assert.ErrorIs(t, err, common.ErrStaleSelection)
}

func TestPendingStore_ExactlyOneConcurrentWinner(t *testing.T) {
	store := newPendingStore()
	store.put(7, model.PendingClarification{OwnerID: 10})

	const resolvers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, stale int

	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.take(7, 10)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				stale++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one resolver may see the entry")
	assert.Equal(t, resolvers-1, stale)
}
