package session_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/keycheck/pkg/session"
)

func TestHolder_SetGetClear(t *testing.T) {
	t.Parallel()
	h := session.NewHolder()

	_, ok := h.Get()
	assert.False(t, ok, "new holder is empty")

	h.Set("abc123")
	h.Set("def456")
	token, ok := h.Get()
	assert.True(t, ok)
	assert.Equal(t, "def456", token)

	h.Clear()
	_, ok = h.Get()
	assert.False(t, ok)
}

func TestHolder_EmptySetClears(t *testing.T) {
	t.Parallel()
	h := session.NewHolder()
	h.Set("abc123")

	h.Set("")

	_, ok := h.Get()
	assert.False(t, ok)
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	h := session.NewHolder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Set("abc123")
		}()
		go func() {
			defer wg.Done()
			if token, ok := h.Get(); ok {
				assert.Equal(t, "abc123", token)
			}
		}()
	}
	wg.Wait()
}

func TestStore_InPlaceNavigationKeepsToken(t *testing.T) {
	t.Parallel()
	store := session.NewStore()

	id, h := store.Open()
	h.Set("abc123")

	// navigate away and back within the same context
	again, err := store.Holder(id)
	require.NoError(t, err)
	token, ok := again.Get()
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)
}

func TestStore_ReplaceDropsToken(t *testing.T) {
	t.Parallel()
	store := session.NewStore()

	id, h := store.Open()
	h.Set("abc123")

	newID, fresh := store.Replace(id)
	assert.NotEqual(t, id, newID)

	_, ok := fresh.Get()
	assert.False(t, ok, "replaced context starts empty")
	_, ok = h.Get()
	assert.False(t, ok, "old holder is cleared")

	_, err := store.Holder(id)
	assert.ErrorIs(t, err, session.ErrContextNotFound)
	assert.Equal(t, 1, store.Len())
}

func TestStore_NewStoreHasNothing(t *testing.T) {
	t.Parallel()
	store := session.NewStore()
	id, h := store.Open()
	h.Set("abc123")

	// a second store models a restarted process
	restarted := session.NewStore()
	_, err := restarted.Holder(id)
	assert.ErrorIs(t, err, session.ErrContextNotFound)
}

func TestStore_CloseUnknownIsNoop(t *testing.T) {
	t.Parallel()
	store := session.NewStore()
	store.Close("missing")
	assert.Equal(t, 0, store.Len())
}
