package bot

import (
	"sync"

	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/model"
)

// pendingStore tracks unresolved clarifications keyed by the id of the
// message that triggered them. The existence check, the ownership check and
// the removal happen under one lock, so under duplicate selection events
// exactly one resolver sees the entry and every other caller gets
// ErrStaleSelection.
type pendingStore struct {
	entries map[int]model.PendingClarification
	mu      sync.Mutex
}

func newPendingStore() *pendingStore {
	return &pendingStore{
		entries: make(map[int]model.PendingClarification),
	}
}

// put registers a clarification, replacing any previous entry for the key.
func (p *pendingStore) put(messageID int, entry model.PendingClarification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[messageID] = entry
}

// take atomically removes and returns the entry for messageID if it exists
// and belongs to senderID. A missing entry yields ErrStaleSelection; an
// ownership mismatch yields ErrUnauthorizedSelection and leaves the entry
// untouched.
func (p *pendingStore) take(messageID int, senderID int64) (model.PendingClarification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[messageID]
	if !ok {
		return model.PendingClarification{}, common.ErrStaleSelection
	}
	if entry.OwnerID != senderID {
		return model.PendingClarification{}, common.ErrUnauthorizedSelection
	}

	delete(p.entries, messageID)
	return entry, nil
}

// len reports the number of unresolved clarifications.
func (p *pendingStore) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
