package history

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chartsignal/internal/types"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of predictions kept per session.
const DefaultCapacity = 5

// Cache is a bounded, insertion-ordered list of history entries.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  []types.HistoryEntry
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make([]types.HistoryEntry, 0, capacity),
	}
}

// Record puts e at the front, drops whatever falls beyond capacity and
// returns the resulting sequence along with the number of evicted entries.
func (c *Cache) Record(e types.HistoryEntry) ([]types.HistoryEntry, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]types.HistoryEntry, 0, c.capacity)
	next = append(next, e)
	next = append(next, c.entries...)

	evicted := 0
	if len(next) > c.capacity {
		evicted = len(next) - c.capacity
		next = next[:c.capacity]
	}
	c.entries = next
	return c.snapshot(), evicted
}

// Entries returns a copy of the cache contents, newest first.
func (c *Cache) Entries() []types.HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Cap() int {
	return c.capacity
}

func (c *Cache) snapshot() []types.HistoryEntry {
	out := make([]types.HistoryEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

var fallbackSeq atomic.Uint64

// NewEntry stamps a prediction with a time-ordered unique id and a display timestamp.
func NewEntry(filename string, pred types.Prediction, preview string, at time.Time, layout string) types.HistoryEntry {
	var id string
	if u, err := uuid.NewV7(); err == nil {
		id = u.String()
	} else {
		// crypto/rand failed; stay unique within the process.
		id = fmt.Sprintf("%d-%d", at.UnixNano(), fallbackSeq.Add(1))
	}
	return types.HistoryEntry{
		ID:         id,
		Filename:   filename,
		Prediction: pred,
		Timestamp:  at.Format(layout),
		Preview:    preview,
	}
}
