package geocache

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// EntryQueue buffers freshly resolved cache entries between the geocoder and
// the batch writer. Entries arrive one at a time; the writer drains them into
// batches. A full queue drops the entry (the resolution is still served from
// the in-memory cache, it just won't survive a restart).
type EntryQueue struct {
	items  chan *Entry
	closed bool
	mu     sync.RWMutex
	logger *logrus.Logger
}

// NewEntryQueue creates a queue with the specified buffer size.
func NewEntryQueue(bufferSize int, logger *logrus.Logger) *EntryQueue {
	return &EntryQueue{
		items:  make(chan *Entry, bufferSize),
		logger: logger,
	}
}

// Push adds an entry to the queue without blocking.
func (q *EntryQueue) Push(entry *Entry) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- entry:
		q.logger.WithField("key", entry.Key).Debug("Queued geocode entry for persistence")
		return nil
	default:
		return ErrQueueFull
	}
}

// Items exposes the receive side for the batch writer. The channel is closed
// by Close once no more entries will arrive.
func (q *EntryQueue) Items() <-chan *Entry {
	return q.items
}

// Close stops the queue and prevents new entries from being added.
func (q *EntryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// Len returns the number of entries waiting to be flushed.
func (q *EntryQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed.
func (q *EntryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
