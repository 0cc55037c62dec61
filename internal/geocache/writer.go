package geocache

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estimmo/server/config"
)

// Writer drains the entry queue and persists entries in retried transactional
// batches. A batch is flushed when it reaches MaxBatchSize or when
// MaxBatchWaitTime elapses with entries pending.
type Writer struct {
	db        *gorm.DB
	queue     *EntryQueue
	config    *config.Config
	logger    *logrus.Logger
	waitGroup sync.WaitGroup
}

// NewWriter creates a new batch writer instance.
func NewWriter(db *gorm.DB, queue *EntryQueue, config *config.Config, logger *logrus.Logger) *Writer {
	return &Writer{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
	}
}

// Start begins draining the queue.
func (w *Writer) Start() {
	w.waitGroup.Add(1)
	go w.run()
}

// Stop waits for the writer to flush remaining entries and exit. The queue
// must be closed first so the drain loop can terminate.
func (w *Writer) Stop() {
	w.waitGroup.Wait()
}

func (w *Writer) run() {
	defer w.waitGroup.Done()

	maxSize := w.config.CacheFlush.MaxBatchSize
	if maxSize <= 0 {
		maxSize = 100
	}
	waitTime := time.Duration(w.config.CacheFlush.MaxBatchWaitTime) * time.Second
	if waitTime <= 0 {
		waitTime = 30 * time.Second
	}

	ticker := time.NewTicker(waitTime)
	defer ticker.Stop()

	var batch []*Entry
	for {
		select {
		case entry, ok := <-w.queue.Items():
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= maxSize {
				w.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = nil
			}
		}
	}
}

// flush writes a batch with transaction and retry logic.
func (w *Writer) flush(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	var err error
	for attempt := 0; attempt <= w.config.CacheFlush.MaxRetries; attempt++ {
		if attempt > 0 {
			w.logger.Infof("Retrying cache flush, attempt %d of %d", attempt, w.config.CacheFlush.MaxRetries)
			time.Sleep(time.Duration(w.config.CacheFlush.RetryDelay) * time.Second)
		}

		err = w.db.Transaction(func(tx *gorm.DB) error {
			if err := UpsertEntries(tx, batch); err != nil {
				return fmt.Errorf("failed to upsert geocode entries: %w", err)
			}
			return nil
		})

		if err == nil {
			w.logger.Infof("Persisted batch of %d geocode entries", len(batch))
			return
		}

		w.logger.Errorf("Cache flush failed: %v", err)
	}

	// Entries stay served from the in-memory cache even when persistence
	// gives up, so this is a warn, not a fatal.
	w.logger.Warnf("Dropping batch of %d geocode entries after %d attempts", len(batch), w.config.CacheFlush.MaxRetries)
}
