package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"estimmo/server/internal/dvf"
)

// Scheduler keeps the DVF dataset catalog in sync with the data directory.
// Yearly files appear (and occasionally disappear) while the service runs;
// the rescan makes new vintages selectable without a restart.
type Scheduler struct {
	catalog  *dvf.Catalog
	logger   *logrus.Logger
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // Ensures sequential rescans
}

// NewScheduler creates a scheduler rescanning at the given interval.
func NewScheduler(catalog *dvf.Catalog, logger *logrus.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		catalog:  catalog,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs an initial rescan and begins the periodic loop.
func (s *Scheduler) Start() {
	s.runRescan()

	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runRescan()
		}
	}
}

func (s *Scheduler) runRescan() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	if err := s.catalog.Rescan(); err != nil {
		s.logger.WithError(err).Error("Dataset catalog rescan failed")
	}
}

// Stop terminates the periodic loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
