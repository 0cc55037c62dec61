package dvf

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

var yearFilePattern = regexp.MustCompile(`^ValeursFoncieres-(\d{4})\.txt$`)

// Catalog tracks which yearly DVF files are present in the data directory.
// Partial coverage is expected; the catalog only answers "which years can be
// loaded right now".
type Catalog struct {
	dir    string
	logger *logrus.Logger
	mu     sync.RWMutex
	years  []int
}

func NewCatalog(dir string, logger *logrus.Logger) *Catalog {
	return &Catalog{
		dir:    dir,
		logger: logger,
	}
}

// Rescan walks the data directory and refreshes the list of available years.
func (c *Catalog) Rescan() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "ValeursFoncieres-*.txt"))
	if err != nil {
		return fmt.Errorf("failed to scan data directory: %v", err)
	}

	var years []int
	for _, match := range matches {
		m := yearFilePattern.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	c.mu.Lock()
	changed := len(years) != len(c.years)
	if !changed {
		for i := range years {
			if years[i] != c.years[i] {
				changed = true
				break
			}
		}
	}
	c.years = years
	c.mu.Unlock()

	if changed {
		c.logger.WithField("years", years).Info("DVF dataset catalog updated")
	}
	return nil
}

// Years returns the available years, most recent first.
func (c *Catalog) Years() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	years := make([]int, len(c.years))
	copy(years, c.years)
	return years
}

// Path returns the expected file location for a year, whether or not the
// file exists.
func (c *Catalog) Path(year int) string {
	return filepath.Join(c.dir, fmt.Sprintf("ValeursFoncieres-%d.txt", year))
}
