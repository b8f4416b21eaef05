// Package retention implements the evidence retention policy. The janitor
// runs as a background goroutine, sweeping the local evidence store on an
// interval and deleting alert stills and clips older than the configured
// window. Deletion failures are logged and retried on the next cycle, never
// fatal.
package retention

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// DefaultRetentionDays is the retention window applied when the configured
// value is unset or non-positive.
const DefaultRetentionDays = 30

// CycleStats tracks what happened in a single retention sweep.
type CycleStats struct {
	Scanned int
	Deleted int
	Errors  int
}

// Janitor periodically prunes expired evidence objects under root.
type Janitor struct {
	root          string
	retentionDays int
	interval      time.Duration
	clock         clock.Clock
}

// NewJanitor creates a janitor sweeping root on the given interval.
func NewJanitor(root string, retentionDays int, interval time.Duration) *Janitor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if interval < time.Minute {
		interval = time.Hour
	}
	return &Janitor{
		root:          root,
		retentionDays: retentionDays,
		interval:      interval,
		clock:         clock.New(),
	}
}

// Start runs the janitor. It blocks until ctx is cancelled; run it in its
// own goroutine.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Str("root", j.root).
		Int("retention_days", j.retentionDays).
		Dur("interval", j.interval).
		Msg("retention janitor started")

	ticker := j.clock.Ticker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup.
	j.RunCycle()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle()
		}
	}
}

// RunCycle performs one retention sweep and reports what it did.
func (j *Janitor) RunCycle() CycleStats {
	cutoff := j.clock.Now().AddDate(0, 0, -j.retentionDays)
	var stats CycleStats

	err := filepath.WalkDir(j.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++

		info, err := d.Info()
		if err != nil {
			stats.Errors++
			log.Warn().Err(err).Str("path", path).Msg("retention: stat failed")
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			stats.Errors++
			log.Warn().Err(err).Str("path", path).Msg("retention: delete failed")
			return nil
		}
		stats.Deleted++
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return stats
		}
		stats.Errors++
		log.Warn().Err(err).Str("root", j.root).Msg("retention sweep failed")
		return stats
	}

	j.pruneEmptyDirs()

	if stats.Deleted > 0 || stats.Errors > 0 {
		log.Info().
			Int("scanned", stats.Scanned).
			Int("deleted", stats.Deleted).
			Int("errors", stats.Errors).
			Msg("retention cycle complete")
	}
	return stats
}

// pruneEmptyDirs removes the date directories left behind after their
// objects expire. Deepest first so parents empty out as children go.
func (j *Janitor) pruneEmptyDirs() {
	var dirs []string
	filepath.WalkDir(j.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != j.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		os.Remove(dirs[i])
	}
}
