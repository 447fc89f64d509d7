// Package scheduler owns the reference data lifecycle: the initial load at
// startup and the scheduled daily reloads. A failed reload keeps the previous
// snapshot in service; only the initial load is fatal.
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rxguard/interactions-api/interfaces"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/metrics"
	"github.com/rxguard/interactions-api/referencedata"
)

// Compile-time checks against the shared contracts
var (
	_ interfaces.Scheduler = (*Scheduler)(nil)
	_ interfaces.Loader    = (*referencedata.FileLoader)(nil)
)

// Scheduler reloads the reference snapshot on a daily schedule using
// injected dependencies.
type Scheduler struct {
	dataStore interfaces.DataStore
	loader    interfaces.Loader
	dataDir   string
	times     []string
	scheduler *gocron.Scheduler
}

// NewScheduler creates a scheduler that loads from dataDir at the given
// HH:MM times each day.
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.Loader, dataDir string, times []string) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		loader:    loader,
		dataDir:   dataDir,
		times:     times,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial load and schedules the daily reloads. An error
// from the initial load is fatal to startup: the engine must never serve
// checks on empty or partial reference data.
func (s *Scheduler) Start() error {
	if err := s.updateReference(); err != nil {
		logging.Error("Failed to perform initial reference load", "error", err)
		return fmt.Errorf("initial reference load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(strings.Join(s.times, ";")).Do(func() {
		if err := s.updateReference(); err != nil {
			metrics.ReferenceReloadFailures.Inc()
			logging.Error("Failed to reload reference data, keeping previous snapshot", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule reference reloads", "error", err)
		return fmt.Errorf("failed to schedule reference reloads: %w", err)
	}

	s.scheduler.StartAsync()

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// updateReference builds a new snapshot and swaps it in atomically. In-flight
// checks keep reading the old snapshot until the swap completes.
func (s *Scheduler) updateReference() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reference update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	start := time.Now()

	ref, err := s.loader.Load(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to load reference data: %w", err)
	}

	s.dataStore.UpdateReference(ref)

	elapsed := time.Since(start)
	metrics.ReferenceReloadDuration.Observe(elapsed.Seconds())
	publishCounts(ref)

	drugs, _, interactions, contraindications, groups := ref.Counts()
	logging.Info("Reference data update completed",
		"duration", elapsed.String(),
		"drugs", drugs,
		"interactions", interactions,
		"contraindications", contraindications,
		"cross_allergy_groups", groups,
	)

	return nil
}

func publishCounts(ref *referencedata.Store) {
	drugs, classes, interactions, contraindications, groups := ref.Counts()
	metrics.ReferenceEntries.WithLabelValues("drugs").Set(float64(drugs))
	metrics.ReferenceEntries.WithLabelValues("classes").Set(float64(classes))
	metrics.ReferenceEntries.WithLabelValues("interactions").Set(float64(interactions))
	metrics.ReferenceEntries.WithLabelValues("contraindications").Set(float64(contraindications))
	metrics.ReferenceEntries.WithLabelValues("cross_allergy_groups").Set(float64(groups))
}

// startHealthMonitoring warns when the snapshot goes stale, meaning the
// daily reload has stopped firing.
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			lastUpdate := s.dataStore.GetLastUpdated()
			if time.Since(lastUpdate) > 25*time.Hour {
				logging.Warn("Reference data hasn't been reloaded in over 25 hours")
			}
		}
	}()
}
