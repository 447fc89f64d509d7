// Package health provides health checking for the interactions API.
package health

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/rxguard/interactions-api/interfaces"
)

// Checker reports service health from the state of the reference snapshot.
type Checker struct {
	dataStore   interfaces.DataStore
	reloadTimes []string
}

// NewChecker creates a health checker with injected dependencies. reloadTimes
// are the scheduler's daily HH:MM entries, used to report the next reload.
func NewChecker(dataStore interfaces.DataStore, reloadTimes []string) *Checker {
	return &Checker{
		dataStore:   dataStore,
		reloadTimes: reloadTimes,
	}
}

// HealthCheck returns HTTP-specific health data. An engine serving checks
// from an empty snapshot is unhealthy, not degraded: a check that silently
// finds nothing is worse than no check at all.
func (h *Checker) HealthCheck() (status string, data map[string]any, httpStatus int) {
	ref := h.dataStore.GetReference()
	drugs, classes, interactions, contraindications, groups := ref.Counts()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)

	switch {
	case drugs == 0 || interactions == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":          lastUpdate.Format(time.RFC3339),
		"data_age_hours":       math.Round(dataAge.Hours()*10) / 10,
		"drugs":                drugs,
		"classes":              classes,
		"interactions":         interactions,
		"contraindications":    contraindications,
		"cross_allergy_groups": groups,
		"is_updating":          isUpdating,
		"next_update":          h.CalculateNextUpdate().Format(time.RFC3339),
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time from the
// configured daily HH:MM entries.
func (h *Checker) CalculateNextUpdate() time.Time {
	now := time.Now()

	var todays []time.Time
	for _, at := range h.reloadTimes {
		t, err := time.Parse("15:04", at)
		if err != nil {
			continue
		}
		todays = append(todays, time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()))
	}
	if len(todays) == 0 {
		return now.AddDate(0, 0, 1)
	}

	sort.Slice(todays, func(i, j int) bool { return todays[i].Before(todays[j]) })

	for _, t := range todays {
		if now.Before(t) {
			return t
		}
	}

	// All of today's slots have passed; next is the earliest slot tomorrow.
	return todays[0].AddDate(0, 0, 1)
}
