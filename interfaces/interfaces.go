// Package interfaces defines core abstractions for the interactions API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"time"

	"github.com/rxguard/interactions-api/referencedata"
)

// DataStore defines the contract for the shared reference data snapshot.
// Implementations provide thread-safe access with atomic swaps so checks keep
// running during a reload.
type DataStore interface {
	// GetReference returns the current immutable reference snapshot. Never
	// nil: before the first load completes an empty store is returned.
	GetReference() *referencedata.Store
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	// Data update methods
	UpdateReference(ref *referencedata.Store)
	BeginUpdate() bool
	EndUpdate()
}

// Loader defines the contract for building a reference snapshot from the
// configured dataset directory.
type Loader interface {
	Load(dir string) (*referencedata.Store, error)
}

// Scheduler defines the contract for the reload scheduler and its health
// monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// Validator defines the contract for request input validation.
type Validator interface {
	// ValidateDrugName checks a free-text drug or allergen name.
	ValidateDrugName(name string) error

	// ValidateConditionID checks a condition identifier token.
	ValidateConditionID(id string) error

	// ValidateReason checks a clinician-supplied override reason.
	ValidateReason(reason string) error
}
