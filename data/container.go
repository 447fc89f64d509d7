// Package data provides thread-safe storage for the shared reference data
// snapshot. The DataContainer swaps complete immutable snapshots atomically,
// so prescription checks never observe a partially loaded index and reloads
// cause zero downtime.
package data

import (
	"sync/atomic"
	"time"

	"github.com/rxguard/interactions-api/interfaces"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/referencedata"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the reference snapshot behind atomic pointers.
type DataContainer struct {
	reference       atomic.Value // *referencedata.Store
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container holding an empty reference snapshot.
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.reference.Store(referencedata.Empty())
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Now())
	return dc
}

// GetReference returns the current reference snapshot. Checks running against
// a snapshot keep it alive even while a newer one is swapped in.
func (dc *DataContainer) GetReference() *referencedata.Store {
	if v := dc.reference.Load(); v != nil {
		if ref, ok := v.(*referencedata.Store); ok && ref != nil {
			return ref
		}
	}

	logging.Warn("Reference snapshot is empty or invalid")
	return referencedata.Empty()
}

// UpdateReference atomically swaps in a new snapshot.
func (dc *DataContainer) UpdateReference(ref *referencedata.Store) {
	if ref == nil {
		logging.Warn("Ignoring nil reference snapshot")
		return
	}
	dc.reference.Store(ref)
	dc.lastUpdated.Store(time.Now())
}

// GetLastUpdated returns the timestamp of the last snapshot swap.
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating reports whether a reload is in progress.
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// BeginUpdate marks the start of a reload. Returns false if another reload is
// already running.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload.
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}

// GetServerStartTime returns when the container was created.
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}
