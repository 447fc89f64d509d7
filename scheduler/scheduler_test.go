package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rxguard/interactions-api/referencedata"
	"github.com/rxguard/interactions-api/referencedata/entities"
)

// mockDataStore for testing the scheduler
type mockDataStore struct {
	reference   *referencedata.Store
	lastUpdated time.Time
	updating    bool
	updateCount int
}

func (m *mockDataStore) GetReference() *referencedata.Store {
	if m.reference == nil {
		return referencedata.Empty()
	}
	return m.reference
}

func (m *mockDataStore) GetLastUpdated() time.Time     { return m.lastUpdated }
func (m *mockDataStore) IsUpdating() bool              { return m.updating }
func (m *mockDataStore) GetServerStartTime() time.Time { return time.Now() }

func (m *mockDataStore) UpdateReference(ref *referencedata.Store) {
	m.reference = ref
	m.lastUpdated = time.Now()
	m.updateCount++
}

func (m *mockDataStore) BeginUpdate() bool {
	if m.updating {
		return false
	}
	m.updating = true
	return true
}

func (m *mockDataStore) EndUpdate() { m.updating = false }

// mockLoader for testing the scheduler
type mockLoader struct {
	loadCount  int
	shouldFail bool
}

func (m *mockLoader) Load(dir string) (*referencedata.Store, error) {
	m.loadCount++
	if m.shouldFail {
		return nil, errors.New("load failed")
	}
	return referencedata.Build(
		[]entities.DrugReference{{ID: "warfarin", Name: "Warfarin"}},
		nil, nil, nil, nil,
	)
}

func TestSchedulerInitialLoad(t *testing.T) {
	store := &mockDataStore{}
	loader := &mockLoader{}

	s := NewScheduler(store, loader, "refdata", []string{"06:00"})
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error during start: %v", err)
	}
	defer s.Stop()

	if loader.loadCount != 1 {
		t.Errorf("expected 1 load, got %d", loader.loadCount)
	}
	if store.updateCount != 1 {
		t.Errorf("expected 1 snapshot swap, got %d", store.updateCount)
	}
	if store.updating {
		t.Error("update flag must be released after the load")
	}
	drugs, _, _, _, _ := store.GetReference().Counts()
	if drugs != 1 {
		t.Errorf("expected loaded snapshot in store, got %d drugs", drugs)
	}
}

func TestSchedulerInitialLoadFailureIsFatal(t *testing.T) {
	store := &mockDataStore{}
	loader := &mockLoader{shouldFail: true}

	s := NewScheduler(store, loader, "refdata", []string{"06:00"})
	if err := s.Start(); err == nil {
		t.Fatal("expected error when initial load fails")
	}

	if store.updateCount != 0 {
		t.Error("failed load must not swap a snapshot in")
	}
	if store.updating {
		t.Error("update flag must be released after a failed load")
	}
}

func TestSchedulerSkipsConcurrentUpdate(t *testing.T) {
	store := &mockDataStore{updating: true}
	loader := &mockLoader{}

	s := NewScheduler(store, loader, "refdata", []string{"06:00"})
	if err := s.updateReference(); err != nil {
		t.Fatalf("skipped update should not error: %v", err)
	}

	if loader.loadCount != 0 {
		t.Error("loader must not run while another update is in progress")
	}
}

func TestSchedulerReloadFailureKeepsSnapshot(t *testing.T) {
	store := &mockDataStore{}
	loader := &mockLoader{}

	s := NewScheduler(store, loader, "refdata", []string{"06:00"})
	if err := s.updateReference(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	previous := store.GetReference()

	loader.shouldFail = true
	if err := s.updateReference(); err == nil {
		t.Fatal("expected error from failing reload")
	}

	if store.GetReference() != previous {
		t.Error("failed reload must keep the previous snapshot in service")
	}
	if store.updateCount != 1 {
		t.Errorf("expected 1 swap, got %d", store.updateCount)
	}
}
