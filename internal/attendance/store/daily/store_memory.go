// Package daily persists daily labor records. Records are append-only per
// (employee, date): a re-normalization or correction writes a new revision and
// readers see only the latest.
package daily

import (
	"context"
	"sort"
	"sync"
	"time"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
)

type memoryKey struct {
	company  id.CompanyID
	employee id.EmployeeID
}

// MemoryStore is the in-memory implementation, used in tests and as the
// reference for the Postgres twin.
type MemoryStore struct {
	mu sync.RWMutex
	// revisions per employee per date, oldest first
	records map[memoryKey]map[time.Time][]*models.DailyLaborRecord
}

// NewMemory creates an empty in-memory daily record store.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]map[time.Time][]*models.DailyLaborRecord)}
}

// Put appends a new revision for the record's (employee, date). The stored
// copy gets the next revision number; the caller's struct is not mutated.
func (s *MemoryStore) Put(_ context.Context, record *models.DailyLaborRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{company: record.CompanyID, employee: record.EmployeeID}
	byDate, ok := s.records[key]
	if !ok {
		byDate = make(map[time.Time][]*models.DailyLaborRecord)
		s.records[key] = byDate
	}

	stored := *record
	stored.Revision = len(byDate[record.Date]) + 1
	byDate[record.Date] = append(byDate[record.Date], &stored)
	return nil
}

// Latest returns the current revision for a date, or nil when absent.
func (s *MemoryStore) Latest(_ context.Context, company id.CompanyID, employee id.EmployeeID, date time.Time) (*models.DailyLaborRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	revisions := s.records[memoryKey{company: company, employee: employee}][date]
	if len(revisions) == 0 {
		return nil, nil
	}
	rec := *revisions[len(revisions)-1]
	return &rec, nil
}

// ListPeriod returns the latest revision per date within [from, to],
// date-ascending.
func (s *MemoryStore) ListPeriod(_ context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]*models.DailyLaborRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DailyLaborRecord
	for date, revisions := range s.records[memoryKey{company: company, employee: employee}] {
		if date.Before(from) || date.After(to) || len(revisions) == 0 {
			continue
		}
		rec := *revisions[len(revisions)-1]
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
