// Package source adapts the external collaborators the pipeline reads: raw
// stamp feeds, work-schedule assignment, closing-period configuration and the
// employee roster. Memory variants back tests and light deployments; the
// Postgres variants read the tables those systems own.
package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"kintai/internal/attendance/models"
	"kintai/internal/batch"
	id "kintai/pkg/domain"
	"kintai/pkg/platform/sentinel"
)

type employeeKey struct {
	company  id.CompanyID
	employee id.EmployeeID
}

// MemoryStamps is an in-memory raw stamp feed.
type MemoryStamps struct {
	mu     sync.RWMutex
	stamps map[employeeKey][]models.RawTimeRecord
}

// NewMemoryStamps creates an empty stamp feed.
func NewMemoryStamps() *MemoryStamps {
	return &MemoryStamps{stamps: make(map[employeeKey][]models.RawTimeRecord)}
}

// Add appends a raw day.
func (s *MemoryStamps) Add(raw models.RawTimeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := employeeKey{company: raw.CompanyID, employee: raw.EmployeeID}
	s.stamps[key] = append(s.stamps[key], raw)
}

// ListPeriod returns raw days within [from, to], date-ascending.
func (s *MemoryStamps) ListPeriod(_ context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]models.RawTimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.RawTimeRecord
	for _, raw := range s.stamps[employeeKey{company: company, employee: employee}] {
		if raw.Date.Before(from) || raw.Date.After(to) {
			continue
		}
		out = append(out, raw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// MemorySchedules serves one schedule per employee with optional per-date
// overrides (holidays, shift changes).
type MemorySchedules struct {
	mu        sync.RWMutex
	defaults  map[employeeKey]models.WorkSchedule
	overrides map[employeeKey]map[time.Time]models.WorkSchedule
}

// NewMemorySchedules creates an empty schedule source.
func NewMemorySchedules() *MemorySchedules {
	return &MemorySchedules{
		defaults:  make(map[employeeKey]models.WorkSchedule),
		overrides: make(map[employeeKey]map[time.Time]models.WorkSchedule),
	}
}

// SetDefault assigns the employee's standing schedule.
func (s *MemorySchedules) SetDefault(company id.CompanyID, employee id.EmployeeID, schedule models.WorkSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[employeeKey{company: company, employee: employee}] = schedule
}

// SetOverride assigns a date-specific schedule (e.g. a designated holiday).
func (s *MemorySchedules) SetOverride(company id.CompanyID, employee id.EmployeeID, date time.Time, schedule models.WorkSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := employeeKey{company: company, employee: employee}
	if s.overrides[key] == nil {
		s.overrides[key] = make(map[time.Time]models.WorkSchedule)
	}
	s.overrides[key][date] = schedule
}

// ForDate returns the schedule effective on a date.
func (s *MemorySchedules) ForDate(_ context.Context, company id.CompanyID, employee id.EmployeeID, date time.Time) (models.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := employeeKey{company: company, employee: employee}
	if override, ok := s.overrides[key][date]; ok {
		return override, nil
	}
	return s.defaults[key], nil
}

// MemoryPeriods is an in-memory closing calendar.
type MemoryPeriods struct {
	mu      sync.RWMutex
	periods map[id.CompanyID]map[string]*models.ClosingPeriod
}

// NewMemoryPeriods creates an empty closing calendar.
func NewMemoryPeriods() *MemoryPeriods {
	return &MemoryPeriods{periods: make(map[id.CompanyID]map[string]*models.ClosingPeriod)}
}

// Set stores a period definition.
func (s *MemoryPeriods) Set(period *models.ClosingPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.periods[period.CompanyID] == nil {
		s.periods[period.CompanyID] = make(map[string]*models.ClosingPeriod)
	}
	copied := *period
	s.periods[period.CompanyID][period.Key] = &copied
}

// Get returns the period or nil when undefined.
func (s *MemoryPeriods) Get(_ context.Context, company id.CompanyID, periodKey string) (*models.ClosingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	period, ok := s.periods[company][periodKey]
	if !ok {
		return nil, nil
	}
	copied := *period
	return &copied, nil
}

// UpdateState records a lifecycle transition.
func (s *MemoryPeriods) UpdateState(_ context.Context, company id.CompanyID, periodKey string, state models.PeriodState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	period, ok := s.periods[company][periodKey]
	if !ok {
		return sentinel.ErrNotFound
	}
	period.State = state
	return nil
}

// MemoryRoster is an in-memory employee roster.
type MemoryRoster struct {
	mu      sync.RWMutex
	entries map[employeeKey]*batch.Employee
}

// NewMemoryRoster creates an empty roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{entries: make(map[employeeKey]*batch.Employee)}
}

// Set stores a roster entry.
func (s *MemoryRoster) Set(company id.CompanyID, entry batch.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[employeeKey{company: company, employee: entry.ID}] = &entry
}

// Get returns the roster entry or nil when unknown.
func (s *MemoryRoster) Get(_ context.Context, company id.CompanyID, employee id.EmployeeID) (*batch.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[employeeKey{company: company, employee: employee}]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}
