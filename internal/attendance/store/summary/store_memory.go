// Package summary persists monthly labor summaries. Put replaces the row for
// its (company, employee, period) key; the aggregator writes a fully computed
// summary in one call so readers never observe a partial sum.
package summary

import (
	"context"
	"sort"
	"strings"
	"sync"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
)

type memoryKey struct {
	company  id.CompanyID
	employee id.EmployeeID
	period   string
}

// MemoryStore is the in-memory implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[memoryKey]*models.MonthlyLaborSummary
}

// NewMemory creates an empty in-memory summary store.
func NewMemory() *MemoryStore {
	return &MemoryStore{summaries: make(map[memoryKey]*models.MonthlyLaborSummary)}
}

// Put replaces the summary for its key.
func (s *MemoryStore) Put(_ context.Context, summary *models.MonthlyLaborSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *summary
	s.summaries[memoryKey{company: summary.CompanyID, employee: summary.EmployeeID, period: summary.PeriodKey}] = &stored
	return nil
}

// Get returns the stored summary or nil when absent.
func (s *MemoryStore) Get(_ context.Context, company id.CompanyID, employee id.EmployeeID, periodKey string) (*models.MonthlyLaborSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.summaries[memoryKey{company: company, employee: employee, period: periodKey}]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

// ListYear returns the summaries whose period key starts with the year label,
// period-ascending. Period keys are "YYYY-MM" so the prefix is the agreement
// year.
func (s *MemoryStore) ListYear(_ context.Context, company id.CompanyID, employee id.EmployeeID, year string) ([]*models.MonthlyLaborSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.MonthlyLaborSummary
	for key, stored := range s.summaries {
		if key.company != company || key.employee != employee {
			continue
		}
		if !strings.HasPrefix(key.period, year+"-") {
			continue
		}
		copied := *stored
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodKey < out[j].PeriodKey })
	return out, nil
}
