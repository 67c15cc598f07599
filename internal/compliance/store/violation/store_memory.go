// Package violation persists violator reports and their findings. Findings
// are append-only: a fresh detector run replaces the rows for the same
// (employee, period, granularity) keys, never edits them.
package violation

import (
	"context"
	"sort"
	"sync"
	"time"

	"kintai/internal/compliance/models"
	id "kintai/pkg/domain"
)

type memoryKey struct {
	company  id.CompanyID
	employee id.EmployeeID
	period   string
	gran     models.Granularity
	date     time.Time // zero for monthly/yearly rows
}

func keyOf(r *models.ViolatorReport) memoryKey {
	key := memoryKey{
		company:  r.CompanyID,
		employee: r.EmployeeID,
		period:   r.PeriodKey,
		gran:     r.Granularity,
	}
	if r.Date != nil {
		key.date = *r.Date
	}
	return key
}

// MemoryStore is the in-memory implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[memoryKey]*models.ViolatorReport
}

// NewMemory creates an empty in-memory report store.
func NewMemory() *MemoryStore {
	return &MemoryStore{reports: make(map[memoryKey]*models.ViolatorReport)}
}

// PutReports stores a run's reports, superseding any prior rows under the
// same keys.
func (s *MemoryStore) PutReports(_ context.Context, reports []*models.ViolatorReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reports {
		copied := *r
		copied.Findings = append([]models.Violation{}, r.Findings...)
		s.reports[keyOf(r)] = &copied
	}
	return nil
}

// ListByEmployee returns the stored reports for one employee and period,
// monthly first, then yearly, then daily rows date-ascending.
func (s *MemoryStore) ListByEmployee(_ context.Context, company id.CompanyID, employee id.EmployeeID, periodKey string) ([]*models.ViolatorReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ViolatorReport
	for key, r := range s.reports {
		if key.company != company || key.employee != employee {
			continue
		}
		// Yearly rows key on the year label; match them through the
		// period prefix.
		if key.period != periodKey && !(key.gran == models.GranularityYearly && len(periodKey) >= 4 && key.period == periodKey[:4]) {
			continue
		}
		copied := *r
		copied.Findings = append([]models.Violation{}, r.Findings...)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Granularity != out[j].Granularity {
			return granOrder(out[i].Granularity) < granOrder(out[j].Granularity)
		}
		di, dj := time.Time{}, time.Time{}
		if out[i].Date != nil {
			di = *out[i].Date
		}
		if out[j].Date != nil {
			dj = *out[j].Date
		}
		return di.Before(dj)
	})
	return out, nil
}

func granOrder(g models.Granularity) int {
	switch g {
	case models.GranularityMonthly:
		return 0
	case models.GranularityYearly:
		return 1
	default:
		return 2
	}
}
