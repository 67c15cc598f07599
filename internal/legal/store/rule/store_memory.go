// Package rule persists legal-rule configuration. Configuration management
// owns writes; the core reads.
package rule

import (
	"context"
	"sync"

	"kintai/internal/legal/models"
	id "kintai/pkg/domain"
)

// MemoryStore is the in-memory implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[id.CompanyID][]*models.LegalRule
}

// NewMemory creates an empty in-memory rule store.
func NewMemory() *MemoryStore {
	return &MemoryStore{rules: make(map[id.CompanyID][]*models.LegalRule)}
}

// Seed replaces a company's rules wholesale; configuration loads use it.
func (s *MemoryStore) Seed(company id.CompanyID, rules []*models.LegalRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]*models.LegalRule, len(rules))
	copy(copied, rules)
	s.rules[company] = copied
}

// ListByCompany returns all rule rows for a company, any term, any scope.
func (s *MemoryStore) ListByCompany(_ context.Context, company id.CompanyID) ([]*models.LegalRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.LegalRule{}, s.rules[company]...), nil
}
