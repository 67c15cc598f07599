// Package resolver picks the legal rule in force for a scope and date.
//
// Resolution order: exact (office, job type, reason type) match, then
// progressively wider wildcard scopes, then the statutory default. The
// statutory default applies only when the company holds no negotiated
// agreement at all. A company with agreements and no rule bracketing the date
// is a configuration error (CodeNoApplicableRule), never a silent fallback.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"kintai/internal/legal/models"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
)

// Store lists rule configuration rows. Read-only to the core.
type Store interface {
	ListByCompany(ctx context.Context, company id.CompanyID) ([]*models.LegalRule, error)
}

// Service resolves rules through a per-scope interval index rebuilt per
// company on demand. Rules are read-only for the duration of a batch run, so
// the index carries no invalidation beyond its builder.
type Service struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a resolver service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Resolve returns the applicable rule for the scope at the target date.
func (s *Service) Resolve(ctx context.Context, scope models.Scope, date time.Time) (*models.LegalRule, error) {
	rules, err := s.store.ListByCompany(ctx, scope.CompanyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list legal rules")
	}

	if len(rules) == 0 {
		// No negotiated agreement at all: plain Labor Standards Act
		// limits apply as the default rule.
		return models.StatutoryDefault(scope.CompanyID), nil
	}

	index := buildIndex(rules)
	if rule := index.lookup(scope, date); rule != nil {
		return rule, nil
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "no legal rule brackets date",
			"company_id", scope.CompanyID,
			"office_id", scope.OfficeID,
			"job_type", scope.JobType,
			"date", date.Format("2006-01-02"),
		)
	}
	return nil, dErrors.New(dErrors.CodeNoApplicableRule,
		fmt.Sprintf("no rule covers %s for company %s", date.Format("2006-01-02"), scope.CompanyID))
}

// scopeKey collapses a scope into a comparable index key.
type scopeKey struct {
	office  id.OfficeID
	job     string
	reason  string
	company id.CompanyID
}

// index groups rules per exact scope, each group sorted by TermFrom so a
// date lookup is a binary search plus a short backward walk. Versions per
// scope stay in the single digits in practice, which is why this beats a
// full interval tree on simplicity without losing the asymptotics that
// matter.
type index struct {
	byScope map[scopeKey][]*models.LegalRule
}

func buildIndex(rules []*models.LegalRule) *index {
	idx := &index{byScope: make(map[scopeKey][]*models.LegalRule)}
	for _, r := range rules {
		key := scopeKey{
			company: r.Scope.CompanyID,
			office:  r.Scope.OfficeID,
			job:     r.Scope.JobType,
			reason:  r.Scope.ReasonType,
		}
		idx.byScope[key] = append(idx.byScope[key], r)
	}
	for _, group := range idx.byScope {
		sort.Slice(group, func(i, j int) bool {
			return group[i].TermFrom.Before(group[j].TermFrom)
		})
	}
	return idx
}

// lookup walks candidate scopes from most to least specific. Within a scope,
// among rules bracketing the date, the latest TermFrom wins: the most
// recently negotiated agreement supersedes an overlapping predecessor.
func (idx *index) lookup(target models.Scope, date time.Time) *models.LegalRule {
	for _, key := range candidateKeys(target) {
		group, ok := idx.byScope[key]
		if !ok {
			continue
		}
		// First group index whose TermFrom is after the date; everything
		// before it is a candidate, newest first.
		cut := sort.Search(len(group), func(i int) bool {
			return group[i].TermFrom.After(date)
		})
		for i := cut - 1; i >= 0; i-- {
			if group[i].Covers(date) {
				return group[i]
			}
		}
	}
	return nil
}

// candidateKeys enumerates scope keys from exact match down to the
// company-wide wildcard.
func candidateKeys(target models.Scope) []scopeKey {
	company := target.CompanyID
	return []scopeKey{
		{company: company, office: target.OfficeID, job: target.JobType, reason: target.ReasonType},
		{company: company, office: target.OfficeID, job: target.JobType},
		{company: company, office: target.OfficeID},
		{company: company, job: target.JobType},
		{company: company},
	}
}
