package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kintai/internal/legal/models"
	rulestore "kintai/internal/legal/store/rule"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	store *rulestore.MemoryStore
	svc   *Service

	company id.CompanyID
	office  id.OfficeID
	date    time.Time
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = rulestore.NewMemory()

	var err error
	s.svc, err = New(s.store)
	s.Require().NoError(err)

	s.company = id.NewCompanyID()
	s.office = id.NewOfficeID()
	s.date = time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
}

func (s *ResolverSuite) rule(scope models.Scope, from, to time.Time) *models.LegalRule {
	return &models.LegalRule{
		ID:       id.NewRuleID(),
		Kind:     models.RuleAgreement36,
		Scope:    scope,
		TermFrom: from,
		TermTo:   to,
		Limits: []models.Limit{
			{Kind: models.LimitMonthlyOvertime, Value: models.OrdinaryMonthlyOvertimeMinutes},
		},
	}
}

func (s *ResolverSuite) year2026() (time.Time, time.Time) {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
}

func (s *ResolverSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ResolverSuite) TestStatutoryDefaultWhenNoRules() {
	rule, err := s.svc.Resolve(context.Background(), models.Scope{CompanyID: s.company}, s.date)
	s.Require().NoError(err)
	s.Equal(models.RuleStatutory, rule.Kind)

	// The default carries the plain Labor Standards Act ceilings.
	var kinds []models.LimitKind
	for _, l := range rule.Limits {
		kinds = append(kinds, l.Kind)
	}
	s.Contains(kinds, models.LimitMonthlyOvertime)
	s.Contains(kinds, models.LimitYearlyOvertime)
	s.Contains(kinds, models.LimitRestInterval)
}

func (s *ResolverSuite) TestNoApplicableRule() {
	from, to := s.year2026()

	s.Run("date outside every term", func() {
		s.store.Seed(s.company, []*models.LegalRule{
			s.rule(models.Scope{CompanyID: s.company}, from, to),
		})
		_, err := s.svc.Resolve(context.Background(),
			models.Scope{CompanyID: s.company},
			time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC))
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoApplicableRule),
			"a company with agreements never falls back to the statutory default")
	})

	s.Run("scope not covered", func() {
		other := id.NewOfficeID()
		s.store.Seed(s.company, []*models.LegalRule{
			s.rule(models.Scope{CompanyID: s.company, OfficeID: other}, from, to),
		})
		_, err := s.svc.Resolve(context.Background(),
			models.Scope{CompanyID: s.company, OfficeID: s.office}, s.date)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoApplicableRule))
	})
}

func (s *ResolverSuite) TestSpecificityOrder() {
	from, to := s.year2026()
	companyWide := s.rule(models.Scope{CompanyID: s.company}, from, to)
	officeWide := s.rule(models.Scope{CompanyID: s.company, OfficeID: s.office}, from, to)
	exact := s.rule(models.Scope{
		CompanyID: s.company, OfficeID: s.office, JobType: "driver", ReasonType: "seasonal",
	}, from, to)
	s.store.Seed(s.company, []*models.LegalRule{companyWide, officeWide, exact})

	s.Run("exact scope wins", func() {
		rule, err := s.svc.Resolve(context.Background(), models.Scope{
			CompanyID: s.company, OfficeID: s.office, JobType: "driver", ReasonType: "seasonal",
		}, s.date)
		s.Require().NoError(err)
		s.Equal(exact.ID, rule.ID)
	})

	s.Run("falls through to office scope", func() {
		rule, err := s.svc.Resolve(context.Background(), models.Scope{
			CompanyID: s.company, OfficeID: s.office, JobType: "clerk",
		}, s.date)
		s.Require().NoError(err)
		s.Equal(officeWide.ID, rule.ID)
	})

	s.Run("falls through to company scope", func() {
		rule, err := s.svc.Resolve(context.Background(), models.Scope{
			CompanyID: s.company, OfficeID: id.NewOfficeID(),
		}, s.date)
		s.Require().NoError(err)
		s.Equal(companyWide.ID, rule.ID)
	})
}

func (s *ResolverSuite) TestOverlappingTermsLatestWins() {
	scope := models.Scope{CompanyID: s.company}
	older := s.rule(scope,
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))
	newer := s.rule(scope,
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC))
	s.store.Seed(s.company, []*models.LegalRule{older, newer})

	// Both terms bracket the date; the renegotiated agreement supersedes.
	rule, err := s.svc.Resolve(context.Background(), scope, s.date)
	s.Require().NoError(err)
	s.Equal(newer.ID, rule.ID)

	// Before the newer term starts, the older one still applies.
	rule, err = s.svc.Resolve(context.Background(), scope,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Equal(older.ID, rule.ID)
}
