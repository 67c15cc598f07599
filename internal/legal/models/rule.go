// Package models defines versioned legal-limit configuration: Labor Standards
// Act defaults and negotiated 36-Agreement rules with special provisions.
package models

import (
	"time"

	id "kintai/pkg/domain"
)

// Citation points at the statute clause a limit derives from, so findings can
// cite chapter/article/term/issue downstream.
type Citation struct {
	Chapter int `json:"chapter"`
	Article int `json:"article"`
	Term    int `json:"term"`
	Issue   int `json:"issue"`
}

// Less orders citations for stable report output.
func (c Citation) Less(other Citation) bool {
	if c.Chapter != other.Chapter {
		return c.Chapter < other.Chapter
	}
	if c.Article != other.Article {
		return c.Article < other.Article
	}
	if c.Term != other.Term {
		return c.Term < other.Term
	}
	return c.Issue < other.Issue
}

// LimitKind names a monitored quantity.
type LimitKind string

const (
	// LimitMonthlyOvertime caps statutory overtime per closing period,
	// excluding holiday work.
	LimitMonthlyOvertime LimitKind = "monthly_overtime"
	// LimitMonthlyOvertimeAll caps overtime including holiday work (the
	// special provision's 100h basis).
	LimitMonthlyOvertimeAll LimitKind = "monthly_overtime_all"
	// LimitYearlyOvertime caps cumulative statutory overtime per agreement
	// year, excluding holiday work.
	LimitYearlyOvertime LimitKind = "yearly_overtime"
	// LimitHolidayWorkDays caps worked statutory holidays per period.
	LimitHolidayWorkDays LimitKind = "holiday_work_days"
	// LimitSpecialProvisionCount caps how many months per agreement year
	// may invoke the special provision.
	LimitSpecialProvisionCount LimitKind = "special_provision_count"
	// LimitConsecutiveWorkdays caps the longest uninterrupted run of
	// worked days inside a period.
	LimitConsecutiveWorkdays LimitKind = "consecutive_workdays"
	// LimitRestInterval is a minimum: the shortest clock-out to next
	// clock-in gap, in minutes. Evaluated at daily granularity.
	LimitRestInterval LimitKind = "rest_interval"
)

// IsMinimum reports whether the limit bounds the quantity from below.
func (k LimitKind) IsMinimum() bool {
	return k == LimitRestInterval
}

// Limit is one monitored ceiling (or floor) within a rule.
type Limit struct {
	Kind  LimitKind `json:"kind"`
	Value int       `json:"value"` // minutes, days or count per Kind

	// WarningRatio overrides the rule-level ratio for this quantity.
	// Zero means inherit.
	WarningRatio float64 `json:"warning_ratio,omitempty"`

	Citation Citation `json:"citation"`
}

// RuleKind distinguishes where a rule's authority comes from.
type RuleKind string

const (
	// RuleStatutory is the plain Labor Standards Act default, applied when
	// a company holds no negotiated agreement.
	RuleStatutory RuleKind = "statutory"
	// RuleAgreement36 is a negotiated, government-filed 36 Agreement.
	RuleAgreement36 RuleKind = "agreement_36"
)

// Scope narrows a rule to an organizational slice. Nil office and empty
// job/reason types are wildcards; resolution prefers the most specific match.
type Scope struct {
	CompanyID  id.CompanyID `json:"company_id"`
	OfficeID   id.OfficeID  `json:"office_id"`
	JobType    string       `json:"job_type"`
	ReasonType string       `json:"reason_type"`
}

// Specificity scores a scope for resolution ordering; higher wins.
func (s Scope) Specificity() int {
	score := 0
	if !s.OfficeID.IsNil() {
		score += 4
	}
	if s.JobType != "" {
		score += 2
	}
	if s.ReasonType != "" {
		score++
	}
	return score
}

// Matches reports whether the scope covers the lookup target, treating zero
// fields as wildcards.
func (s Scope) Matches(target Scope) bool {
	if s.CompanyID != target.CompanyID {
		return false
	}
	if !s.OfficeID.IsNil() && s.OfficeID != target.OfficeID {
		return false
	}
	if s.JobType != "" && s.JobType != target.JobType {
		return false
	}
	if s.ReasonType != "" && s.ReasonType != target.ReasonType {
		return false
	}
	return true
}

// SpecialProvision is the negotiated escape hatch: extended ceilings usable a
// bounded number of months per agreement year.
type SpecialProvision struct {
	MonthlyOvertimeAllMinutes int      `json:"monthly_overtime_all_minutes"`
	YearlyOvertimeMinutes     int      `json:"yearly_overtime_minutes"`
	MaxInvocations            int      `json:"max_invocations"`
	Citation                  Citation `json:"citation"`
}

// LegalRule is one versioned, date-ranged limit configuration. Configuration
// management owns these rows; the core only reads them.
type LegalRule struct {
	ID    id.RuleID `json:"id"`
	Kind  RuleKind  `json:"kind"`
	Scope Scope     `json:"scope"`

	TermFrom time.Time `json:"term_from"`
	TermTo   time.Time `json:"term_to"`

	Limits []Limit `json:"limits"`

	// DefaultWarningRatio applies to limits without their own ratio.
	DefaultWarningRatio float64 `json:"default_warning_ratio"`

	SpecialProvision *SpecialProvision `json:"special_provision,omitempty"`
}

// Covers reports whether the rule's term brackets the date.
func (r *LegalRule) Covers(date time.Time) bool {
	return !date.Before(r.TermFrom) && !date.After(r.TermTo)
}

// WarningRatio returns the effective ratio for a limit.
func (r *LegalRule) WarningRatio(l Limit) float64 {
	if l.WarningRatio > 0 {
		return l.WarningRatio
	}
	if r.DefaultWarningRatio > 0 {
		return r.DefaultWarningRatio
	}
	return DefaultWarningRatio
}

// DefaultWarningRatio is used when neither limit nor rule sets one.
const DefaultWarningRatio = 0.8

// Statutory ceilings used for the fallback rule.
const (
	OrdinaryMonthlyOvertimeMinutes = 45 * 60
	OrdinaryYearlyOvertimeMinutes  = 360 * 60
	SpecialMonthlyOvertimeAllMin   = 100 * 60
	SpecialYearlyOvertimeMinutes   = 720 * 60
	SpecialMaxInvocations          = 6
	MinimumRestIntervalMinutes     = 11 * 60
	MaxConsecutiveWorkdays         = 12
)

// StatutoryDefault builds the plain Labor Standards Act rule for companies
// with no negotiated agreement. Citations follow the Act's numbering: Article
// 32 (working hours), 35 (rest days), 36 (overtime agreements).
func StatutoryDefault(company id.CompanyID) *LegalRule {
	return &LegalRule{
		ID:       id.RuleID{},
		Kind:     RuleStatutory,
		Scope:    Scope{CompanyID: company},
		TermFrom: time.Time{},
		TermTo:   time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
		Limits: []Limit{
			{Kind: LimitMonthlyOvertime, Value: OrdinaryMonthlyOvertimeMinutes, Citation: Citation{Chapter: 4, Article: 36, Term: 4}},
			{Kind: LimitYearlyOvertime, Value: OrdinaryYearlyOvertimeMinutes, Citation: Citation{Chapter: 4, Article: 36, Term: 4}},
			{Kind: LimitHolidayWorkDays, Value: 4, Citation: Citation{Chapter: 4, Article: 35, Term: 1}},
			{Kind: LimitConsecutiveWorkdays, Value: MaxConsecutiveWorkdays, Citation: Citation{Chapter: 4, Article: 35, Term: 2}},
			{Kind: LimitRestInterval, Value: MinimumRestIntervalMinutes, Citation: Citation{Chapter: 4, Article: 32, Term: 1}},
		},
		DefaultWarningRatio: DefaultWarningRatio,
	}
}
