// Package models defines violation findings and the violator report shapes
// external reporting consumes.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	legal "kintai/internal/legal/models"
	id "kintai/pkg/domain"
)

// Severity classifies a finding.
type Severity string

const (
	// SeverityError is a statutory breach: actual exceeded the hard limit.
	SeverityError Severity = "error"
	// SeverityWarning means actual entered the warning band below the
	// negotiated ceiling.
	SeverityWarning Severity = "warning"
)

// Granularity is the reporting period of a finding.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
	GranularityYearly  Granularity = "yearly"
)

// violationNamespace seeds deterministic finding IDs so two detector runs on
// identical input produce identical records.
var violationNamespace = uuid.MustParse("9d2f1c60-21d4-4ac5-8f0e-6a9a61c3f2bb")

// Violation is one immutable, append-only finding. Never mutated; a fresh
// detector run for the same period supersedes the prior run's findings.
type Violation struct {
	ID    id.ViolationID
	RunID id.RunID

	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	PeriodKey  string

	Granularity Granularity
	// Date is set for daily-granularity findings only.
	Date *time.Time

	Kind     legal.LimitKind
	Severity Severity

	RuleID           id.RuleID
	LimitValue       int
	ActualValue      int
	WarningThreshold int

	Citation legal.Citation

	DetectedAt time.Time
}

// NewViolationID derives the finding ID from its identity fields, keeping
// detector output byte-identical across reruns with the same RunID. The limit
// value participates because a listed limit and a special-provision ceiling
// can monitor the same quantity at different values.
func NewViolationID(run id.RunID, employee id.EmployeeID, periodKey string, kind legal.LimitKind, gran Granularity, limitValue int, date *time.Time) id.ViolationID {
	name := fmt.Sprintf("%s|%s|%s|%s|%s|%d", run, employee, periodKey, kind, gran, limitValue)
	if date != nil {
		name += "|" + date.Format("2006-01-02")
	}
	return id.ViolationID(uuid.NewSHA1(violationNamespace, []byte(name)))
}

// ViolatorReport is the per-(employee, period, granularity) grouping external
// reporting reads. A compliant employee still gets a report row with zero
// findings; compliance is a queryable state, not an absence.
type ViolatorReport struct {
	RunID      id.RunID
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	PeriodKey  string

	Granularity Granularity
	// Date is set for daily reports only.
	Date *time.Time

	Findings    []Violation
	ErrorCount  int
	WarnCount   int
	AssembledAt time.Time
}

// Compliant reports whether the row is an empty shell.
func (r *ViolatorReport) Compliant() bool { return len(r.Findings) == 0 }
