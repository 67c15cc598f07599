// Package domain holds typed identifiers shared across the attendance core.
// Distinct types prevent a company ID from slipping into an employee ID slot
// at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "kintai/pkg/domain-errors"
)

type (
	// CompanyID identifies a tenant company.
	CompanyID uuid.UUID
	// OfficeID identifies a company office (workplace).
	OfficeID uuid.UUID
	// EmployeeID identifies an employee within a company.
	EmployeeID uuid.UUID
	// RuleID identifies a legal-rule configuration row.
	RuleID uuid.UUID
	// ViolationID identifies a single violation finding.
	ViolationID uuid.UUID
	// RunID identifies one detector run; findings from a newer run
	// supersede the prior run for the same employee and period.
	RunID uuid.UUID
)

func (id CompanyID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OfficeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ViolationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RunID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

func (id CompanyID) String() string   { return uuid.UUID(id).String() }
func (id OfficeID) String() string    { return uuid.UUID(id).String() }
func (id EmployeeID) String() string  { return uuid.UUID(id).String() }
func (id RuleID) String() string      { return uuid.UUID(id).String() }
func (id ViolationID) String() string { return uuid.UUID(id).String() }
func (id RunID) String() string       { return uuid.UUID(id).String() }

// NewCompanyID returns a fresh random CompanyID.
func NewCompanyID() CompanyID { return CompanyID(uuid.New()) }

// NewOfficeID returns a fresh random OfficeID.
func NewOfficeID() OfficeID { return OfficeID(uuid.New()) }

// NewEmployeeID returns a fresh random EmployeeID.
func NewEmployeeID() EmployeeID { return EmployeeID(uuid.New()) }

// NewRuleID returns a fresh random RuleID.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewViolationID returns a fresh random ViolationID.
func NewViolationID() ViolationID { return ViolationID(uuid.New()) }

// NewRunID returns a fresh random RunID.
func NewRunID() RunID { return RunID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Callers at trust boundaries (queue payloads, DB rows) parse
// through these helpers rather than casting raw strings.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return parsed, nil
}

// ParseCompanyID parses and validates a company ID string.
func ParseCompanyID(raw string) (CompanyID, error) {
	parsed, err := parseUUID(raw, "company_id")
	if err != nil {
		return CompanyID{}, err
	}
	return CompanyID(parsed), nil
}

// ParseOfficeID parses and validates an office ID string.
func ParseOfficeID(raw string) (OfficeID, error) {
	parsed, err := parseUUID(raw, "office_id")
	if err != nil {
		return OfficeID{}, err
	}
	return OfficeID(parsed), nil
}

// ParseEmployeeID parses and validates an employee ID string.
func ParseEmployeeID(raw string) (EmployeeID, error) {
	parsed, err := parseUUID(raw, "employee_id")
	if err != nil {
		return EmployeeID{}, err
	}
	return EmployeeID(parsed), nil
}

// ParseRuleID parses and validates a rule ID string.
func ParseRuleID(raw string) (RuleID, error) {
	parsed, err := parseUUID(raw, "rule_id")
	if err != nil {
		return RuleID{}, err
	}
	return RuleID(parsed), nil
}

// ParseRunID parses and validates a run ID string.
func ParseRunID(raw string) (RunID, error) {
	parsed, err := parseUUID(raw, "run_id")
	if err != nil {
		return RunID{}, err
	}
	return RunID(parsed), nil
}
