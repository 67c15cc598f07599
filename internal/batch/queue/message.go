// Package queue carries recompute triggers over Kafka. The source system's
// polled batch-trigger flag rows are reframed as explicit job messages with
// idempotency keys, so a redelivered or duplicated trigger recomputes nothing
// twice.
package queue

import (
	"fmt"

	"kintai/internal/batch"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
)

// RecomputeMessage is the wire shape of one recompute trigger.
type RecomputeMessage struct {
	RunID       string   `json:"run_id"`
	CompanyID   string   `json:"company_id"`
	PeriodKey   string   `json:"period_key"`
	EmployeeIDs []string `json:"employee_ids"`
}

// IdempotencyKey identifies the work, not the message: re-sent triggers for
// the same (company, period, run) collapse.
func (m RecomputeMessage) IdempotencyKey() string {
	return fmt.Sprintf("job:%s:%s:%s", m.CompanyID, m.PeriodKey, m.RunID)
}

// ToJob validates the message into a runner job.
func (m RecomputeMessage) ToJob() (batch.Job, error) {
	runID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return batch.Job{}, err
	}
	companyID, err := id.ParseCompanyID(m.CompanyID)
	if err != nil {
		return batch.Job{}, err
	}
	if m.PeriodKey == "" {
		return batch.Job{}, dErrors.New(dErrors.CodeInvalidInput, "period_key is required")
	}

	job := batch.Job{RunID: runID, CompanyID: companyID, PeriodKey: m.PeriodKey}
	for _, raw := range m.EmployeeIDs {
		employeeID, err := id.ParseEmployeeID(raw)
		if err != nil {
			return batch.Job{}, err
		}
		job.Employees = append(job.Employees, employeeID)
	}
	return job, nil
}

// FromJob builds the wire message for a job.
func FromJob(job batch.Job) RecomputeMessage {
	m := RecomputeMessage{
		RunID:     job.RunID.String(),
		CompanyID: job.CompanyID.String(),
		PeriodKey: job.PeriodKey,
	}
	for _, e := range job.Employees {
		m.EmployeeIDs = append(m.EmployeeIDs, e.String())
	}
	return m
}
