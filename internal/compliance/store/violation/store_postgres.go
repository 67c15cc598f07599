package violation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kintai/internal/compliance/models"
	legal "kintai/internal/legal/models"
	id "kintai/pkg/domain"
	txcontext "kintai/pkg/platform/tx"
)

// PostgresStore persists reports in violator_reports and their findings in
// violations. Supersession is delete-then-insert per report key inside the
// caller's transaction when one is on the context.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed report store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// PutReports stores a run's reports, superseding prior rows under the same
// (company, employee, period, granularity, date) keys.
func (s *PostgresStore) PutReports(ctx context.Context, reports []*models.ViolatorReport) error {
	ex := s.execer(ctx)

	for _, r := range reports {
		var date any
		if r.Date != nil {
			date = *r.Date
		}

		_, err := ex.ExecContext(ctx, `
			DELETE FROM violator_reports
			WHERE company_id = $1 AND employee_id = $2 AND period_key = $3
			  AND granularity = $4 AND date IS NOT DISTINCT FROM $5
		`, uuid.UUID(r.CompanyID), uuid.UUID(r.EmployeeID), r.PeriodKey, string(r.Granularity), date)
		if err != nil {
			return fmt.Errorf("supersede violator report: %w", err)
		}

		_, err = ex.ExecContext(ctx, `
			INSERT INTO violator_reports (
				run_id, company_id, employee_id, period_key,
				granularity, date, error_count, warn_count, assembled_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, uuid.UUID(r.RunID), uuid.UUID(r.CompanyID), uuid.UUID(r.EmployeeID), r.PeriodKey,
			string(r.Granularity), date, r.ErrorCount, r.WarnCount, r.AssembledAt)
		if err != nil {
			return fmt.Errorf("insert violator report: %w", err)
		}

		for _, f := range r.Findings {
			var fDate any
			if f.Date != nil {
				fDate = *f.Date
			}
			_, err = ex.ExecContext(ctx, `
				INSERT INTO violations (
					id, run_id, company_id, employee_id, period_key,
					granularity, date, kind, severity, rule_id,
					limit_value, actual_value, warning_threshold,
					chapter, article, term, issue, detected_at
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
				ON CONFLICT (id) DO NOTHING
			`, uuid.UUID(f.ID), uuid.UUID(f.RunID), uuid.UUID(f.CompanyID), uuid.UUID(f.EmployeeID),
				f.PeriodKey, string(f.Granularity), fDate, string(f.Kind), string(f.Severity),
				uuid.UUID(f.RuleID), f.LimitValue, f.ActualValue, f.WarningThreshold,
				f.Citation.Chapter, f.Citation.Article, f.Citation.Term, f.Citation.Issue,
				f.DetectedAt)
			if err != nil {
				return fmt.Errorf("insert violation: %w", err)
			}
		}
	}
	return nil
}

// ListByEmployee returns stored reports for one employee and period with
// findings attached, monthly first, then yearly, then daily date-ascending.
func (s *PostgresStore) ListByEmployee(ctx context.Context, company id.CompanyID, employee id.EmployeeID, periodKey string) ([]*models.ViolatorReport, error) {
	ex := s.execer(ctx)

	rows, err := ex.QueryContext(ctx, `
		SELECT run_id, company_id, employee_id, period_key, granularity, date,
		       error_count, warn_count, assembled_at
		FROM violator_reports
		WHERE company_id = $1 AND employee_id = $2
		  AND (period_key = $3 OR (granularity = 'yearly' AND period_key = LEFT($3, 4)))
		ORDER BY CASE granularity WHEN 'monthly' THEN 0 WHEN 'yearly' THEN 1 ELSE 2 END,
		         date ASC NULLS FIRST
	`, uuid.UUID(company), uuid.UUID(employee), periodKey)
	if err != nil {
		return nil, fmt.Errorf("query violator reports: %w", err)
	}
	defer rows.Close()

	var out []*models.ViolatorReport
	for rows.Next() {
		var r models.ViolatorReport
		var runID, companyID, employeeID uuid.UUID
		var gran string
		var date sql.NullTime
		err := rows.Scan(&runID, &companyID, &employeeID, &r.PeriodKey, &gran, &date,
			&r.ErrorCount, &r.WarnCount, &r.AssembledAt)
		if err != nil {
			return nil, fmt.Errorf("scan violator report: %w", err)
		}
		r.RunID = id.RunID(runID)
		r.CompanyID = id.CompanyID(companyID)
		r.EmployeeID = id.EmployeeID(employeeID)
		r.Granularity = models.Granularity(gran)
		if date.Valid {
			d := date.Time
			r.Date = &d
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range out {
		findings, err := s.listFindings(ctx, r)
		if err != nil {
			return nil, err
		}
		r.Findings = findings
	}
	return out, nil
}

func (s *PostgresStore) listFindings(ctx context.Context, r *models.ViolatorReport) ([]models.Violation, error) {
	var date any
	if r.Date != nil {
		date = *r.Date
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, run_id, company_id, employee_id, period_key, granularity, date,
		       kind, severity, rule_id, limit_value, actual_value, warning_threshold,
		       chapter, article, term, issue, detected_at
		FROM violations
		WHERE run_id = $1 AND employee_id = $2 AND period_key = $3 AND granularity = $4
		  AND ($5::timestamptz IS NULL OR date = $5)
		ORDER BY severity ASC, chapter, article, term, issue, kind
	`, uuid.UUID(r.RunID), uuid.UUID(r.EmployeeID), r.PeriodKey, string(r.Granularity), date)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []models.Violation
	for rows.Next() {
		var f models.Violation
		var fID, runID, companyID, employeeID, ruleID uuid.UUID
		var gran, kind, severity string
		var fDate sql.NullTime
		err := rows.Scan(&fID, &runID, &companyID, &employeeID, &f.PeriodKey, &gran, &fDate,
			&kind, &severity, &ruleID, &f.LimitValue, &f.ActualValue, &f.WarningThreshold,
			&f.Citation.Chapter, &f.Citation.Article, &f.Citation.Term, &f.Citation.Issue,
			&f.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		f.ID = id.ViolationID(fID)
		f.RunID = id.RunID(runID)
		f.CompanyID = id.CompanyID(companyID)
		f.EmployeeID = id.EmployeeID(employeeID)
		f.Granularity = models.Granularity(gran)
		f.Kind = legal.LimitKind(kind)
		f.Severity = models.Severity(severity)
		f.RuleID = id.RuleID(ruleID)
		if fDate.Valid {
			d := fDate.Time
			f.Date = &d
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
