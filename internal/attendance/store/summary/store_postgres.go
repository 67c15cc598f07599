package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
	txcontext "kintai/pkg/platform/tx"
)

// PostgresStore persists monthly summaries in monthly_labor_summaries.
// Upserts run through the context transaction when present.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed summary store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Put upserts the summary for its (company, employee, period) key.
func (s *PostgresStore) Put(ctx context.Context, m *models.MonthlyLaborSummary) error {
	query := `
		INSERT INTO monthly_labor_summaries (
			company_id, employee_id, period_key,
			work_days, holiday_work_days,
			scheduled_minutes, statutory_within_minutes, statutory_overtime_minutes,
			holiday_work_minutes, late_night_minutes, break_minutes,
			lateness_minutes, early_leave_minutes, real_total_minutes,
			paid_leave_minutes, compensatory_leave_minutes,
			overtime_within_45_minutes, overtime_45_to_60_minutes, overtime_over_60_minutes,
			overtime_minutes_all, crossed_45_on, crossed_60_on,
			mismatch, provisional_days, computed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		ON CONFLICT (company_id, employee_id, period_key) DO UPDATE SET
			work_days = EXCLUDED.work_days,
			holiday_work_days = EXCLUDED.holiday_work_days,
			scheduled_minutes = EXCLUDED.scheduled_minutes,
			statutory_within_minutes = EXCLUDED.statutory_within_minutes,
			statutory_overtime_minutes = EXCLUDED.statutory_overtime_minutes,
			holiday_work_minutes = EXCLUDED.holiday_work_minutes,
			late_night_minutes = EXCLUDED.late_night_minutes,
			break_minutes = EXCLUDED.break_minutes,
			lateness_minutes = EXCLUDED.lateness_minutes,
			early_leave_minutes = EXCLUDED.early_leave_minutes,
			real_total_minutes = EXCLUDED.real_total_minutes,
			paid_leave_minutes = EXCLUDED.paid_leave_minutes,
			compensatory_leave_minutes = EXCLUDED.compensatory_leave_minutes,
			overtime_within_45_minutes = EXCLUDED.overtime_within_45_minutes,
			overtime_45_to_60_minutes = EXCLUDED.overtime_45_to_60_minutes,
			overtime_over_60_minutes = EXCLUDED.overtime_over_60_minutes,
			overtime_minutes_all = EXCLUDED.overtime_minutes_all,
			crossed_45_on = EXCLUDED.crossed_45_on,
			crossed_60_on = EXCLUDED.crossed_60_on,
			mismatch = EXCLUDED.mismatch,
			provisional_days = EXCLUDED.provisional_days,
			computed_at = EXCLUDED.computed_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.CompanyID), uuid.UUID(m.EmployeeID), m.PeriodKey,
		m.WorkDays, m.HolidayWorkDays,
		m.ScheduledMinutes, m.StatutoryWithinMinutes, m.StatutoryOvertimeMinutes,
		m.HolidayWorkMinutes, m.LateNightMinutes, m.BreakMinutes,
		m.LatenessMinutes, m.EarlyLeaveMinutes, m.RealTotalMinutes,
		m.PaidLeaveMinutes, m.CompensatoryLeaveMinutes,
		m.OvertimeWithin45Minutes, m.Overtime45To60Minutes, m.OvertimeOver60Minutes,
		m.OvertimeMinutesAll, m.Crossed45On, m.Crossed60On,
		m.Mismatch, m.ProvisionalDays, m.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert monthly summary: %w", err)
	}
	return nil
}

const columnList = `
	company_id, employee_id, period_key,
	work_days, holiday_work_days,
	scheduled_minutes, statutory_within_minutes, statutory_overtime_minutes,
	holiday_work_minutes, late_night_minutes, break_minutes,
	lateness_minutes, early_leave_minutes, real_total_minutes,
	paid_leave_minutes, compensatory_leave_minutes,
	overtime_within_45_minutes, overtime_45_to_60_minutes, overtime_over_60_minutes,
	overtime_minutes_all, crossed_45_on, crossed_60_on,
	mismatch, provisional_days, computed_at`

// Get returns the stored summary or nil when absent.
func (s *PostgresStore) Get(ctx context.Context, company id.CompanyID, employee id.EmployeeID, periodKey string) (*models.MonthlyLaborSummary, error) {
	query := `SELECT ` + columnList + `
		FROM monthly_labor_summaries
		WHERE company_id = $1 AND employee_id = $2 AND period_key = $3`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(company), uuid.UUID(employee), periodKey)
	m, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query monthly summary: %w", err)
	}
	return m, nil
}

// ListYear returns the summaries for an agreement year, period-ascending.
func (s *PostgresStore) ListYear(ctx context.Context, company id.CompanyID, employee id.EmployeeID, year string) ([]*models.MonthlyLaborSummary, error) {
	query := `SELECT ` + columnList + `
		FROM monthly_labor_summaries
		WHERE company_id = $1 AND employee_id = $2 AND period_key LIKE $3
		ORDER BY period_key ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(company), uuid.UUID(employee), year+"-%")
	if err != nil {
		return nil, fmt.Errorf("query yearly summaries: %w", err)
	}
	defer rows.Close()

	var out []*models.MonthlyLaborSummary
	for rows.Next() {
		m, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.MonthlyLaborSummary, error) {
	var m models.MonthlyLaborSummary
	var company, employee uuid.UUID
	var crossed45, crossed60 sql.NullTime
	err := row.Scan(
		&company, &employee, &m.PeriodKey,
		&m.WorkDays, &m.HolidayWorkDays,
		&m.ScheduledMinutes, &m.StatutoryWithinMinutes, &m.StatutoryOvertimeMinutes,
		&m.HolidayWorkMinutes, &m.LateNightMinutes, &m.BreakMinutes,
		&m.LatenessMinutes, &m.EarlyLeaveMinutes, &m.RealTotalMinutes,
		&m.PaidLeaveMinutes, &m.CompensatoryLeaveMinutes,
		&m.OvertimeWithin45Minutes, &m.Overtime45To60Minutes, &m.OvertimeOver60Minutes,
		&m.OvertimeMinutesAll, &crossed45, &crossed60,
		&m.Mismatch, &m.ProvisionalDays, &m.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	m.CompanyID = id.CompanyID(company)
	m.EmployeeID = id.EmployeeID(employee)
	if crossed45.Valid {
		t := crossed45.Time
		m.Crossed45On = &t
	}
	if crossed60.Valid {
		t := crossed60.Time
		m.Crossed60On = &t
	}
	return &m, nil
}
