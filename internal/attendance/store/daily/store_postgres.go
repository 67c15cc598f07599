package daily

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
	txcontext "kintai/pkg/platform/tx"
)

// PostgresStore persists daily records in the daily_labor_records table.
// Writes go through the context transaction when one is present so a period
// recompute commits atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed daily record store.
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

// Put appends the next revision for (employee, date).
func (s *PostgresStore) Put(ctx context.Context, record *models.DailyLaborRecord) error {
	query := `
		INSERT INTO daily_labor_records (
			company_id, employee_id, date, revision, state,
			clock_in, clock_out,
			scheduled_minutes, statutory_within_minutes, statutory_overtime_minutes,
			holiday_work_minutes, late_night_minutes, break_minutes,
			lateness_minutes, early_leave_minutes, real_total_minutes,
			paid_leave_minutes, compensatory_leave_minutes,
			telework, ground_code
		)
		VALUES (
			$1, $2, $3,
			(SELECT COALESCE(MAX(revision), 0) + 1
			   FROM daily_labor_records
			  WHERE company_id = $1 AND employee_id = $2 AND date = $3),
			$4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.CompanyID), uuid.UUID(record.EmployeeID), record.Date,
		string(record.State),
		record.ClockIn, record.ClockOut,
		record.ScheduledMinutes, record.StatutoryWithinMinutes, record.StatutoryOvertimeMinutes,
		record.HolidayWorkMinutes, record.LateNightMinutes, record.BreakMinutes,
		record.LatenessMinutes, record.EarlyLeaveMinutes, record.RealTotalMinutes,
		record.PaidLeaveMinutes, record.CompensatoryLeaveMinutes,
		record.Telework, record.GroundCode,
	)
	if err != nil {
		return fmt.Errorf("insert daily record: %w", err)
	}
	return nil
}

// Latest returns the current revision for a date, or nil when absent.
func (s *PostgresStore) Latest(ctx context.Context, company id.CompanyID, employee id.EmployeeID, date time.Time) (*models.DailyLaborRecord, error) {
	query := selectColumns + `
		WHERE company_id = $1 AND employee_id = $2 AND date = $3
		ORDER BY revision DESC
		LIMIT 1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(company), uuid.UUID(employee), date)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest daily record: %w", err)
	}
	return rec, nil
}

// ListPeriod returns the latest revision per date within [from, to],
// date-ascending.
func (s *PostgresStore) ListPeriod(ctx context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]*models.DailyLaborRecord, error) {
	query := `
		SELECT DISTINCT ON (date) ` + columnList + `
		FROM daily_labor_records
		WHERE company_id = $1 AND employee_id = $2 AND date BETWEEN $3 AND $4
		ORDER BY date ASC, revision DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(company), uuid.UUID(employee), from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily records: %w", err)
	}
	defer rows.Close()

	var out []*models.DailyLaborRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const columnList = `
	company_id, employee_id, date, revision, state,
	clock_in, clock_out,
	scheduled_minutes, statutory_within_minutes, statutory_overtime_minutes,
	holiday_work_minutes, late_night_minutes, break_minutes,
	lateness_minutes, early_leave_minutes, real_total_minutes,
	paid_leave_minutes, compensatory_leave_minutes,
	telework, ground_code`

const selectColumns = `SELECT ` + columnList + ` FROM daily_labor_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.DailyLaborRecord, error) {
	var rec models.DailyLaborRecord
	var company, employee uuid.UUID
	var state string
	var clockIn, clockOut sql.NullTime
	err := row.Scan(
		&company, &employee, &rec.Date, &rec.Revision, &state,
		&clockIn, &clockOut,
		&rec.ScheduledMinutes, &rec.StatutoryWithinMinutes, &rec.StatutoryOvertimeMinutes,
		&rec.HolidayWorkMinutes, &rec.LateNightMinutes, &rec.BreakMinutes,
		&rec.LatenessMinutes, &rec.EarlyLeaveMinutes, &rec.RealTotalMinutes,
		&rec.PaidLeaveMinutes, &rec.CompensatoryLeaveMinutes,
		&rec.Telework, &rec.GroundCode,
	)
	if err != nil {
		return nil, err
	}
	rec.CompanyID = id.CompanyID(company)
	rec.EmployeeID = id.EmployeeID(employee)
	rec.State = models.RecordState(state)
	if clockIn.Valid {
		t := clockIn.Time
		rec.ClockIn = &t
	}
	if clockOut.Valid {
		t := clockOut.Time
		rec.ClockOut = &t
	}
	return &rec, nil
}
