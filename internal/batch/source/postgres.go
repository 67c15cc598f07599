package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kintai/internal/attendance/models"
	"kintai/internal/batch"
	id "kintai/pkg/domain"
	"kintai/pkg/platform/sentinel"
)

// PostgresStamps reads the raw stamp feed owned by the time-card collector.
type PostgresStamps struct {
	db *sql.DB
}

// NewPostgresStamps creates a Postgres-backed stamp source.
func NewPostgresStamps(db *sql.DB) *PostgresStamps {
	return &PostgresStamps{db: db}
}

// ListPeriod returns raw stamp days within [from, to], date-ascending. Break
// spans live in raw_stamp_breaks.
func (s *PostgresStamps) ListPeriod(ctx context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]models.RawTimeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, clock_in, clock_out, telework, ground_code
		FROM raw_time_records
		WHERE company_id = $1 AND employee_id = $2 AND date BETWEEN $3 AND $4
		ORDER BY date ASC
	`, uuid.UUID(company), uuid.UUID(employee), from, to)
	if err != nil {
		return nil, fmt.Errorf("query raw stamps: %w", err)
	}
	defer rows.Close()

	type rawRow struct {
		rowID uuid.UUID
		rec   models.RawTimeRecord
	}
	var raws []rawRow
	for rows.Next() {
		row := rawRow{rec: models.RawTimeRecord{CompanyID: company, EmployeeID: employee}}
		var clockIn, clockOut sql.NullTime
		if err := rows.Scan(&row.rowID, &row.rec.Date, &clockIn, &clockOut,
			&row.rec.Telework, &row.rec.GroundCode); err != nil {
			return nil, fmt.Errorf("scan raw stamp: %w", err)
		}
		if clockIn.Valid {
			t := clockIn.Time
			row.rec.ClockIn = &t
		}
		if clockOut.Valid {
			t := clockOut.Time
			row.rec.ClockOut = &t
		}
		raws = append(raws, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.RawTimeRecord, 0, len(raws))
	for _, row := range raws {
		breaks, err := s.listBreaks(ctx, row.rowID)
		if err != nil {
			return nil, err
		}
		row.rec.Breaks = breaks
		out = append(out, row.rec)
	}
	return out, nil
}

func (s *PostgresStamps) listBreaks(ctx context.Context, recordID uuid.UUID) ([]models.Span, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT break_start, break_end
		FROM raw_stamp_breaks
		WHERE record_id = $1
		ORDER BY break_start ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query stamp breaks: %w", err)
	}
	defer rows.Close()

	var out []models.Span
	for rows.Next() {
		var span models.Span
		if err := rows.Scan(&span.Start, &span.End); err != nil {
			return nil, fmt.Errorf("scan stamp break: %w", err)
		}
		out = append(out, span)
	}
	return out, rows.Err()
}

// PostgresSchedules reads work-schedule assignments.
type PostgresSchedules struct {
	db *sql.DB
}

// NewPostgresSchedules creates a Postgres-backed schedule source.
func NewPostgresSchedules(db *sql.DB) *PostgresSchedules {
	return &PostgresSchedules{db: db}
}

// ForDate returns the schedule effective on a date: the latest assignment
// whose effective range brackets it.
func (s *PostgresSchedules) ForDate(ctx context.Context, company id.CompanyID, employee id.EmployeeID, date time.Time) (models.WorkSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT scheduled_start_minute, scheduled_end_minute, scheduled_minutes,
		       statutory_daily_limit, legal_holiday,
		       late_night_from_minute, late_night_until_minute,
		       rounding_unit_minutes, rounding_mode
		FROM work_schedule_assignments
		WHERE company_id = $1 AND employee_id = $2
		  AND effective_from <= $3 AND effective_to >= $3
		ORDER BY effective_from DESC
		LIMIT 1
	`, uuid.UUID(company), uuid.UUID(employee), date)

	var startMinute, endMinute int
	var schedule models.WorkSchedule
	var mode string
	err := row.Scan(&startMinute, &endMinute, &schedule.ScheduledMinutes,
		&schedule.StatutoryDailyLimit, &schedule.LegalHoliday,
		&schedule.LateNightFromMinute, &schedule.LateNightUntilMinute,
		&schedule.Rounding.UnitMinutes, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		// No assignment: statutory defaults with no scheduled hours.
		return models.WorkSchedule{}, nil
	}
	if err != nil {
		return models.WorkSchedule{}, fmt.Errorf("query work schedule: %w", err)
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	schedule.ScheduledStart = midnight.Add(time.Duration(startMinute) * time.Minute)
	schedule.ScheduledEnd = midnight.Add(time.Duration(endMinute) * time.Minute)
	schedule.Rounding.Mode = models.RoundingMode(mode)
	return schedule, nil
}

// PostgresPeriods reads the closing calendar.
type PostgresPeriods struct {
	db *sql.DB
}

// NewPostgresPeriods creates a Postgres-backed period source.
func NewPostgresPeriods(db *sql.DB) *PostgresPeriods {
	return &PostgresPeriods{db: db}
}

// Get returns the closing period or nil when undefined. Always read fresh:
// closing dates can change between runs.
func (s *PostgresPeriods) Get(ctx context.Context, company id.CompanyID, periodKey string) (*models.ClosingPeriod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT period_from, period_to, state
		FROM closing_periods
		WHERE company_id = $1 AND period_key = $2
	`, uuid.UUID(company), periodKey)

	period := &models.ClosingPeriod{CompanyID: company, Key: periodKey}
	var state string
	err := row.Scan(&period.From, &period.To, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query closing period: %w", err)
	}
	period.State = models.PeriodState(state)
	return period, nil
}

// UpdateState persists a lifecycle transition.
func (s *PostgresPeriods) UpdateState(ctx context.Context, company id.CompanyID, periodKey string, state models.PeriodState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE closing_periods SET state = $3
		WHERE company_id = $1 AND period_key = $2
	`, uuid.UUID(company), periodKey, string(state))
	if err != nil {
		return fmt.Errorf("update closing period state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update closing period state: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresRoster reads employee scope assignments.
type PostgresRoster struct {
	db *sql.DB
}

// NewPostgresRoster creates a Postgres-backed roster source.
func NewPostgresRoster(db *sql.DB) *PostgresRoster {
	return &PostgresRoster{db: db}
}

// Get returns the roster entry or nil when unknown.
func (s *PostgresRoster) Get(ctx context.Context, company id.CompanyID, employee id.EmployeeID) (*batch.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT office_id, job_type, reason_type
		FROM roster
		WHERE company_id = $1 AND employee_id = $2
	`, uuid.UUID(company), uuid.UUID(employee))

	entry := &batch.Employee{ID: employee}
	var officeID uuid.NullUUID
	var jobType, reasonType sql.NullString
	err := row.Scan(&officeID, &jobType, &reasonType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	if officeID.Valid {
		entry.OfficeID = id.OfficeID(officeID.UUID)
	}
	entry.JobType = jobType.String
	entry.ReasonType = reasonType.String
	return entry, nil
}
