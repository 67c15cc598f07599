// Package batch orchestrates the attendance pipeline: normalize → aggregate →
// detect → assemble, one sequential pipeline per employee, employees fanned
// out in parallel. No row written by one employee's pipeline is read by
// another's, so isolation is per (employee, period).
package batch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kintai/internal/attendance/aggregator"
	"kintai/internal/attendance/models"
	"kintai/internal/attendance/normalizer"
	"kintai/internal/compliance/detector"
	cmodels "kintai/internal/compliance/models"
	"kintai/internal/compliance/report"
	legal "kintai/internal/legal/models"
	"kintai/internal/legal/resolver"
	"kintai/internal/platform/metrics"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
	txcontext "kintai/pkg/platform/tx"
)

// StampSource reads raw time-card events; owned by the stamping collector.
type StampSource interface {
	ListPeriod(ctx context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]models.RawTimeRecord, error)
}

// ScheduleSource reads the employee's active work-schedule definition for a
// date; owned by work-schedule assignment.
type ScheduleSource interface {
	ForDate(ctx context.Context, company id.CompanyID, employee id.EmployeeID, date time.Time) (models.WorkSchedule, error)
}

// PeriodSource reads closing-period boundaries and records lifecycle
// transitions. Boundaries are read fresh every run: closing dates can change
// between runs.
type PeriodSource interface {
	Get(ctx context.Context, company id.CompanyID, periodKey string) (*models.ClosingPeriod, error)
	UpdateState(ctx context.Context, company id.CompanyID, periodKey string, state models.PeriodState) error
}

// RosterSource maps an employee to the scope their legal rule resolves under.
type RosterSource interface {
	Get(ctx context.Context, company id.CompanyID, employee id.EmployeeID) (*Employee, error)
}

// DailyStore is the subset of the daily record store the runner touches:
// writes during normalization, reads for daily-granularity detection.
type DailyStore interface {
	Put(ctx context.Context, record *models.DailyLaborRecord) error
	ListPeriod(ctx context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]*models.DailyLaborRecord, error)
}

// ReportStore persists assembled violator reports.
type ReportStore interface {
	PutReports(ctx context.Context, reports []*cmodels.ViolatorReport) error
}

// TxStarter begins a SQL transaction; optional, wired when stores are
// Postgres-backed so one employee's summary and reports commit together.
type TxStarter interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Employee is a roster entry with rule-resolution scope.
type Employee struct {
	ID         id.EmployeeID
	OfficeID   id.OfficeID
	JobType    string
	ReasonType string
}

// Job is one recompute request for a (company, employee-set, period) triple.
type Job struct {
	RunID     id.RunID
	CompanyID id.CompanyID
	PeriodKey string
	Employees []id.EmployeeID
}

// Result reports a finished run. Per-employee failures are isolated: one
// employee's error never aborts the others.
type Result struct {
	Employees int
	Findings  int
	// Undetermined lists employees whose compliance could not be decided
	// because no legal rule covered their scope. Not compliant, not
	// violating: a configuration alert.
	Undetermined []id.EmployeeID
	// Failed maps employees to their pipeline error.
	Failed map[id.EmployeeID]error
}

// Runner wires the pipeline stages.
type Runner struct {
	stamps    StampSource
	schedules ScheduleSource
	periods   PeriodSource
	roster    RosterSource

	daily   DailyStore
	reports ReportStore

	normalizer *normalizer.Service
	aggregator *aggregator.Service
	resolver   resolver.Resolver
	detector   *detector.Service

	txStarter   TxStarter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	parallelism int
	clock       func() time.Time

	locks keyedMutex
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithParallelism bounds concurrent employee pipelines.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithTxStarter makes each employee's writes commit in one transaction.
func WithTxStarter(starter TxStarter) Option {
	return func(r *Runner) { r.txStarter = starter }
}

// WithClock sets the run clock (testing).
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Deps are the required runner collaborators.
type Deps struct {
	Stamps    StampSource
	Schedules ScheduleSource
	Periods   PeriodSource
	Roster    RosterSource
	Daily     DailyStore
	Reports   ReportStore

	Normalizer *normalizer.Service
	Aggregator *aggregator.Service
	Resolver   resolver.Resolver
	Detector   *detector.Service
}

// New creates a Runner.
func New(deps Deps, opts ...Option) (*Runner, error) {
	switch {
	case deps.Stamps == nil, deps.Schedules == nil, deps.Periods == nil, deps.Roster == nil:
		return nil, fmt.Errorf("all sources are required")
	case deps.Daily == nil, deps.Reports == nil:
		return nil, fmt.Errorf("all stores are required")
	case deps.Normalizer == nil, deps.Aggregator == nil, deps.Resolver == nil, deps.Detector == nil:
		return nil, fmt.Errorf("all pipeline services are required")
	}
	r := &Runner{
		stamps:      deps.Stamps,
		schedules:   deps.Schedules,
		periods:     deps.Periods,
		roster:      deps.Roster,
		daily:       deps.Daily,
		reports:     deps.Reports,
		normalizer:  deps.Normalizer,
		aggregator:  deps.Aggregator,
		resolver:    deps.Resolver,
		detector:    deps.Detector,
		tracer:      otel.Tracer("kintai/batch"),
		parallelism: 8,
		clock:       time.Now,
	}
	r.locks.init()
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the pipeline for every employee in the job. The closing period
// is read fresh; a closed period rejects the whole job with CodePeriodClosed.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	start := r.clock()

	period, err := r.periods.Get(ctx, job.CompanyID, job.PeriodKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read closing period")
	}
	if period == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no closing period %s", job.PeriodKey))
	}
	if !period.State.AcceptsWrites() {
		return nil, dErrors.New(dErrors.CodePeriodClosed,
			fmt.Sprintf("period %s is closed; reopen before recompute", job.PeriodKey))
	}

	result := &Result{
		Employees: len(job.Employees),
		Failed:    make(map[id.EmployeeID]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, employee := range job.Employees {
		employee := employee
		g.Go(func() error {
			findings, err := r.runEmployee(gctx, job, *period, employee)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Findings += findings
			case dErrors.HasCode(err, dErrors.CodeNoApplicableRule):
				result.Undetermined = append(result.Undetermined, employee)
			default:
				result.Failed[employee] = err
				if r.metrics != nil {
					r.metrics.EmployeeFailures.Inc()
				}
				if r.logger != nil {
					r.logger.ErrorContext(gctx, "employee pipeline failed",
						"employee_id", employee,
						"period", job.PeriodKey,
						"error", err,
					)
				}
			}
			// Employee failures stay in the result; only cancellation
			// aborts the group.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return result, dErrors.Wrap(err, dErrors.CodeInternal, "batch cancelled")
	}

	if err := r.advancePeriod(ctx, period); err != nil {
		return result, err
	}

	if r.metrics != nil {
		r.metrics.ObserveBatch(r.clock().Sub(start))
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "batch run finished",
			"company_id", job.CompanyID,
			"period", job.PeriodKey,
			"employees", result.Employees,
			"findings", result.Findings,
			"undetermined", len(result.Undetermined),
			"failed", len(result.Failed),
		)
	}
	return result, nil
}

// advancePeriod records the lifecycle progress of a finished run. Every
// non-closed entry state reaches Detected through Aggregated: a fresh period
// goes Open -> Aggregated -> Detected, and a recompute re-enters Aggregated
// from Aggregated or Detected before detection advances it again.
func (r *Runner) advancePeriod(ctx context.Context, period *models.ClosingPeriod) error {
	for _, next := range []models.PeriodState{models.PeriodAggregated, models.PeriodDetected} {
		if err := period.Transition(next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict,
				fmt.Sprintf("period %s cannot move %s -> %s", period.Key, period.State, next))
		}
		if err := r.periods.UpdateState(ctx, period.CompanyID, period.Key, period.State); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "update period state")
		}
	}
	return nil
}

// runEmployee executes the sequential per-employee pipeline and returns the
// finding count.
func (r *Runner) runEmployee(ctx context.Context, job Job, period models.ClosingPeriod, employeeID id.EmployeeID) (int, error) {
	// One active recompute per (employee, period); a concurrent attempt
	// waits rather than racing on the same summary row.
	unlock := r.locks.lock(lockKey(employeeID, period.Key))
	defer unlock()

	ctx, span := r.tracer.Start(ctx, "pipeline.employee")
	defer span.End()

	entry, err := r.roster.Get(ctx, job.CompanyID, employeeID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read roster entry")
	}
	if entry == nil {
		return 0, dErrors.New(dErrors.CodeNotFound, "employee not on roster")
	}

	if err := r.normalizePeriod(ctx, job, period, employeeID); err != nil {
		return 0, err
	}

	// Resolve before writing anything detection-related: a missing rule
	// means undetermined compliance, and no report rows at all.
	scope := legal.Scope{
		CompanyID:  job.CompanyID,
		OfficeID:   entry.OfficeID,
		JobType:    entry.JobType,
		ReasonType: entry.ReasonType,
	}
	rule, err := r.resolver.Resolve(ctx, scope, period.To)
	if err != nil {
		return 0, err
	}

	findings := 0
	work := func(ctx context.Context) error {
		n, err := r.detectAndPersist(ctx, job, period, employeeID, rule)
		findings = n
		return err
	}
	if r.txStarter != nil {
		err = r.inTx(ctx, work)
	} else {
		err = work(ctx)
	}
	return findings, err
}

func (r *Runner) normalizePeriod(ctx context.Context, job Job, period models.ClosingPeriod, employeeID id.EmployeeID) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.normalize")
	defer span.End()

	raws, err := r.stamps.ListPeriod(ctx, job.CompanyID, employeeID, period.From, period.To)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list raw stamps")
	}

	// Date order before aggregation; the tiered buckets depend on accrual
	// order downstream.
	sortRawByDate(raws)

	for _, raw := range raws {
		schedule, err := r.schedules.ForDate(ctx, job.CompanyID, employeeID, raw.Date)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "read work schedule")
		}

		record, err := r.normalizer.Normalize(raw, schedule)
		switch {
		case err == nil:
			if r.metrics != nil {
				r.metrics.RecordsNormalized.Inc()
			}
		case dErrors.HasCode(err, dErrors.CodeIncompleteStamp):
			// Provisional record still persists; never dropped.
			if r.metrics != nil {
				r.metrics.ProvisionalRecords.Inc()
			}
		default:
			return err
		}
		if record != nil {
			if putErr := r.daily.Put(ctx, record); putErr != nil {
				return dErrors.Wrap(putErr, dErrors.CodeInternal, "store daily record")
			}
		}
	}
	return nil
}

func (r *Runner) detectAndPersist(ctx context.Context, job Job, period models.ClosingPeriod, employeeID id.EmployeeID, rule *legal.LegalRule) (int, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.aggregate")
	summary, err := r.aggregator.Aggregate(ctx, period, employeeID)
	span.End()
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.SummariesComputed.Inc()
	}

	year := yearOf(period.Key)
	yearly, err := r.aggregator.AggregateYear(ctx, job.CompanyID, employeeID, year, ordinaryMonthlyLimit(rule))
	if err != nil {
		return 0, err
	}

	records, err := r.daily.ListPeriod(ctx, job.CompanyID, employeeID, period.From, period.To)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list daily records")
	}

	ctx, span = r.tracer.Start(ctx, "pipeline.detect")
	findings := r.detector.Detect(detector.Input{
		Summary:    summary,
		Daily:      records,
		Yearly:     yearly,
		Rule:       rule,
		RunID:      job.RunID,
		DetectedAt: r.clock(),
	})
	span.End()

	if r.metrics != nil {
		for _, f := range findings {
			r.metrics.FindingsDetected.WithLabelValues(string(f.Severity)).Inc()
		}
	}

	reports := report.Assemble(report.Params{
		RunID:       job.RunID,
		CompanyID:   job.CompanyID,
		EmployeeID:  employeeID,
		PeriodKey:   period.Key,
		Year:        year,
		AssembledAt: r.clock(),
	}, findings)

	if err := r.reports.PutReports(ctx, reports); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "store violator reports")
	}
	return len(findings), nil
}

func (r *Runner) inTx(ctx context.Context, fn func(context.Context) error) error {
	sqlTx, err := r.txStarter.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

func ordinaryMonthlyLimit(rule *legal.LegalRule) int {
	for _, l := range rule.Limits {
		if l.Kind == legal.LimitMonthlyOvertime {
			return l.Value
		}
	}
	return legal.OrdinaryMonthlyOvertimeMinutes
}

// yearOf extracts the agreement-year label from a "YYYY-MM" period key.
func yearOf(periodKey string) string {
	if len(periodKey) >= 4 {
		return periodKey[:4]
	}
	return periodKey
}

func sortRawByDate(raws []models.RawTimeRecord) {
	sort.Slice(raws, func(i, j int) bool { return raws[i].Date.Before(raws[j].Date) })
}

func lockKey(employee id.EmployeeID, periodKey string) string {
	return employee.String() + "|" + periodKey
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) init() {
	k.locks = make(map[string]*entryLock)
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entryLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
