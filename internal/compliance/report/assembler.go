// Package report groups detector findings into the violator report rows
// external reporting and regulatory submission consume.
package report

import (
	"sort"
	"time"

	"kintai/internal/compliance/models"
	id "kintai/pkg/domain"
)

// Params identifies the run and employee/period a set of findings belongs to.
type Params struct {
	RunID      id.RunID
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	PeriodKey  string
	// Year is set when yearly detection ran for this employee; it keys the
	// yearly report shell.
	Year        string
	AssembledAt time.Time
}

// Assemble groups findings by granularity into report rows, findings kept in
// detector order (severity then citation). Employees with zero findings still
// get their monthly (and yearly, when evaluated) shells, so "compliant" is an
// explicit row rather than a missing one.
func Assemble(p Params, findings []models.Violation) []*models.ViolatorReport {
	monthly := shell(p, models.GranularityMonthly, p.PeriodKey, nil)
	var yearly *models.ViolatorReport
	if p.Year != "" {
		yearly = shell(p, models.GranularityYearly, p.Year, nil)
	}

	dailyByDate := make(map[time.Time]*models.ViolatorReport)

	for _, f := range findings {
		switch f.Granularity {
		case models.GranularityMonthly:
			add(monthly, f)
		case models.GranularityYearly:
			if yearly == nil {
				yearly = shell(p, models.GranularityYearly, f.PeriodKey, nil)
			}
			add(yearly, f)
		case models.GranularityDaily:
			if f.Date == nil {
				continue
			}
			day := *f.Date
			r, ok := dailyByDate[day]
			if !ok {
				r = shell(p, models.GranularityDaily, p.PeriodKey, &day)
				dailyByDate[day] = r
			}
			add(r, f)
		}
	}

	reports := []*models.ViolatorReport{monthly}
	if yearly != nil {
		reports = append(reports, yearly)
	}

	days := make([]time.Time, 0, len(dailyByDate))
	for day := range dailyByDate {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, day := range days {
		reports = append(reports, dailyByDate[day])
	}
	return reports
}

func shell(p Params, gran models.Granularity, periodKey string, date *time.Time) *models.ViolatorReport {
	return &models.ViolatorReport{
		RunID:       p.RunID,
		CompanyID:   p.CompanyID,
		EmployeeID:  p.EmployeeID,
		PeriodKey:   periodKey,
		Granularity: gran,
		Date:        date,
		AssembledAt: p.AssembledAt,
	}
}

func add(r *models.ViolatorReport, f models.Violation) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case models.SeverityError:
		r.ErrorCount++
	case models.SeverityWarning:
		r.WarnCount++
	}
}
