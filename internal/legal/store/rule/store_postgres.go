package rule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"kintai/internal/legal/models"
	id "kintai/pkg/domain"
)

// PostgresStore reads legal rules from the legal_rules table. Limits and the
// special provision are stored as JSONB: their shape is owned by
// configuration management and the core only needs them whole.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed rule store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListByCompany returns all rule rows for a company.
func (s *PostgresStore) ListByCompany(ctx context.Context, company id.CompanyID) ([]*models.LegalRule, error) {
	query := `
		SELECT id, kind, company_id, office_id, job_type, reason_type,
		       term_from, term_to, limits, default_warning_ratio, special_provision
		FROM legal_rules
		WHERE company_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(company))
	if err != nil {
		return nil, fmt.Errorf("query legal rules: %w", err)
	}
	defer rows.Close()

	var out []*models.LegalRule
	for rows.Next() {
		var rule models.LegalRule
		var ruleID, companyID uuid.UUID
		var officeID uuid.NullUUID
		var kind string
		var jobType, reasonType sql.NullString
		var limits []byte
		var special []byte

		err := rows.Scan(&ruleID, &kind, &companyID, &officeID, &jobType, &reasonType,
			&rule.TermFrom, &rule.TermTo, &limits, &rule.DefaultWarningRatio, &special)
		if err != nil {
			return nil, fmt.Errorf("scan legal rule: %w", err)
		}

		rule.ID = id.RuleID(ruleID)
		rule.Kind = models.RuleKind(kind)
		rule.Scope = models.Scope{
			CompanyID:  id.CompanyID(companyID),
			JobType:    jobType.String,
			ReasonType: reasonType.String,
		}
		if officeID.Valid {
			rule.Scope.OfficeID = id.OfficeID(officeID.UUID)
		}
		if err := json.Unmarshal(limits, &rule.Limits); err != nil {
			return nil, fmt.Errorf("decode rule limits: %w", err)
		}
		if len(special) > 0 {
			var sp models.SpecialProvision
			if err := json.Unmarshal(special, &sp); err != nil {
				return nil, fmt.Errorf("decode special provision: %w", err)
			}
			rule.SpecialProvision = &sp
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}
