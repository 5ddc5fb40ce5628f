package repository

import (
	"context"
	"time"

	"github.com/opensource-finance/brokerage/internal/domain"
)

const healthColumns = `hr.id, hr.plan_id, hr.company_id, hr.gender, hr.age_from, hr.age_to, hr.price, hr.created_at, hr.updated_at`

// CreateHealthRule inserts a health rule and sets its id and timestamps.
func (s *sqlStore) CreateHealthRule(ctx context.Context, rule *domain.HealthRule) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO health_rules (
			plan_id, company_id, gender, age_from, age_to, price, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		rule.PlanID, rule.CompanyID, rule.Gender, rule.From, rule.To, rule.Price, now, now)
	if err != nil {
		return dbError(err, "create health rule")
	}

	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// UpdateHealthRule overwrites every mutable field of an existing rule.
func (s *sqlStore) UpdateHealthRule(ctx context.Context, rule *domain.HealthRule) error {
	now := time.Now().UTC()

	query := `
		UPDATE health_rules
		SET plan_id = ?, company_id = ?, gender = ?, age_from = ?, age_to = ?, price = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, s.rebind(query),
		rule.PlanID, rule.CompanyID, rule.Gender, rule.From, rule.To, rule.Price, now, rule.ID)
	if err := requireAffected(result, err, "update health rule"); err != nil {
		return err
	}

	rule.UpdatedAt = now
	return nil
}

// GetHealthRule retrieves a health rule by id.
func (s *sqlStore) GetHealthRule(ctx context.Context, id int64) (*domain.HealthRule, error) {
	query := `SELECT ` + healthColumns + ` FROM health_rules hr WHERE hr.id = ?`

	rule, err := scanHealthRule(s.q.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		return nil, dbError(err, "get health rule")
	}
	return rule, nil
}

// ListHealthRules lists health rules ordered by id.
func (s *sqlStore) ListHealthRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.HealthRule, error) {
	where, args := filterClause("hr", filter)
	query := `SELECT ` + healthColumns + ` FROM health_rules hr` + where + ` ORDER BY hr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, dbError(err, "list health rules")
	}
	defer rows.Close()

	var rules []*domain.HealthRule
	for rows.Next() {
		rule, err := scanHealthRule(rows)
		if err != nil {
			return nil, dbError(err, "scan health rule")
		}
		rules = append(rules, rule)
	}
	return rules, dbError(rows.Err(), "list health rules")
}

// ListHealthCandidates returns every health rule of a plan joined with its
// company, ordered by company, lower age bound and id.
func (s *sqlStore) ListHealthCandidates(ctx context.Context, planID int64) ([]domain.HealthCandidate, error) {
	query := `
		SELECT ` + healthColumns + `, c.id, c.name, c.logo, c.company_type
		FROM health_rules hr
		JOIN companies c ON c.id = hr.company_id
		WHERE hr.plan_id = ?
		ORDER BY hr.company_id, hr.age_from, hr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), planID)
	if err != nil {
		return nil, dbError(err, "list health candidates")
	}
	defer rows.Close()

	var out []domain.HealthCandidate
	for rows.Next() {
		var r domain.HealthRule
		var c domain.Company
		if err := rows.Scan(
			&r.ID, &r.PlanID, &r.CompanyID, &r.Gender, &r.From, &r.To, &r.Price, &r.CreatedAt, &r.UpdatedAt,
			&c.ID, &c.Name, &c.Logo, &c.CompanyType,
		); err != nil {
			return nil, dbError(err, "scan health candidate")
		}
		out = append(out, domain.HealthCandidate{Rule: &r, Company: c})
	}
	return out, dbError(rows.Err(), "list health candidates")
}

// FindHealthRuleIDs returns which of ids exist.
func (s *sqlStore) FindHealthRuleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return s.findIDs(ctx, "health_rules", ids)
}

// DeleteHealthRules removes the given rules.
func (s *sqlStore) DeleteHealthRules(ctx context.Context, ids []int64) (int64, error) {
	return s.deleteIDs(ctx, "health_rules", ids)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHealthRule(row rowScanner) (*domain.HealthRule, error) {
	var r domain.HealthRule
	if err := row.Scan(
		&r.ID, &r.PlanID, &r.CompanyID, &r.Gender, &r.From, &r.To, &r.Price, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// filterClause builds the WHERE clause of a rule listing.
func filterClause(alias string, filter domain.RuleFilter) (string, []any) {
	var c conditions
	c.eq(alias+".plan_id", filter.PlanID, filter.PlanID != 0)
	c.eq(alias+".company_id", filter.CompanyID, filter.CompanyID != 0)
	return c.where(), c.args
}
