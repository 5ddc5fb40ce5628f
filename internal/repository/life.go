package repository

import (
	"context"
	"time"

	"github.com/opensource-finance/brokerage/internal/domain"
)

const lifeColumns = `lr.id, lr.plan_id, lr.company_id, lr.gender, lr.age_from, lr.age_to, lr.persitage, lr.created_at, lr.updated_at`

// CreateLifeRule inserts a life rule and sets its id and timestamps.
func (s *sqlStore) CreateLifeRule(ctx context.Context, rule *domain.LifeRule) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO life_rules (
			plan_id, company_id, gender, age_from, age_to, persitage, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		rule.PlanID, rule.CompanyID, rule.Gender, rule.From, rule.To, rule.Persitage, now, now)
	if err != nil {
		return dbError(err, "create life rule")
	}

	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// UpdateLifeRule overwrites every mutable field of an existing rule.
func (s *sqlStore) UpdateLifeRule(ctx context.Context, rule *domain.LifeRule) error {
	now := time.Now().UTC()

	query := `
		UPDATE life_rules
		SET plan_id = ?, company_id = ?, gender = ?, age_from = ?, age_to = ?, persitage = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, s.rebind(query),
		rule.PlanID, rule.CompanyID, rule.Gender, rule.From, rule.To, rule.Persitage, now, rule.ID)
	if err := requireAffected(result, err, "update life rule"); err != nil {
		return err
	}

	rule.UpdatedAt = now
	return nil
}

// GetLifeRule retrieves a life rule by id.
func (s *sqlStore) GetLifeRule(ctx context.Context, id int64) (*domain.LifeRule, error) {
	query := `SELECT ` + lifeColumns + ` FROM life_rules lr WHERE lr.id = ?`

	rule, err := scanLifeRule(s.q.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		return nil, dbError(err, "get life rule")
	}
	return rule, nil
}

// ListLifeRules lists life rules ordered by id.
func (s *sqlStore) ListLifeRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.LifeRule, error) {
	where, args := filterClause("lr", filter)
	query := `SELECT ` + lifeColumns + ` FROM life_rules lr` + where + ` ORDER BY lr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, dbError(err, "list life rules")
	}
	defer rows.Close()

	var rules []*domain.LifeRule
	for rows.Next() {
		rule, err := scanLifeRule(rows)
		if err != nil {
			return nil, dbError(err, "scan life rule")
		}
		rules = append(rules, rule)
	}
	return rules, dbError(rows.Err(), "list life rules")
}

// ListLifeCandidates returns every life rule of a plan joined with its
// company, ordered by company, lower age bound and id.
func (s *sqlStore) ListLifeCandidates(ctx context.Context, planID int64) ([]domain.LifeCandidate, error) {
	query := `
		SELECT ` + lifeColumns + `, c.id, c.name, c.logo, c.company_type
		FROM life_rules lr
		JOIN companies c ON c.id = lr.company_id
		WHERE lr.plan_id = ?
		ORDER BY lr.company_id, lr.age_from, lr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), planID)
	if err != nil {
		return nil, dbError(err, "list life candidates")
	}
	defer rows.Close()

	var out []domain.LifeCandidate
	for rows.Next() {
		var r domain.LifeRule
		var c domain.Company
		if err := rows.Scan(
			&r.ID, &r.PlanID, &r.CompanyID, &r.Gender, &r.From, &r.To, &r.Persitage, &r.CreatedAt, &r.UpdatedAt,
			&c.ID, &c.Name, &c.Logo, &c.CompanyType,
		); err != nil {
			return nil, dbError(err, "scan life candidate")
		}
		out = append(out, domain.LifeCandidate{Rule: &r, Company: c})
	}
	return out, dbError(rows.Err(), "list life candidates")
}

// FindLifeRuleIDs returns which of ids exist.
func (s *sqlStore) FindLifeRuleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return s.findIDs(ctx, "life_rules", ids)
}

// DeleteLifeRules removes the given rules.
func (s *sqlStore) DeleteLifeRules(ctx context.Context, ids []int64) (int64, error) {
	return s.deleteIDs(ctx, "life_rules", ids)
}

func scanLifeRule(row rowScanner) (*domain.LifeRule, error) {
	var r domain.LifeRule
	if err := row.Scan(
		&r.ID, &r.PlanID, &r.CompanyID, &r.Gender, &r.From, &r.To, &r.Persitage, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}
