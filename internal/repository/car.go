package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

const carColumns = `cr.id, cr.rule_type, cr.vehicle_condition, cr.plan_id, cr.company_id, cr.persitage, cr.price_from, cr.price_to, cr.created_at, cr.updated_at`

const groupColumns = `id, rule_id, group_name, make_id, model_id, year`

// CreateCarRule inserts the rule row only. Group entries are written with
// InsertCarRuleGroupEntries.
func (s *sqlStore) CreateCarRule(ctx context.Context, rule *domain.CarRule) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO car_rules (
			rule_type, vehicle_condition, plan_id, company_id, persitage, price_from, price_to, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		rule.RuleType, rule.VehicleCondition, rule.PlanID, rule.CompanyID,
		rule.Persitage, rule.From, rule.To, now, now)
	if err != nil {
		return dbError(err, "create car rule")
	}

	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// UpdateCarRule overwrites the rule row. Group entries are left untouched.
func (s *sqlStore) UpdateCarRule(ctx context.Context, rule *domain.CarRule) error {
	now := time.Now().UTC()

	query := `
		UPDATE car_rules
		SET rule_type = ?, vehicle_condition = ?, plan_id = ?, company_id = ?,
			persitage = ?, price_from = ?, price_to = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, s.rebind(query),
		rule.RuleType, rule.VehicleCondition, rule.PlanID, rule.CompanyID,
		rule.Persitage, rule.From, rule.To, now, rule.ID)
	if err := requireAffected(result, err, "update car rule"); err != nil {
		return err
	}

	rule.UpdatedAt = now
	return nil
}

// GetCarRule retrieves a car rule with its group entries.
func (s *sqlStore) GetCarRule(ctx context.Context, id int64) (*domain.CarRule, error) {
	query := `SELECT ` + carColumns + ` FROM car_rules cr WHERE cr.id = ?`

	rule, err := scanCarRule(s.q.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		return nil, dbError(err, "get car rule")
	}
	if err := s.attachGroups(ctx, []*domain.CarRule{rule}); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListCarRules lists car rules with their group entries, ordered by id.
func (s *sqlStore) ListCarRules(ctx context.Context, filter domain.RuleFilter) ([]*domain.CarRule, error) {
	where, args := filterClause("cr", filter)
	query := `SELECT ` + carColumns + ` FROM car_rules cr` + where + ` ORDER BY cr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, dbError(err, "list car rules")
	}
	defer rows.Close()

	var rules []*domain.CarRule
	for rows.Next() {
		rule, err := scanCarRule(rows)
		if err != nil {
			return nil, dbError(err, "scan car rule")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list car rules")
	}
	rows.Close()

	if err := s.attachGroups(ctx, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListCarCandidates returns the car rules of a plan in one vehicle condition,
// joined with their company and loaded with group entries, ordered by company
// and id.
func (s *sqlStore) ListCarCandidates(ctx context.Context, planID int64, condition domain.VehicleCondition) ([]domain.CarCandidate, error) {
	query := `
		SELECT ` + carColumns + `, c.id, c.name, c.logo, c.company_type
		FROM car_rules cr
		JOIN companies c ON c.id = cr.company_id
		WHERE cr.plan_id = ? AND cr.vehicle_condition = ?
		ORDER BY cr.company_id, cr.id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), planID, condition)
	if err != nil {
		return nil, dbError(err, "list car candidates")
	}
	defer rows.Close()

	var out []domain.CarCandidate
	var rules []*domain.CarRule
	for rows.Next() {
		var c domain.Company
		rule, err := scanCarRule(rows, &c.ID, &c.Name, &c.Logo, &c.CompanyType)
		if err != nil {
			return nil, dbError(err, "scan car candidate")
		}
		out = append(out, domain.CarCandidate{Rule: rule, Company: c})
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "list car candidates")
	}
	rows.Close()

	if err := s.attachGroups(ctx, rules); err != nil {
		return nil, err
	}
	return out, nil
}

// FindCarRuleIDs returns which of ids exist.
func (s *sqlStore) FindCarRuleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return s.findIDs(ctx, "car_rules", ids)
}

// DeleteCarRules removes the given rules. Their group entries cascade.
func (s *sqlStore) DeleteCarRules(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// Explicit delete keeps the cascade independent of the foreign_keys pragma.
	query := `DELETE FROM car_rule_groups WHERE rule_id IN (` + placeholders(len(ids)) + `)`
	if _, err := s.q.ExecContext(ctx, s.rebind(query), int64Args(ids)...); err != nil {
		return 0, dbError(err, "delete car rule groups")
	}
	return s.deleteIDs(ctx, "car_rules", ids)
}

// ListCarRuleGroupEntries lists the group entries of one rule ordered by id.
func (s *sqlStore) ListCarRuleGroupEntries(ctx context.Context, ruleID int64) ([]domain.CarRuleGroupEntry, error) {
	query := `SELECT ` + groupColumns + ` FROM car_rule_groups WHERE rule_id = ? ORDER BY id`
	return s.queryGroups(ctx, query, ruleID)
}

// InsertCarRuleGroupEntries inserts entries in order and sets their ids.
// An entry that already exists is skipped and takes the stored row's id.
func (s *sqlStore) InsertCarRuleGroupEntries(ctx context.Context, entries []domain.CarRuleGroupEntry) error {
	query := `
		INSERT INTO car_rule_groups (rule_id, group_name, make_id, model_id, year)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	for i := range entries {
		e := &entries[i]
		id, err := s.insert(ctx, query, e.RuleID, e.GroupName, e.MakeID, e.ModelID, e.Year)
		if ierr.Is(err, sql.ErrNoRows) {
			id, err = s.groupEntryID(ctx, *e)
		}
		if err != nil {
			return dbError(err, "insert car rule group")
		}
		e.ID = id
	}
	return nil
}

func (s *sqlStore) groupEntryID(ctx context.Context, e domain.CarRuleGroupEntry) (int64, error) {
	query := `
		SELECT id FROM car_rule_groups
		WHERE rule_id = ? AND group_name = ? AND make_id = ? AND COALESCE(model_id, 0) = ? AND year = ?`

	var modelID int64
	if e.ModelID != nil {
		modelID = *e.ModelID
	}
	var id int64
	err := s.q.QueryRowContext(ctx, s.rebind(query), e.RuleID, e.GroupName, e.MakeID, modelID, e.Year).Scan(&id)
	return id, err
}

// DeleteCarRuleGroupEntriesByRule removes every group entry of a rule.
func (s *sqlStore) DeleteCarRuleGroupEntriesByRule(ctx context.Context, ruleID int64) (int64, error) {
	result, err := s.q.ExecContext(ctx, s.rebind(`DELETE FROM car_rule_groups WHERE rule_id = ?`), ruleID)
	if err != nil {
		return 0, dbError(err, "delete car rule groups")
	}
	n, err := result.RowsAffected()
	return n, dbError(err, "delete car rule groups")
}

// FindCarRuleGroupEntries loads the entries among ids that exist.
func (s *sqlStore) FindCarRuleGroupEntries(ctx context.Context, ids []int64) ([]domain.CarRuleGroupEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + groupColumns + ` FROM car_rule_groups WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	return s.queryGroups(ctx, query, int64Args(ids)...)
}

// CountCarRuleGroupEntries counts the group entries of a rule.
func (s *sqlStore) CountCarRuleGroupEntries(ctx context.Context, ruleID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM car_rule_groups WHERE rule_id = ?`), ruleID).Scan(&n)
	if err != nil {
		return 0, dbError(err, "count car rule groups")
	}
	return n, nil
}

// DeleteCarRuleGroupEntries removes the given group entries.
func (s *sqlStore) DeleteCarRuleGroupEntries(ctx context.Context, ids []int64) (int64, error) {
	return s.deleteIDs(ctx, "car_rule_groups", ids)
}

// attachGroups loads the group entries of rules in one query.
func (s *sqlStore) attachGroups(ctx context.Context, rules []*domain.CarRule) error {
	if len(rules) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.CarRule, len(rules))
	ids := make([]int64, 0, len(rules))
	for _, r := range rules {
		if _, seen := byID[r.ID]; !seen {
			ids = append(ids, r.ID)
		}
		byID[r.ID] = r
	}

	query := `SELECT ` + groupColumns + ` FROM car_rule_groups WHERE rule_id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	entries, err := s.queryGroups(ctx, query, int64Args(ids)...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		r := byID[e.RuleID]
		r.Groups = append(r.Groups, e)
	}
	return nil
}

func (s *sqlStore) queryGroups(ctx context.Context, query string, args ...any) ([]domain.CarRuleGroupEntry, error) {
	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, dbError(err, "list car rule groups")
	}
	defer rows.Close()

	var entries []domain.CarRuleGroupEntry
	for rows.Next() {
		var e domain.CarRuleGroupEntry
		var model sql.NullInt64
		if err := rows.Scan(&e.ID, &e.RuleID, &e.GroupName, &e.MakeID, &model, &e.Year); err != nil {
			return nil, dbError(err, "scan car rule group")
		}
		if model.Valid {
			m := model.Int64
			e.ModelID = &m
		}
		entries = append(entries, e)
	}
	return entries, dbError(rows.Err(), "list car rule groups")
}

// scanCarRule scans carColumns followed by any extra destinations.
func scanCarRule(row rowScanner, extra ...any) (*domain.CarRule, error) {
	var r domain.CarRule
	var from, to decimal.NullDecimal

	dest := []any{
		&r.ID, &r.RuleType, &r.VehicleCondition, &r.PlanID, &r.CompanyID,
		&r.Persitage, &from, &to, &r.CreatedAt, &r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if from.Valid {
		f := from.Decimal
		r.From = &f
	}
	if to.Valid {
		t := to.Decimal
		r.To = &t
	}
	return &r, nil
}
