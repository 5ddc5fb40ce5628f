package repository

import (
	"context"
	"encoding/json"

	"github.com/opensource-finance/brokerage/internal/domain"
)

// SavePlan inserts or replaces a plan. A zero ID lets the database assign one.
func (s *sqlStore) SavePlan(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO plans (name, insurance_type) VALUES (?, ?)`,
			plan.Name, plan.InsuranceType)
		if err != nil {
			return dbError(err, "save plan")
		}
		plan.ID = id
		return nil
	}

	query := `
		INSERT INTO plans (id, name, insurance_type) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			insurance_type = excluded.insurance_type
	`
	_, err := s.q.ExecContext(ctx, s.rebind(query), plan.ID, plan.Name, plan.InsuranceType)
	return dbError(err, "save plan")
}

// GetPlan retrieves a plan by id.
func (s *sqlStore) GetPlan(ctx context.Context, id int64) (*domain.Plan, error) {
	var p domain.Plan
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT id, name, insurance_type FROM plans WHERE id = ?`), id).
		Scan(&p.ID, &p.Name, &p.InsuranceType)
	if err != nil {
		return nil, dbError(err, "get plan")
	}
	return &p, nil
}

// SaveCompany inserts or replaces a company. A zero ID lets the database
// assign one.
func (s *sqlStore) SaveCompany(ctx context.Context, c *domain.Company) error {
	if c.ID == 0 {
		id, err := s.insert(ctx, `INSERT INTO companies (name, logo, company_type) VALUES (?, ?, ?)`,
			c.Name, c.Logo, c.CompanyType)
		if err != nil {
			return dbError(err, "save company")
		}
		c.ID = id
		return nil
	}

	query := `
		INSERT INTO companies (id, name, logo, company_type) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			logo = excluded.logo,
			company_type = excluded.company_type
	`
	_, err := s.q.ExecContext(ctx, s.rebind(query), c.ID, c.Name, c.Logo, c.CompanyType)
	return dbError(err, "save company")
}

// GetCompany retrieves a company by id.
func (s *sqlStore) GetCompany(ctx context.Context, id int64) (*domain.Company, error) {
	var c domain.Company
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT id, name, logo, company_type FROM companies WHERE id = ?`), id).
		Scan(&c.ID, &c.Name, &c.Logo, &c.CompanyType)
	if err != nil {
		return nil, dbError(err, "get company")
	}
	return &c, nil
}

// SaveCompanyPlan stores the feature list a company advertises for a plan.
func (s *sqlStore) SaveCompanyPlan(ctx context.Context, cp *domain.CompanyPlan) error {
	features, err := json.Marshal(cp.Features)
	if err != nil {
		return dbError(err, "encode features")
	}

	query := `
		INSERT INTO company_plans (company_id, plan_id, features) VALUES (?, ?, ?)
		ON CONFLICT(company_id, plan_id) DO UPDATE SET
			features = excluded.features
	`
	_, err = s.q.ExecContext(ctx, s.rebind(query), cp.CompanyID, cp.PlanID, string(features))
	return dbError(err, "save company plan")
}

// GetCompanyPlan retrieves the features of a company for a plan.
func (s *sqlStore) GetCompanyPlan(ctx context.Context, companyID, planID int64) (*domain.CompanyPlan, error) {
	query := `SELECT company_id, plan_id, features FROM company_plans WHERE company_id = ? AND plan_id = ?`

	var cp domain.CompanyPlan
	var features string
	err := s.q.QueryRowContext(ctx, s.rebind(query), companyID, planID).
		Scan(&cp.CompanyID, &cp.PlanID, &features)
	if err != nil {
		return nil, dbError(err, "get company plan")
	}
	if err := json.Unmarshal([]byte(features), &cp.Features); err != nil {
		return nil, dbError(err, "decode features")
	}
	return &cp, nil
}
