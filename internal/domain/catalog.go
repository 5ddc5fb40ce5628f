package domain

// Plan is an insurance plan owned by the plan catalog.
type Plan struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	InsuranceType InsuranceType `json:"insuranceType"`
}

// Company is an underwriting company. CompanyType is the category offers can
// be filtered by.
type Company struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Logo        string `json:"logo,omitempty"`
	CompanyType string `json:"companyType"`
}

// CompanyPlan holds the marketing features a company lists for a plan.
type CompanyPlan struct {
	CompanyID int64    `json:"companyId"`
	PlanID    int64    `json:"planId"`
	Features  []string `json:"features"`
}

// HealthCandidate is a health rule joined with its company.
type HealthCandidate struct {
	Rule    *HealthRule
	Company Company
}

// LifeCandidate is a life rule joined with its company.
type LifeCandidate struct {
	Rule    *LifeRule
	Company Company
}

// CarCandidate is a car rule (with its group entries) joined with its company.
type CarCandidate struct {
	Rule    *CarRule
	Company Company
}
