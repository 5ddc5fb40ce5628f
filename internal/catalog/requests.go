package catalog

import (
	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// PlanRequest creates a plan, or replaces one when ID is set.
type PlanRequest struct {
	ID            int64                `json:"id,omitempty" validate:"omitempty,gt=0"`
	Name          string               `json:"name" validate:"required,max=200"`
	InsuranceType domain.InsuranceType `json:"insuranceType" validate:"required,oneof=CAR LIFE HEALTH"`
}

func (r *PlanRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// CompanyRequest creates a company, or replaces one when ID is set.
type CompanyRequest struct {
	ID          int64  `json:"id,omitempty" validate:"omitempty,gt=0"`
	Name        string `json:"name" validate:"required,max=200"`
	Logo        string `json:"logo,omitempty" validate:"omitempty,url"`
	CompanyType string `json:"companyType" validate:"required"`
}

func (r *CompanyRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// FeaturesRequest is the full feature list of a company for one plan.
type FeaturesRequest struct {
	Features []string `json:"features" validate:"required,dive,required"`
}

func (r *FeaturesRequest) Validate() error {
	return validator.ValidateRequest(r)
}
