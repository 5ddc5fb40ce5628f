package ruleset

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/rules"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// HealthRuleInput creates a health rule, or updates it when ID is set.
type HealthRuleInput struct {
	ID        *int64          `json:"id,omitempty" validate:"omitempty,gt=0"`
	PlanID    int64           `json:"planId" validate:"required,gt=0"`
	CompanyID int64           `json:"companyId" validate:"required,gt=0"`
	Gender    domain.Gender   `json:"gender" validate:"required,oneof=MALE FEMALE"`
	From      int             `json:"from" validate:"min=0"`
	To        int             `json:"to" validate:"min=0"`
	Price     decimal.Decimal `json:"price"`
}

// UpsertHealthRulesRequest is one atomic batch.
type UpsertHealthRulesRequest struct {
	Rules []HealthRuleInput `json:"rules" validate:"required,min=1,dive"`
}

// Validate checks tags plus the band and price.
func (r *UpsertHealthRulesRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for _, in := range r.Rules {
		if err := validator.Band("age", in.From, in.To); err != nil {
			return err
		}
		if err := validator.Positive("price", in.Price); err != nil {
			return err
		}
	}
	return nil
}

// LifeRuleInput creates a life rule, or updates it when ID is set.
type LifeRuleInput struct {
	ID        *int64          `json:"id,omitempty" validate:"omitempty,gt=0"`
	PlanID    int64           `json:"planId" validate:"required,gt=0"`
	CompanyID int64           `json:"companyId" validate:"required,gt=0"`
	Gender    domain.Gender   `json:"gender" validate:"required,oneof=MALE FEMALE"`
	From      int             `json:"from" validate:"min=0"`
	To        int             `json:"to" validate:"min=0"`
	Persitage decimal.Decimal `json:"persitage"`
}

// UpsertLifeRulesRequest is one atomic batch.
type UpsertLifeRulesRequest struct {
	Rules []LifeRuleInput `json:"rules" validate:"required,min=1,dive"`
}

// Validate checks tags plus the band and percentage.
func (r *UpsertLifeRulesRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for _, in := range r.Rules {
		if err := validator.Band("age", in.From, in.To); err != nil {
			return err
		}
		if err := validator.Percentage("persitage", in.Persitage); err != nil {
			return err
		}
	}
	return nil
}

// CarRuleInput is a full car rule. RANGE rules carry From/To, GROUP rules
// carry Groups.
type CarRuleInput struct {
	ID               *int64                  `json:"id,omitempty" validate:"omitempty,gt=0"`
	RuleType         domain.CarRuleType      `json:"ruleType" validate:"required,oneof=RANGE GROUP"`
	VehicleCondition domain.VehicleCondition `json:"vehicleCondition" validate:"required,oneof=NEW USED"`
	PlanID           int64                   `json:"planId" validate:"required,gt=0"`
	CompanyID        int64                   `json:"companyId" validate:"required,gt=0"`
	Persitage        decimal.Decimal         `json:"persitage"`
	From             *decimal.Decimal        `json:"from,omitempty"`
	To               *decimal.Decimal        `json:"to,omitempty"`
	Groups           []rules.CarGroup        `json:"groups,omitempty" validate:"omitempty,dive"`
}

// Validate checks tags, the percentage and the RANGE band.
func (r *CarRuleInput) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := validator.Percentage("persitage", r.Persitage); err != nil {
		return err
	}
	if r.RuleType != domain.CarRuleRange {
		return nil
	}
	if r.From == nil || r.To == nil {
		return validator.Field("from/to", "are required for RANGE rules")
	}
	if err := validator.NonNegative("from", *r.From); err != nil {
		return err
	}
	return validator.DecimalBand("price", *r.From, *r.To)
}

// CarUpsertResult reports the outcome of UpsertCarRule.
type CarUpsertResult struct {
	RuleID          int64             `json:"ruleId"`
	Mode            domain.UpsertMode `json:"mode"`
	InsertedEntries int               `json:"insertedEntries"`
}

// DeleteRequest lists ids to delete atomically.
type DeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// DeleteResult reports how many rows were deleted.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}
