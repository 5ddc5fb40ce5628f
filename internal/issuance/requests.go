package issuance

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/rules"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// CarDocumentRequest issues a car document under one rule.
type CarDocumentRequest struct {
	RuleID           int64                   `json:"ruleId" validate:"required,gt=0"`
	VehicleCondition domain.VehicleCondition `json:"vehicleCondition" validate:"required,oneof=NEW USED"`
	MakeID           int64                   `json:"makeId" validate:"required,gt=0"`
	ModelID          int64                   `json:"modelId" validate:"required,gt=0"`
	Year             int                     `json:"year" validate:"required,gt=1900"`
	Price            decimal.Decimal         `json:"price"`
	PaidKey          string                  `json:"paidKey,omitempty"`
}

// Validate checks tags and a positive price.
func (r *CarDocumentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return validator.Positive("price", r.Price)
}

// LifeDocumentRequest issues a life document under one rule.
type LifeDocumentRequest struct {
	RuleID  int64           `json:"ruleId" validate:"required,gt=0"`
	Price   decimal.Decimal `json:"price"`
	PaidKey string          `json:"paidKey,omitempty"`
}

// Validate checks tags and a positive price.
func (r *LifeDocumentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return validator.Positive("price", r.Price)
}

// HealthDocumentRequest issues a single-person health document.
type HealthDocumentRequest struct {
	RuleID  int64         `json:"ruleId" validate:"required,gt=0"`
	Age     int           `json:"age" validate:"min=0,max=150"`
	Gender  domain.Gender `json:"gender" validate:"required,oneof=MALE FEMALE"`
	PaidKey string        `json:"paidKey,omitempty"`
}

// Validate checks tags.
func (r *HealthDocumentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// GroupHealthDocumentRequest issues one health document covering a roster
// at a single company.
type GroupHealthDocumentRequest struct {
	PlanID    int64          `json:"planId" validate:"required,gt=0"`
	CompanyID int64          `json:"companyId" validate:"required,gt=0"`
	GroupName string         `json:"groupName,omitempty"`
	Members   []rules.Member `json:"members" validate:"required,min=1,dive"`
	PaidKey   string         `json:"paidKey,omitempty"`
}

// Validate checks tags and a non-empty roster.
func (r *GroupHealthDocumentRequest) Validate() error {
	if len(r.Members) == 0 {
		return validator.Field("members", "must not be empty")
	}
	return validator.ValidateRequest(r)
}

// DocumentUpdate re-prices a stored document. The concrete type must match
// the document's insurance type.
type DocumentUpdate interface {
	insuranceType() domain.InsuranceType
}

// CarDocumentUpdate re-prices a car document.
type CarDocumentUpdate CarDocumentRequest

func (CarDocumentUpdate) insuranceType() domain.InsuranceType { return domain.InsuranceCar }

// LifeDocumentUpdate re-prices a life document.
type LifeDocumentUpdate LifeDocumentRequest

func (LifeDocumentUpdate) insuranceType() domain.InsuranceType { return domain.InsuranceLife }

// HealthDocumentUpdate re-prices a health document. Individual documents use
// RuleID, Age and Gender; group documents use Members and GroupName and keep
// their company.
type HealthDocumentUpdate struct {
	RuleID    int64          `json:"ruleId,omitempty"`
	Age       int            `json:"age,omitempty"`
	Gender    domain.Gender  `json:"gender,omitempty"`
	GroupName string         `json:"groupName,omitempty"`
	Members   []rules.Member `json:"members,omitempty"`
	PaidKey   string         `json:"paidKey,omitempty"`
}

func (HealthDocumentUpdate) insuranceType() domain.InsuranceType { return domain.InsuranceHealth }

// UpdateEnvelope is the wire form of a DocumentUpdate:
// {"kind":"CAR","car":{...}}.
type UpdateEnvelope struct {
	Kind   domain.InsuranceType  `json:"kind" validate:"required,oneof=CAR LIFE HEALTH"`
	Car    *CarDocumentUpdate    `json:"car,omitempty"`
	Life   *LifeDocumentUpdate   `json:"life,omitempty"`
	Health *HealthDocumentUpdate `json:"health,omitempty"`
}

// Update returns the variant named by Kind.
func (e *UpdateEnvelope) Update() (DocumentUpdate, error) {
	if err := validator.ValidateRequest(e); err != nil {
		return nil, err
	}
	var upd DocumentUpdate
	switch e.Kind {
	case domain.InsuranceCar:
		if e.Car != nil {
			upd = *e.Car
		}
	case domain.InsuranceLife:
		if e.Life != nil {
			upd = *e.Life
		}
	case domain.InsuranceHealth:
		if e.Health != nil {
			upd = *e.Health
		}
	}
	if upd == nil {
		return nil, ierr.NewErrorf("missing %s update body", e.Kind).
			WithHintf("kind %s requires the matching update object", e.Kind).
			Mark(ierr.ErrValidation)
	}
	return upd, nil
}
