package quote

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/rules"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// PersonRequest asks for health or life offers for one applicant.
type PersonRequest struct {
	PlanID        int64            `json:"planId" validate:"required,gt=0"`
	Age           int              `json:"age" validate:"min=0,max=150"`
	Gender        domain.Gender    `json:"gender" validate:"required,oneof=MALE FEMALE"`
	CompanyFilter string           `json:"companyFilter,omitempty"`
	BasePrice     *decimal.Decimal `json:"basePrice,omitempty"`
}

// Validate checks tags and a non-negative base price.
func (r *PersonRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.BasePrice != nil {
		return validator.NonNegative("basePrice", *r.BasePrice)
	}
	return nil
}

func (r *PersonRequest) query() rules.PersonQuery {
	return rules.PersonQuery{
		PlanID:        r.PlanID,
		Age:           r.Age,
		Gender:        r.Gender,
		CompanyFilter: r.CompanyFilter,
	}
}

// CarRequest asks for car offers for one vehicle.
type CarRequest struct {
	PlanID           int64                   `json:"planId" validate:"required,gt=0"`
	CompanyFilter    string                  `json:"companyFilter,omitempty"`
	VehicleCondition domain.VehicleCondition `json:"vehicleCondition" validate:"required,oneof=NEW USED"`
	MakeID           int64                   `json:"makeId" validate:"required,gt=0"`
	ModelID          int64                   `json:"modelId" validate:"required,gt=0"`
	Year             int                     `json:"year" validate:"required,gt=1900"`
	Price            decimal.Decimal         `json:"price"`
}

// Validate checks tags and a positive price.
func (r *CarRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return validator.Positive("price", r.Price)
}

func (r *CarRequest) query() rules.CarQuery {
	return rules.CarQuery{
		PlanID:           r.PlanID,
		CompanyFilter:    r.CompanyFilter,
		VehicleCondition: r.VehicleCondition,
		MakeID:           r.MakeID,
		ModelID:          r.ModelID,
		Year:             r.Year,
		Price:            r.Price,
	}
}

// FamilyRequest asks for health offers covering a whole roster.
type FamilyRequest struct {
	PlanID        int64          `json:"planId" validate:"required,gt=0"`
	CompanyFilter string         `json:"companyFilter,omitempty"`
	Members       []rules.Member `json:"members" validate:"required,min=1,dive"`
}

// Validate checks tags. An empty roster is rejected here, before any store
// access.
func (r *FamilyRequest) Validate() error {
	if len(r.Members) == 0 {
		return validator.Field("members", "must not be empty")
	}
	return validator.ValidateRequest(r)
}

// CompanyView is a company as shown on an offer.
type CompanyView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Logo        string   `json:"logo,omitempty"`
	CompanyType string   `json:"companyType"`
	Features    []string `json:"features"`
}

// HealthOffer is one eligible health rule.
type HealthOffer struct {
	RuleID  int64           `json:"ruleId"`
	PlanID  int64           `json:"planId"`
	Company CompanyView     `json:"company"`
	Gender  domain.Gender   `json:"gender"`
	From    int             `json:"from"`
	To      int             `json:"to"`
	Price   decimal.Decimal `json:"price"`
}

// LifeOffer is one eligible life rule. FinalPrice is set only when the
// request carried a base price.
type LifeOffer struct {
	RuleID     int64            `json:"ruleId"`
	PlanID     int64            `json:"planId"`
	Company    CompanyView      `json:"company"`
	Gender     domain.Gender    `json:"gender"`
	From       int              `json:"from"`
	To         int              `json:"to"`
	Persitage  decimal.Decimal  `json:"persitage"`
	FinalPrice *decimal.Decimal `json:"finalPrice,omitempty"`
}

// CarOffer is one eligible car rule priced for the vehicle.
type CarOffer struct {
	RuleID           int64                   `json:"ruleId"`
	PlanID           int64                   `json:"planId"`
	Company          CompanyView             `json:"company"`
	RuleType         domain.CarRuleType      `json:"ruleType"`
	VehicleCondition domain.VehicleCondition `json:"vehicleCondition"`
	Persitage        decimal.Decimal         `json:"persitage"`
	FinalPrice       decimal.Decimal         `json:"finalPrice"`
}

// FamilyOffer is a company covering every member of the roster.
type FamilyOffer struct {
	Company    CompanyView         `json:"company"`
	Members    []rules.MemberPrice `json:"members"`
	TotalPrice decimal.Decimal     `json:"totalPrice"`
}
