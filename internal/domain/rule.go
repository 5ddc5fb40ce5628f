package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gender of an insured person.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// InsuranceType is the product line a plan, rule or document belongs to.
type InsuranceType string

const (
	InsuranceCar    InsuranceType = "CAR"
	InsuranceLife   InsuranceType = "LIFE"
	InsuranceHealth InsuranceType = "HEALTH"
)

// CarRuleType selects the matching strategy of a car rule.
type CarRuleType string

const (
	// CarRuleRange matches on a purchase-price band.
	CarRuleRange CarRuleType = "RANGE"
	// CarRuleGroup matches on make/model/year membership.
	CarRuleGroup CarRuleType = "GROUP"
)

// VehicleCondition partitions car rules independently of their type.
type VehicleCondition string

const (
	VehicleNew  VehicleCondition = "NEW"
	VehicleUsed VehicleCondition = "USED"
)

// UpsertMode reports whether an upsert created or updated a rule.
type UpsertMode string

const (
	ModeCreated UpsertMode = "CREATED"
	ModeUpdated UpsertMode = "UPDATED"
)

// HealthRule prices one covered person inside an inclusive age band.
type HealthRule struct {
	ID        int64           `json:"id"`
	PlanID    int64           `json:"planId"`
	CompanyID int64           `json:"companyId"`
	Gender    Gender          `json:"gender"`
	From      int             `json:"from"`
	To        int             `json:"to"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CoversAge reports whether age lies inside the inclusive band.
func (r *HealthRule) CoversAge(age int) bool {
	return r.From <= age && age <= r.To
}

// LifeRule applies a percentage of a caller-supplied base price inside an
// inclusive age band.
type LifeRule struct {
	ID        int64           `json:"id"`
	PlanID    int64           `json:"planId"`
	CompanyID int64           `json:"companyId"`
	Gender    Gender          `json:"gender"`
	From      int             `json:"from"`
	To        int             `json:"to"`
	Persitage decimal.Decimal `json:"persitage"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CoversAge reports whether age lies inside the inclusive band.
func (r *LifeRule) CoversAge(age int) bool {
	return r.From <= age && age <= r.To
}

// CarRule is either a RANGE rule over purchase price (From/To set, no
// groups) or a GROUP rule over make/model/year memberships (From/To nil).
type CarRule struct {
	ID               int64               `json:"id"`
	RuleType         CarRuleType         `json:"ruleType"`
	VehicleCondition VehicleCondition    `json:"vehicleCondition"`
	PlanID           int64               `json:"planId"`
	CompanyID        int64               `json:"companyId"`
	Persitage        decimal.Decimal     `json:"persitage"`
	From             *decimal.Decimal    `json:"from,omitempty"`
	To               *decimal.Decimal    `json:"to,omitempty"`
	Groups           []CarRuleGroupEntry `json:"groups,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// CoversPrice reports whether price falls in (From, To]. The lower bound is
// exclusive so adjacent bands never share a boundary.
func (r *CarRule) CoversPrice(price decimal.Decimal) bool {
	if r.RuleType != CarRuleRange || r.From == nil || r.To == nil {
		return false
	}
	return price.GreaterThan(*r.From) && price.LessThanOrEqual(*r.To)
}

// HasMember reports whether any group entry covers the vehicle.
func (r *CarRule) HasMember(makeID, modelID int64, year int) bool {
	if r.RuleType != CarRuleGroup {
		return false
	}
	for _, g := range r.Groups {
		if g.Covers(makeID, modelID, year) {
			return true
		}
	}
	return false
}

// CarRuleGroupEntry places one make/model/year in a named group of a rule.
// A nil ModelID means any model of the make.
type CarRuleGroupEntry struct {
	ID        int64  `json:"id"`
	RuleID    int64  `json:"ruleId"`
	GroupName string `json:"groupName"`
	MakeID    int64  `json:"makeId"`
	ModelID   *int64 `json:"modelId,omitempty"`
	Year      int    `json:"year"`
}

// Covers reports whether the entry matches the vehicle.
func (e CarRuleGroupEntry) Covers(makeID, modelID int64, year int) bool {
	if e.MakeID != makeID || e.Year != year {
		return false
	}
	return e.ModelID == nil || *e.ModelID == modelID
}

// Key returns the identity of the membership.
func (e CarRuleGroupEntry) Key() GroupEntryKey {
	var model int64
	if e.ModelID != nil {
		model = *e.ModelID
	}
	return GroupEntryKey{
		RuleID:    e.RuleID,
		GroupName: e.GroupName,
		MakeID:    e.MakeID,
		ModelID:   model,
		Year:      e.Year,
	}
}

// GroupEntryKey is the unique identity of a group entry. ModelID 0 stands
// for the any-model wildcard.
type GroupEntryKey struct {
	RuleID    int64
	GroupName string
	MakeID    int64
	ModelID   int64
	Year      int
}

// RuleFilter narrows rule listings. Zero values mean "any".
type RuleFilter struct {
	PlanID    int64
	CompanyID int64
}
