// Package rules matches applicant profiles against underwriting rules and
// prices the results. Every function here is pure: callers load candidates
// from the store and pass them in.
package rules

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
)

// PersonQuery describes a health or life applicant.
type PersonQuery struct {
	PlanID int64
	Age    int
	Gender domain.Gender
	// CompanyFilter restricts matches to one company category when set.
	CompanyFilter string
}

// CarQuery describes a vehicle to insure.
type CarQuery struct {
	PlanID           int64
	CompanyFilter    string
	VehicleCondition domain.VehicleCondition
	MakeID           int64
	ModelID          int64
	Year             int
	Price            decimal.Decimal
}

func companyAllowed(filter string, c domain.Company) bool {
	return filter == "" || c.CompanyType == filter
}

// MatchHealth returns every candidate whose rule covers the applicant,
// ordered by company id, lower age bound and rule id. Overlapping bands of one
// company are all returned.
func MatchHealth(q PersonQuery, candidates []domain.HealthCandidate) []domain.HealthCandidate {
	matched := lo.Filter(candidates, func(c domain.HealthCandidate, _ int) bool {
		return c.Rule.PlanID == q.PlanID &&
			c.Rule.Gender == q.Gender &&
			c.Rule.CoversAge(q.Age) &&
			companyAllowed(q.CompanyFilter, c.Company)
	})
	slices.SortStableFunc(matched, func(a, b domain.HealthCandidate) int {
		return cmp.Or(
			cmp.Compare(a.Company.ID, b.Company.ID),
			cmp.Compare(a.Rule.From, b.Rule.From),
			cmp.Compare(a.Rule.ID, b.Rule.ID),
		)
	})
	return matched
}

// MatchLife is MatchHealth for life rules.
func MatchLife(q PersonQuery, candidates []domain.LifeCandidate) []domain.LifeCandidate {
	matched := lo.Filter(candidates, func(c domain.LifeCandidate, _ int) bool {
		return c.Rule.PlanID == q.PlanID &&
			c.Rule.Gender == q.Gender &&
			c.Rule.CoversAge(q.Age) &&
			companyAllowed(q.CompanyFilter, c.Company)
	})
	slices.SortStableFunc(matched, func(a, b domain.LifeCandidate) int {
		return cmp.Or(
			cmp.Compare(a.Company.ID, b.Company.ID),
			cmp.Compare(a.Rule.From, b.Rule.From),
			cmp.Compare(a.Rule.ID, b.Rule.ID),
		)
	})
	return matched
}

// MatchCar returns the candidates whose rule covers the vehicle: a RANGE rule
// by purchase price in (from, to], a GROUP rule by make/model/year
// membership. Results are unique per rule and ordered by company id then
// rule id.
func MatchCar(q CarQuery, candidates []domain.CarCandidate) []domain.CarCandidate {
	matched := lo.Filter(candidates, func(c domain.CarCandidate, _ int) bool {
		if c.Rule.PlanID != q.PlanID || c.Rule.VehicleCondition != q.VehicleCondition {
			return false
		}
		if !companyAllowed(q.CompanyFilter, c.Company) {
			return false
		}
		return CarRuleCovers(c.Rule, q)
	})
	matched = lo.UniqBy(matched, func(c domain.CarCandidate) int64 { return c.Rule.ID })
	slices.SortStableFunc(matched, func(a, b domain.CarCandidate) int {
		return cmp.Or(
			cmp.Compare(a.Company.ID, b.Company.ID),
			cmp.Compare(a.Rule.ID, b.Rule.ID),
		)
	})
	return matched
}

// CarRuleCovers applies the rule's matching strategy to the vehicle.
func CarRuleCovers(rule *domain.CarRule, q CarQuery) bool {
	switch rule.RuleType {
	case domain.CarRuleRange:
		return rule.CoversPrice(q.Price)
	case domain.CarRuleGroup:
		return rule.HasMember(q.MakeID, q.ModelID, q.Year)
	}
	return false
}
