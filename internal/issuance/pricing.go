package issuance

import (
	"context"
	"strconv"

	"github.com/samber/lo"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/rules"
)

// priceCar loads the rule, checks it covers the vehicle and fills doc.Car.
func priceCar(ctx context.Context, tx domain.Store, doc *domain.Document, req CarDocumentRequest) error {
	rule, err := tx.GetCarRule(ctx, req.RuleID)
	if err != nil {
		return err
	}

	q := rules.CarQuery{
		PlanID:           rule.PlanID,
		VehicleCondition: req.VehicleCondition,
		MakeID:           req.MakeID,
		ModelID:          req.ModelID,
		Year:             req.Year,
		Price:            req.Price,
	}
	if rule.VehicleCondition != req.VehicleCondition || !rules.CarRuleCovers(rule, q) {
		return ierr.NewErrorf("car rule %d does not cover the vehicle", rule.ID).
			WithHintf("rule %d (%s %s) does not match make %d model %d year %d at price %s",
				rule.ID, rule.RuleType, rule.VehicleCondition, req.MakeID, req.ModelID, req.Year, req.Price).
			Mark(ierr.ErrIntegrity)
	}

	doc.PlanID, doc.CompanyID = rule.PlanID, rule.CompanyID
	doc.Car = &domain.CarDocumentInfo{
		RuleID:           rule.ID,
		VehicleCondition: req.VehicleCondition,
		MakeID:           req.MakeID,
		ModelID:          req.ModelID,
		Year:             req.Year,
		Price:            req.Price,
		Persitage:        rule.Persitage,
		FinalPrice:       rules.PercentagePremium(req.Price, rule.Persitage),
	}
	return nil
}

// priceLife loads the rule and fills doc.Life.
func priceLife(ctx context.Context, tx domain.Store, doc *domain.Document, req LifeDocumentRequest) error {
	rule, err := tx.GetLifeRule(ctx, req.RuleID)
	if err != nil {
		return err
	}

	doc.PlanID, doc.CompanyID = rule.PlanID, rule.CompanyID
	doc.Life = &domain.LifeDocumentInfo{
		RuleID:     rule.ID,
		Price:      req.Price,
		Persitage:  rule.Persitage,
		FinalPrice: rules.PercentagePremium(req.Price, rule.Persitage),
	}
	return nil
}

// priceHealth loads the rule, checks it covers the member and fills an
// individual doc.Health.
func priceHealth(ctx context.Context, tx domain.Store, doc *domain.Document, ruleID int64, m rules.Member) error {
	rule, err := tx.GetHealthRule(ctx, ruleID)
	if err != nil {
		return err
	}
	company, err := tx.GetCompany(ctx, rule.CompanyID)
	if err != nil {
		return err
	}

	matched := rules.MatchHealth(rules.PersonQuery{
		PlanID: rule.PlanID,
		Age:    m.Age,
		Gender: m.Gender,
	}, []domain.HealthCandidate{{Rule: rule, Company: *company}})
	if len(matched) == 0 {
		return ierr.NewErrorf("health rule %d does not cover the applicant", rule.ID).
			WithHintf("rule %d covers %s aged %d-%d, not %s aged %d",
				rule.ID, rule.Gender, rule.From, rule.To, m.Gender, m.Age).
			Mark(ierr.ErrIntegrity)
	}

	price := rules.FlatPremium(rule.Price)
	doc.PlanID, doc.CompanyID = rule.PlanID, rule.CompanyID
	doc.Health = &domain.HealthDocumentInfo{
		Type:       domain.HealthIndividual,
		TotalPrice: price,
		Members: []domain.DocumentMember{{
			RuleID: rule.ID,
			Age:    m.Age,
			Gender: m.Gender,
			Price:  price,
		}},
	}
	return nil
}

// priceGroup prices every member at doc.CompanyID and fills a group
// doc.Health. An uncovered member fails the whole roster.
func priceGroup(ctx context.Context, tx domain.Store, doc *domain.Document, groupName string, members []rules.Member) error {
	candidates, err := tx.ListHealthCandidates(ctx, doc.PlanID)
	if err != nil {
		return err
	}
	atCompany := lo.Filter(candidates, func(c domain.HealthCandidate, _ int) bool {
		return c.Company.ID == doc.CompanyID
	})

	offers, err := rules.AggregateFamily(rules.FamilyQuery{PlanID: doc.PlanID, Members: members}, atCompany)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		return uncoveredMembers(doc, members, atCompany)
	}

	offer := offers[0]
	doc.Health = &domain.HealthDocumentInfo{
		Type:       domain.HealthGroup,
		GroupName:  groupName,
		TotalPrice: offer.TotalPrice,
		Members: lo.Map(offer.Members, func(p rules.MemberPrice, _ int) domain.DocumentMember {
			return domain.DocumentMember{RuleID: p.RuleID, Age: p.Age, Gender: p.Gender, Price: p.Price}
		}),
	}
	return nil
}

func uncoveredMembers(doc *domain.Document, members []rules.Member, candidates []domain.HealthCandidate) error {
	details := map[string]any{}
	for i, m := range members {
		matched := rules.MatchHealth(rules.PersonQuery{PlanID: doc.PlanID, Age: m.Age, Gender: m.Gender}, candidates)
		if len(matched) == 0 {
			details["members["+strconv.Itoa(i)+"]"] = string(m.Gender) + " aged " + strconv.Itoa(m.Age)
		}
	}
	return ierr.NewErrorf("company %d does not cover every member", doc.CompanyID).
		WithHintf("company %d has no plan %d health rule for %d of %d members",
			doc.CompanyID, doc.PlanID, len(details), len(members)).
		WithReportableDetails(details).
		Mark(ierr.ErrNotFound)
}

// repriceHealth applies a health update to a stored document, following its
// individual or group shape.
func repriceHealth(ctx context.Context, tx domain.Store, doc *domain.Document, u HealthDocumentUpdate) error {
	if doc.Health == nil {
		return ierr.NewErrorf("document %d has no health info", doc.ID).Mark(ierr.ErrIntegrity)
	}

	switch doc.Health.Type {
	case domain.HealthGroup:
		req := GroupHealthDocumentRequest{
			PlanID:    doc.PlanID,
			CompanyID: doc.CompanyID,
			GroupName: lo.CoalesceOrEmpty(u.GroupName, doc.Health.GroupName),
			Members:   u.Members,
		}
		if err := req.Validate(); err != nil {
			return err
		}
		return priceGroup(ctx, tx, doc, req.GroupName, req.Members)
	default:
		req := HealthDocumentRequest{RuleID: u.RuleID, Age: u.Age, Gender: u.Gender}
		if err := req.Validate(); err != nil {
			return err
		}
		return priceHealth(ctx, tx, doc, req.RuleID, rules.Member{Age: req.Age, Gender: req.Gender})
	}
}

// requirePlan fails unless the plan exists and sells insuranceType.
func requirePlan(ctx context.Context, tx domain.Store, planID int64, insuranceType domain.InsuranceType) error {
	plan, err := tx.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.InsuranceType != insuranceType {
		return ierr.NewErrorf("plan %d is %s", planID, plan.InsuranceType).
			WithHintf("plan %d is not a %s plan", planID, insuranceType).
			Mark(ierr.ErrIntegrity)
	}
	return nil
}
