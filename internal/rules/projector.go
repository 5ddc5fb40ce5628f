package rules

import (
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
)

// RulesReport is the grouped read view of every rule.
type RulesReport struct {
	Health []*domain.HealthRule                          `json:"health"`
	Life   []*domain.LifeRule                            `json:"life"`
	Car    map[domain.VehicleCondition]*CarConditionView `json:"car"`
}

// CarConditionView holds the car rules of one vehicle condition by type.
type CarConditionView struct {
	Range  []CarRangeView `json:"range"`
	Groups []CarGroupView `json:"groups"`
}

// CarRangeView is a RANGE rule without its (empty) group list.
type CarRangeView struct {
	RuleID    int64           `json:"ruleId"`
	Persitage decimal.Decimal `json:"persitage"`
	PlanID    int64           `json:"planId"`
	CompanyID int64           `json:"companyId"`
	From      decimal.Decimal `json:"from"`
	To        decimal.Decimal `json:"to"`
}

// CarGroupView is a GROUP rule with its memberships folded back into a tree.
type CarGroupView struct {
	RuleID    int64           `json:"ruleId"`
	Persitage decimal.Decimal `json:"persitage"`
	PlanID    int64           `json:"planId"`
	CompanyID int64           `json:"companyId"`
	Groups    []CarGroup      `json:"groups"`
}

// ProjectRules builds the report. Car rules must carry their group entries.
func ProjectRules(health []*domain.HealthRule, life []*domain.LifeRule, car []*domain.CarRule) RulesReport {
	report := RulesReport{
		Health: health,
		Life:   life,
		Car:    make(map[domain.VehicleCondition]*CarConditionView),
	}
	if report.Health == nil {
		report.Health = []*domain.HealthRule{}
	}
	if report.Life == nil {
		report.Life = []*domain.LifeRule{}
	}

	for _, r := range car {
		view, ok := report.Car[r.VehicleCondition]
		if !ok {
			view = &CarConditionView{Range: []CarRangeView{}, Groups: []CarGroupView{}}
			report.Car[r.VehicleCondition] = view
		}

		switch r.RuleType {
		case domain.CarRuleRange:
			rv := CarRangeView{RuleID: r.ID, Persitage: r.Persitage, PlanID: r.PlanID, CompanyID: r.CompanyID}
			if r.From != nil {
				rv.From = *r.From
			}
			if r.To != nil {
				rv.To = *r.To
			}
			view.Range = append(view.Range, rv)
		case domain.CarRuleGroup:
			view.Groups = append(view.Groups, CarGroupView{
				RuleID:    r.ID,
				Persitage: r.Persitage,
				PlanID:    r.PlanID,
				CompanyID: r.CompanyID,
				Groups:    FoldGroups(r.Groups),
			})
		}
	}
	return report
}

type carKey struct {
	makeID  int64
	modelID int64
	wild    bool
}

// FoldGroups is the inverse of FlattenGroups: entries are grouped by group
// name, then by make/model, with years de-duplicated in first-seen order.
func FoldGroups(entries []domain.CarRuleGroupEntry) []CarGroup {
	groups := []CarGroup{}
	groupIdx := map[string]int{}
	carIdx := map[string]map[carKey]int{}
	seenYear := map[string]map[carKey]map[int]bool{}

	for _, e := range entries {
		gi, ok := groupIdx[e.GroupName]
		if !ok {
			gi = len(groups)
			groupIdx[e.GroupName] = gi
			groups = append(groups, CarGroup{GroupName: e.GroupName, Cars: []GroupCar{}})
			carIdx[e.GroupName] = map[carKey]int{}
			seenYear[e.GroupName] = map[carKey]map[int]bool{}
		}

		key := carKey{makeID: e.MakeID, wild: e.ModelID == nil}
		if e.ModelID != nil {
			key.modelID = *e.ModelID
		}
		ci, ok := carIdx[e.GroupName][key]
		if !ok {
			ci = len(groups[gi].Cars)
			carIdx[e.GroupName][key] = ci
			groups[gi].Cars = append(groups[gi].Cars, GroupCar{MakeID: e.MakeID, ModelID: e.ModelID, Years: []int{}})
			seenYear[e.GroupName][key] = map[int]bool{}
		}

		if seenYear[e.GroupName][key][e.Year] {
			continue
		}
		seenYear[e.GroupName][key][e.Year] = true
		groups[gi].Cars[ci].Years = append(groups[gi].Cars[ci].Years, e.Year)
	}
	return groups
}
