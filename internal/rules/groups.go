package rules

import (
	"github.com/samber/lo"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// CarGroup is the nested form of a GROUP rule's memberships, used both to
// submit a rule and to report it.
type CarGroup struct {
	GroupName string     `json:"groupName" validate:"required"`
	Cars      []GroupCar `json:"cars" validate:"required,min=1,dive"`
}

// GroupCar lists the years a make (and optionally one model) is covered.
type GroupCar struct {
	MakeID  int64  `json:"makeId" validate:"required,gt=0"`
	ModelID *int64 `json:"modelId,omitempty" validate:"omitempty,gt=0"`
	Years   []int  `json:"years" validate:"required,min=1"`
}

// FlattenGroups expands the tree into one entry per (group, make, model,
// year), dropping duplicate keys while keeping first-seen order.
func FlattenGroups(ruleID int64, groups []CarGroup) ([]domain.CarRuleGroupEntry, error) {
	if len(groups) == 0 {
		return nil, ierr.NewError("groups must not be empty").
			WithHint("a GROUP rule needs at least one group").
			Mark(ierr.ErrValidation)
	}

	var entries []domain.CarRuleGroupEntry
	for _, g := range groups {
		if len(g.Cars) == 0 {
			return nil, ierr.NewErrorf("group %q has no cars", g.GroupName).
				WithHintf("group %q must list at least one car", g.GroupName).
				Mark(ierr.ErrValidation)
		}
		for _, car := range g.Cars {
			if len(car.Years) == 0 {
				return nil, ierr.NewErrorf("car %d in group %q has no years", car.MakeID, g.GroupName).
					WithHintf("make %d in group %q must list at least one year", car.MakeID, g.GroupName).
					Mark(ierr.ErrValidation)
			}
			for _, year := range car.Years {
				entries = append(entries, domain.CarRuleGroupEntry{
					RuleID:    ruleID,
					GroupName: g.GroupName,
					MakeID:    car.MakeID,
					ModelID:   car.ModelID,
					Year:      year,
				})
			}
		}
	}

	return lo.UniqBy(entries, domain.CarRuleGroupEntry.Key), nil
}

// MissingEntries returns the wanted entries whose keys are not persisted.
func MissingEntries(wanted, persisted []domain.CarRuleGroupEntry) []domain.CarRuleGroupEntry {
	have := lo.SliceToMap(persisted, func(e domain.CarRuleGroupEntry) (domain.GroupEntryKey, struct{}) {
		return e.Key(), struct{}{}
	})
	return lo.Filter(wanted, func(e domain.CarRuleGroupEntry, _ int) bool {
		_, ok := have[e.Key()]
		return !ok
	})
}
