package ruleset

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/repository"
	"github.com/opensource-finance/brokerage/internal/rules"
)

type fixture struct {
	svc        *Service
	repo       *repository.SQLRepository
	healthPlan *domain.Plan
	lifePlan   *domain.Plan
	carPlan    *domain.Plan
	company    *domain.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "brokerage-ruleset-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	f := &fixture{
		svc:        NewService(repo, nil),
		repo:       repo,
		healthPlan: &domain.Plan{Name: "Health", InsuranceType: domain.InsuranceHealth},
		lifePlan:   &domain.Plan{Name: "Life", InsuranceType: domain.InsuranceLife},
		carPlan:    &domain.Plan{Name: "Car", InsuranceType: domain.InsuranceCar},
		company:    &domain.Company{Name: "Acme", CompanyType: "INSURER"},
	}
	require.NoError(t, repo.SavePlan(ctx, f.healthPlan))
	require.NoError(t, repo.SavePlan(ctx, f.lifePlan))
	require.NoError(t, repo.SavePlan(ctx, f.carPlan))
	require.NoError(t, repo.SaveCompany(ctx, f.company))
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func int64Ptr(v int64) *int64 {
	return &v
}

func (f *fixture) healthInput(from, to int, price string) HealthRuleInput {
	return HealthRuleInput{
		PlanID:    f.healthPlan.ID,
		CompanyID: f.company.ID,
		Gender:    domain.GenderMale,
		From:      from,
		To:        to,
		Price:     dec(price),
	}
}

func (f *fixture) groupRule(groups ...groupArg) CarRuleInput {
	in := CarRuleInput{
		RuleType:         domain.CarRuleGroup,
		VehicleCondition: domain.VehicleUsed,
		PlanID:           f.carPlan.ID,
		CompanyID:        f.company.ID,
		Persitage:        dec("3.5"),
	}
	for _, g := range groups {
		in.Groups = append(in.Groups, g.group())
	}
	return in
}

// groupArg builds a one-car group.
type groupArg struct {
	Name  string
	Make  int64
	Years []int
}

func (a groupArg) group() rules.CarGroup {
	return rules.CarGroup{
		GroupName: a.Name,
		Cars:      []rules.GroupCar{{MakeID: a.Make, Years: a.Years}},
	}
}

func TestUpsertHealthRules(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateThenUpdate", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
			Rules: []HealthRuleInput{f.healthInput(0, 17, "80"), f.healthInput(18, 40, "120")},
		})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.NotZero(t, created[0].ID)
		assert.Equal(t, 18, created[1].From)

		in := f.healthInput(18, 45, "130")
		in.ID = int64Ptr(created[1].ID)
		updated, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{Rules: []HealthRuleInput{in}})
		require.NoError(t, err)
		assert.Equal(t, created[1].ID, updated[0].ID)

		got, err := f.repo.GetHealthRule(ctx, created[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 45, got.To)
		assert.True(t, got.Price.Equal(dec("130")))
	})

	t.Run("InvertedBand", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
			Rules: []HealthRuleInput{f.healthInput(40, 18, "100")},
		})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("UnknownIDRollsBackBatch", func(t *testing.T) {
		f := newFixture(t)
		bad := f.healthInput(0, 10, "50")
		bad.ID = int64Ptr(999)

		_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
			Rules: []HealthRuleInput{f.healthInput(11, 20, "60"), bad},
		})
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
		ids, ok := ierr.UnknownIDs(err)
		require.True(t, ok)
		assert.Equal(t, []int64{999}, ids)

		all, err := f.repo.ListHealthRules(ctx, domain.RuleFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("WrongPlanType", func(t *testing.T) {
		f := newFixture(t)
		in := f.healthInput(0, 10, "50")
		in.PlanID = f.lifePlan.ID

		_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{Rules: []HealthRuleInput{in}})
		require.Error(t, err)
		assert.True(t, ierr.IsIntegrity(err))
	})

	t.Run("UnknownCompany", func(t *testing.T) {
		f := newFixture(t)
		in := f.healthInput(0, 10, "50")
		in.CompanyID = 404

		_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{Rules: []HealthRuleInput{in}})
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
		assert.Contains(t, ierr.Hint(err), "company 404")
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestUpsertLifeRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := LifeRuleInput{
		PlanID:    f.lifePlan.ID,
		CompanyID: f.company.ID,
		Gender:    domain.GenderFemale,
		From:      18,
		To:        60,
		Persitage: dec("15"),
	}

	t.Run("Create", func(t *testing.T) {
		got, err := f.svc.UpsertLifeRules(ctx, UpsertLifeRulesRequest{Rules: []LifeRuleInput{in}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Persitage.Equal(dec("15")))
	})

	t.Run("PercentageOutOfRange", func(t *testing.T) {
		bad := in
		bad.Persitage = dec("120")
		_, err := f.svc.UpsertLifeRules(ctx, UpsertLifeRulesRequest{Rules: []LifeRuleInput{bad}})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("InvalidGender", func(t *testing.T) {
		bad := in
		bad.Gender = "OTHER"
		_, err := f.svc.UpsertLifeRules(ctx, UpsertLifeRulesRequest{Rules: []LifeRuleInput{bad}})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestUpsertCarRule(t *testing.T) {
	ctx := context.Background()

	t.Run("GroupDeduplicatesYears", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020, 2020, 2021}}))
		require.NoError(t, err)
		assert.Equal(t, domain.ModeCreated, res.Mode)
		assert.Equal(t, 2, res.InsertedEntries)

		entries, err := f.repo.ListCarRuleGroupEntries(ctx, res.RuleID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("ReplayDoesNotGrow", func(t *testing.T) {
		f := newFixture(t)
		in := f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020, 2021}})
		res, err := f.svc.UpsertCarRule(ctx, in)
		require.NoError(t, err)

		in.ID = int64Ptr(res.RuleID)
		replay, err := f.svc.UpsertCarRule(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeUpdated, replay.Mode)
		assert.Equal(t, 0, replay.InsertedEntries)

		entries, err := f.repo.ListCarRuleGroupEntries(ctx, res.RuleID)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("UpdateAddsOnlyMissing", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020}}))
		require.NoError(t, err)

		in := f.groupRule(
			groupArg{Name: "A", Make: 7, Years: []int{2020, 2022}},
			groupArg{Name: "B", Make: 9, Years: []int{2019}},
		)
		in.ID = int64Ptr(res.RuleID)
		updated, err := f.svc.UpsertCarRule(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.InsertedEntries)
	})

	t.Run("GroupToRangeDropsEntries", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020}}))
		require.NoError(t, err)

		rangeIn := CarRuleInput{
			ID:               int64Ptr(res.RuleID),
			RuleType:         domain.CarRuleRange,
			VehicleCondition: domain.VehicleUsed,
			PlanID:           f.carPlan.ID,
			CompanyID:        f.company.ID,
			Persitage:        dec("2"),
			From:             decPtr("0"),
			To:               decPtr("50000"),
		}
		_, err = f.svc.UpsertCarRule(ctx, rangeIn)
		require.NoError(t, err)

		rule, err := f.repo.GetCarRule(ctx, res.RuleID)
		require.NoError(t, err)
		assert.Equal(t, domain.CarRuleRange, rule.RuleType)
		assert.Empty(t, rule.Groups)
	})

	t.Run("RangeWithGroupsRejected", func(t *testing.T) {
		f := newFixture(t)
		in := f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020}})
		in.RuleType = domain.CarRuleRange
		in.From, in.To = decPtr("0"), decPtr("100")

		_, err := f.svc.UpsertCarRule(ctx, in)
		require.Error(t, err)
		assert.True(t, ierr.IsIntegrity(err))
	})

	t.Run("RangeRequiresBand", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertCarRule(ctx, CarRuleInput{
			RuleType:         domain.CarRuleRange,
			VehicleCondition: domain.VehicleNew,
			PlanID:           f.carPlan.ID,
			CompanyID:        f.company.ID,
			Persitage:        dec("2"),
		})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("EmptyGroupsRejected", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertCarRule(ctx, f.groupRule())
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("UnknownRuleID", func(t *testing.T) {
		f := newFixture(t)
		in := f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020}})
		in.ID = int64Ptr(555)

		_, err := f.svc.UpsertCarRule(ctx, in)
		require.Error(t, err)
		ids, ok := ierr.UnknownIDs(err)
		require.True(t, ok)
		assert.Equal(t, []int64{555}, ids)
	})
}

func TestDeleteRules(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownIDKeepsEverything", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
			Rules: []HealthRuleInput{f.healthInput(0, 17, "80"), f.healthInput(18, 40, "120")},
		})
		require.NoError(t, err)

		_, err = f.svc.DeleteHealthRules(ctx, DeleteRequest{IDs: []int64{created[0].ID, created[1].ID, 999}})
		require.Error(t, err)
		ids, ok := ierr.UnknownIDs(err)
		require.True(t, ok)
		assert.Equal(t, []int64{999}, ids)

		all, err := f.repo.ListHealthRules(ctx, domain.RuleFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("DeletesAll", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
			Rules: []HealthRuleInput{f.healthInput(0, 17, "80")},
		})
		require.NoError(t, err)

		res, err := f.svc.DeleteHealthRules(ctx, DeleteRequest{IDs: []int64{created[0].ID, created[0].ID}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Deleted)
	})

	t.Run("EmptyList", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.DeleteLifeRules(ctx, DeleteRequest{})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("CarRuleCascades", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020, 2021}}))
		require.NoError(t, err)

		del, err := f.svc.DeleteCarRules(ctx, DeleteRequest{IDs: []int64{res.RuleID}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), del.Deleted)

		entries, err := f.repo.ListCarRuleGroupEntries(ctx, res.RuleID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("GroupEntries", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020, 2021}}))
		require.NoError(t, err)
		entries, err := f.repo.ListCarRuleGroupEntries(ctx, res.RuleID)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		_, err = f.svc.DeleteCarRuleGroupEntries(ctx, DeleteRequest{IDs: []int64{entries[0].ID, entries[1].ID}})
		require.Error(t, err)
		assert.True(t, ierr.IsIntegrity(err))

		del, err := f.svc.DeleteCarRuleGroupEntries(ctx, DeleteRequest{IDs: []int64{entries[0].ID}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), del.Deleted)

		_, err = f.svc.DeleteCarRuleGroupEntries(ctx, DeleteRequest{IDs: []int64{entries[0].ID}})
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
	})
}

func TestGetAllRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.UpsertHealthRules(ctx, UpsertHealthRulesRequest{
		Rules: []HealthRuleInput{f.healthInput(0, 17, "80")},
	})
	require.NoError(t, err)
	res, err := f.svc.UpsertCarRule(ctx, f.groupRule(groupArg{Name: "A", Make: 7, Years: []int{2020, 2021}}))
	require.NoError(t, err)

	report, err := f.svc.GetAllRules(ctx, domain.RuleFilter{})
	require.NoError(t, err)
	assert.Len(t, report.Health, 1)
	assert.Empty(t, report.Life)

	used := report.Car[domain.VehicleUsed]
	require.NotNil(t, used)
	require.Len(t, used.Groups, 1)
	assert.Equal(t, res.RuleID, used.Groups[0].RuleID)
	require.Len(t, used.Groups[0].Groups, 1)
	assert.Equal(t, []int{2020, 2021}, used.Groups[0].Groups[0].Cars[0].Years)
}
