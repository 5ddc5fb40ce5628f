package quote

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/rules"
)

type fakeStore struct {
	health []domain.HealthCandidate
	life   []domain.LifeCandidate
	car    []domain.CarCandidate
	calls  int
}

func (f *fakeStore) ListHealthCandidates(_ context.Context, planID int64) ([]domain.HealthCandidate, error) {
	f.calls++
	return f.health, nil
}

func (f *fakeStore) ListLifeCandidates(_ context.Context, planID int64) ([]domain.LifeCandidate, error) {
	f.calls++
	return f.life, nil
}

func (f *fakeStore) ListCarCandidates(_ context.Context, planID int64, condition domain.VehicleCondition) ([]domain.CarCandidate, error) {
	f.calls++
	var out []domain.CarCandidate
	for _, c := range f.car {
		if c.Rule.VehicleCondition == condition {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeFeatures struct {
	byCompany map[int64][]string
	err       error
	calls     int
}

func (f *fakeFeatures) Features(_ context.Context, companyID, _ int64) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if fs, ok := f.byCompany[companyID]; ok {
		return fs, nil
	}
	return []string{}, nil
}

var (
	acme   = domain.Company{ID: 1, Name: "Acme", CompanyType: "INSURER"}
	zenith = domain.Company{ID: 2, Name: "Zenith", CompanyType: "BROKER"}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func healthCandidate(id int64, company domain.Company, gender domain.Gender, from, to int, price string) domain.HealthCandidate {
	return domain.HealthCandidate{
		Rule: &domain.HealthRule{
			ID: id, PlanID: 10, CompanyID: company.ID, Gender: gender, From: from, To: to, Price: dec(price),
		},
		Company: company,
	}
}

func TestHealthOffers(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{health: []domain.HealthCandidate{
		healthCandidate(1, zenith, domain.GenderMale, 18, 40, "90"),
		healthCandidate(2, acme, domain.GenderMale, 18, 40, "100"),
		healthCandidate(3, acme, domain.GenderFemale, 18, 40, "95"),
	}}
	features := &fakeFeatures{byCompany: map[int64][]string{1: {"dental", "vision"}}}
	svc := NewService(store, features, nil)

	t.Run("MatchesAndDecorates", func(t *testing.T) {
		offers, err := svc.HealthOffers(ctx, PersonRequest{PlanID: 10, Age: 30, Gender: domain.GenderMale})
		require.NoError(t, err)
		require.Len(t, offers, 2)

		assert.Equal(t, int64(2), offers[0].RuleID)
		assert.Equal(t, []string{"dental", "vision"}, offers[0].Company.Features)
		assert.True(t, offers[0].Price.Equal(dec("100")))
		assert.Equal(t, []string{}, offers[1].Company.Features)
	})

	t.Run("CompanyFilter", func(t *testing.T) {
		offers, err := svc.HealthOffers(ctx, PersonRequest{PlanID: 10, Age: 30, Gender: domain.GenderMale, CompanyFilter: "BROKER"})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, zenith.ID, offers[0].Company.ID)
	})

	t.Run("NoMatchIsEmpty", func(t *testing.T) {
		offers, err := svc.HealthOffers(ctx, PersonRequest{PlanID: 10, Age: 70, Gender: domain.GenderMale})
		require.NoError(t, err)
		assert.NotNil(t, offers)
		assert.Empty(t, offers)
	})

	t.Run("InvalidGender", func(t *testing.T) {
		_, err := svc.HealthOffers(ctx, PersonRequest{PlanID: 10, Age: 30, Gender: "X"})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("FeatureErrorPropagates", func(t *testing.T) {
		broken := NewService(store, &fakeFeatures{err: ierr.NewError("boom").Mark(ierr.ErrDatabase)}, nil)
		_, err := broken.HealthOffers(ctx, PersonRequest{PlanID: 10, Age: 30, Gender: domain.GenderMale})
		require.Error(t, err)
		assert.True(t, ierr.Is(err, ierr.ErrDatabase))
	})
}

func TestLifeOffers(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{life: []domain.LifeCandidate{{
		Rule: &domain.LifeRule{
			ID: 5, PlanID: 20, CompanyID: acme.ID, Gender: domain.GenderFemale, From: 18, To: 60, Persitage: dec("15"),
		},
		Company: acme,
	}}}
	svc := NewService(store, nil, nil)

	t.Run("WithBasePrice", func(t *testing.T) {
		offers, err := svc.LifeOffers(ctx, PersonRequest{
			PlanID: 20, Age: 30, Gender: domain.GenderFemale, BasePrice: decPtr("1000"),
		})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		require.NotNil(t, offers[0].FinalPrice)
		assert.Equal(t, "150.00", offers[0].FinalPrice.StringFixed(2))
	})

	t.Run("WithoutBasePrice", func(t *testing.T) {
		offers, err := svc.LifeOffers(ctx, PersonRequest{PlanID: 20, Age: 30, Gender: domain.GenderFemale})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Nil(t, offers[0].FinalPrice)
	})

	t.Run("NegativeBasePrice", func(t *testing.T) {
		_, err := svc.LifeOffers(ctx, PersonRequest{
			PlanID: 20, Age: 30, Gender: domain.GenderFemale, BasePrice: decPtr("-1"),
		})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestCarOffers(t *testing.T) {
	ctx := context.Background()
	model := int64(42)
	store := &fakeStore{car: []domain.CarCandidate{
		{
			Rule: &domain.CarRule{
				ID: 1, RuleType: domain.CarRuleRange, VehicleCondition: domain.VehicleUsed,
				PlanID: 30, CompanyID: acme.ID, Persitage: dec("15"), From: decPtr("0"), To: decPtr("5000"),
			},
			Company: acme,
		},
		{
			Rule: &domain.CarRule{
				ID: 2, RuleType: domain.CarRuleGroup, VehicleCondition: domain.VehicleUsed,
				PlanID: 30, CompanyID: zenith.ID, Persitage: dec("4"),
				Groups: []domain.CarRuleGroupEntry{{RuleID: 2, GroupName: "A", MakeID: 7, ModelID: &model, Year: 2020}},
			},
			Company: zenith,
		},
		{
			Rule: &domain.CarRule{
				ID: 3, RuleType: domain.CarRuleRange, VehicleCondition: domain.VehicleNew,
				PlanID: 30, CompanyID: acme.ID, Persitage: dec("1"), From: decPtr("0"), To: decPtr("5000"),
			},
			Company: acme,
		},
	}}
	svc := NewService(store, nil, nil)

	req := CarRequest{
		PlanID: 30, VehicleCondition: domain.VehicleUsed, MakeID: 7, ModelID: 42, Year: 2020, Price: dec("1000"),
	}

	t.Run("RangeAndGroup", func(t *testing.T) {
		offers, err := svc.CarOffers(ctx, req)
		require.NoError(t, err)
		require.Len(t, offers, 2)
		assert.Equal(t, int64(1), offers[0].RuleID)
		assert.Equal(t, "150.00", offers[0].FinalPrice.StringFixed(2))
		assert.Equal(t, int64(2), offers[1].RuleID)
		assert.Equal(t, "40.00", offers[1].FinalPrice.StringFixed(2))
	})

	t.Run("OtherModelSkipsGroup", func(t *testing.T) {
		other := req
		other.ModelID = 43
		offers, err := svc.CarOffers(ctx, other)
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, domain.CarRuleRange, offers[0].RuleType)
	})

	t.Run("NonPositivePrice", func(t *testing.T) {
		bad := req
		bad.Price = decimal.Zero
		_, err := svc.CarOffers(ctx, bad)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestFamilyHealthOffers(t *testing.T) {
	ctx := context.Background()

	t.Run("IncompleteCompanyExcluded", func(t *testing.T) {
		store := &fakeStore{health: []domain.HealthCandidate{
			healthCandidate(1, acme, domain.GenderMale, 30, 50, "100"),
			healthCandidate(2, acme, domain.GenderFemale, 60, 80, "300"),
			healthCandidate(3, zenith, domain.GenderMale, 30, 50, "80"),
		}}
		features := &fakeFeatures{}
		svc := NewService(store, features, nil)

		offers, err := svc.FamilyHealthOffers(ctx, FamilyRequest{
			PlanID: 10,
			Members: []rules.Member{
				{Age: 40, Gender: domain.GenderMale},
				{Age: 70, Gender: domain.GenderFemale},
			},
		})
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, acme.ID, offers[0].Company.ID)
		assert.True(t, offers[0].TotalPrice.Equal(dec("400")))
		assert.Equal(t, 1, features.calls)
	})

	t.Run("EmptyRosterSkipsStore", func(t *testing.T) {
		store := &fakeStore{}
		svc := NewService(store, nil, nil)

		_, err := svc.FamilyHealthOffers(ctx, FamilyRequest{PlanID: 10})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
		assert.Zero(t, store.calls)
	})
}
