package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

func TestAggregateFamily(t *testing.T) {
	cands := []domain.HealthCandidate{
		// Acme covers both members
		healthCandidate(1, acme, domain.GenderMale, 30, 50, "200"),
		healthCandidate(2, acme, domain.GenderFemale, 60, 80, "300"),
		healthCandidate(3, acme, domain.GenderFemale, 65, 75, "250"),
		// Zenith has no rule for a 70 year old woman
		healthCandidate(4, zenith, domain.GenderMale, 30, 50, "100"),
		healthCandidate(5, zenith, domain.GenderFemale, 0, 60, "50"),
	}
	members := []Member{
		{Age: 40, Gender: domain.GenderMale},
		{Age: 70, Gender: domain.GenderFemale},
	}

	t.Run("IncompleteCompanyExcluded", func(t *testing.T) {
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, Members: members}, cands)
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, acme.ID, offers[0].Company.ID)
	})

	t.Run("CheapestRulePerMember", func(t *testing.T) {
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, Members: members}, cands)
		require.NoError(t, err)
		require.Len(t, offers, 1)

		got := offers[0]
		require.Len(t, got.Members, 2)
		assert.Equal(t, int64(1), got.Members[0].RuleID)
		assert.Equal(t, int64(3), got.Members[1].RuleID)
		assert.True(t, got.TotalPrice.Equal(dec("450")), "total %s", got.TotalPrice)
	})

	t.Run("TieBrokenByLowestRuleID", func(t *testing.T) {
		tied := []domain.HealthCandidate{
			healthCandidate(8, acme, domain.GenderMale, 0, 99, "100"),
			healthCandidate(6, acme, domain.GenderMale, 0, 99, "100"),
		}
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, Members: members[:1]}, tied)
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, int64(6), offers[0].Members[0].RuleID)
	})

	t.Run("OrderedByTotalPrice", func(t *testing.T) {
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, Members: members[:1]}, cands)
		require.NoError(t, err)
		require.Len(t, offers, 2)
		assert.Equal(t, zenith.ID, offers[0].Company.ID)
		assert.Equal(t, acme.ID, offers[1].Company.ID)
	})

	t.Run("CompanyFilter", func(t *testing.T) {
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, CompanyFilter: "BROKER", Members: members[:1]}, cands)
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, zenith.ID, offers[0].Company.ID)
	})

	t.Run("EmptyMembers", func(t *testing.T) {
		_, err := AggregateFamily(FamilyQuery{PlanID: 10}, cands)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("NoCoverage", func(t *testing.T) {
		offers, err := AggregateFamily(FamilyQuery{PlanID: 10, Members: []Member{{Age: 120, Gender: domain.GenderMale}}}, cands)
		require.NoError(t, err)
		assert.Empty(t, offers)
	})
}
