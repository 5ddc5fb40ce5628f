package rules

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// Member is one person of a family or group roster.
type Member struct {
	Age    int           `json:"age" validate:"min=0,max=150"`
	Gender domain.Gender `json:"gender" validate:"required,oneof=MALE FEMALE"`
}

// MemberPrice is the price chosen for one member at one company.
type MemberPrice struct {
	Age    int             `json:"age"`
	Gender domain.Gender   `json:"gender"`
	Price  decimal.Decimal `json:"price"`
	RuleID int64           `json:"ruleId"`
}

// FamilyOffer is a company that covers every member of a roster.
type FamilyOffer struct {
	Company    domain.Company  `json:"company"`
	Members    []MemberPrice   `json:"members"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// FamilyQuery is a roster to price under one health plan.
type FamilyQuery struct {
	PlanID        int64
	CompanyFilter string
	Members       []Member
}

type companyBuilder struct {
	company domain.Company
	prices  []*MemberPrice // indexed by member position
}

// AggregateFamily prices a roster per company. A company is offered only when
// every member has at least one eligible rule there; each member takes the
// cheapest eligible rule, ties broken by the lowest rule id. Offers are
// ordered by total price then company id.
func AggregateFamily(q FamilyQuery, candidates []domain.HealthCandidate) ([]FamilyOffer, error) {
	if len(q.Members) == 0 {
		return nil, ierr.NewError("members must not be empty").
			WithHint("provide at least one member").
			Mark(ierr.ErrValidation)
	}

	builders := make(map[int64]*companyBuilder)
	for i, m := range q.Members {
		matches := MatchHealth(PersonQuery{
			PlanID:        q.PlanID,
			Age:           m.Age,
			Gender:        m.Gender,
			CompanyFilter: q.CompanyFilter,
		}, candidates)

		for _, c := range matches {
			b, ok := builders[c.Company.ID]
			if !ok {
				b = &companyBuilder{company: c.Company, prices: make([]*MemberPrice, len(q.Members))}
				builders[c.Company.ID] = b
			}
			price := FlatPremium(c.Rule.Price)
			current := b.prices[i]
			if current == nil || cheaper(price, c.Rule.ID, current) {
				b.prices[i] = &MemberPrice{Age: m.Age, Gender: m.Gender, Price: price, RuleID: c.Rule.ID}
			}
		}
	}

	offers := make([]FamilyOffer, 0, len(builders))
	for _, b := range builders {
		if offer, complete := b.offer(); complete {
			offers = append(offers, offer)
		}
	}

	slices.SortFunc(offers, func(a, b FamilyOffer) int {
		return cmp.Or(
			a.TotalPrice.Cmp(b.TotalPrice),
			cmp.Compare(a.Company.ID, b.Company.ID),
		)
	})
	return offers, nil
}

func cheaper(price decimal.Decimal, ruleID int64, current *MemberPrice) bool {
	if c := price.Cmp(current.Price); c != 0 {
		return c < 0
	}
	return ruleID < current.RuleID
}

func (b *companyBuilder) offer() (FamilyOffer, bool) {
	offer := FamilyOffer{Company: b.company, Members: make([]MemberPrice, 0, len(b.prices))}
	for _, p := range b.prices {
		if p == nil {
			return FamilyOffer{}, false
		}
		offer.Members = append(offer.Members, *p)
		offer.TotalPrice = offer.TotalPrice.Add(p.Price)
	}
	return offer, true
}
