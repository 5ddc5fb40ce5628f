// Package quote answers "which companies can insure this?" for each
// insurance type. Rules are read fresh on every request; only company and
// plan display data goes through the catalog cache.
package quote

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/metrics"
	"github.com/opensource-finance/brokerage/internal/rules"
)

var tracer = otel.Tracer("brokerage-quote")

// CandidateStore loads rules joined with their companies.
type CandidateStore interface {
	ListHealthCandidates(ctx context.Context, planID int64) ([]domain.HealthCandidate, error)
	ListLifeCandidates(ctx context.Context, planID int64) ([]domain.LifeCandidate, error)
	ListCarCandidates(ctx context.Context, planID int64, condition domain.VehicleCondition) ([]domain.CarCandidate, error)
}

// FeatureSource returns the features a company lists for a plan.
type FeatureSource interface {
	Features(ctx context.Context, companyID, planID int64) ([]string, error)
}

// Service produces offers.
type Service struct {
	store    CandidateStore
	features FeatureSource
	metrics  *metrics.Metrics
}

// NewService creates a quote service. m may be nil.
func NewService(store CandidateStore, features FeatureSource, m *metrics.Metrics) *Service {
	return &Service{store: store, features: features, metrics: m}
}

// HealthOffers lists every health rule covering the applicant, priced flat.
func (s *Service) HealthOffers(ctx context.Context, req PersonRequest) ([]HealthOffer, error) {
	ctx, span := s.start(ctx, "quote.HealthOffers", domain.InsuranceHealth, req.PlanID)
	defer span.End()
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	candidates, err := s.store.ListHealthCandidates(ctx, req.PlanID)
	if err != nil {
		return nil, fail(span, err)
	}
	matched := rules.MatchHealth(req.query(), candidates)

	views := newViewSet(s.features, req.PlanID)
	offers := make([]HealthOffer, 0, len(matched))
	for _, c := range matched {
		company, err := views.get(ctx, c.Company)
		if err != nil {
			return nil, fail(span, err)
		}
		offers = append(offers, HealthOffer{
			RuleID:  c.Rule.ID,
			PlanID:  c.Rule.PlanID,
			Company: company,
			Gender:  c.Rule.Gender,
			From:    c.Rule.From,
			To:      c.Rule.To,
			Price:   rules.FlatPremium(c.Rule.Price),
		})
	}

	s.finish(ctx, span, domain.InsuranceHealth, len(offers), started)
	return offers, nil
}

// LifeOffers lists every life rule covering the applicant. Offers carry a
// final price only when the request has a base price.
func (s *Service) LifeOffers(ctx context.Context, req PersonRequest) ([]LifeOffer, error) {
	ctx, span := s.start(ctx, "quote.LifeOffers", domain.InsuranceLife, req.PlanID)
	defer span.End()
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	candidates, err := s.store.ListLifeCandidates(ctx, req.PlanID)
	if err != nil {
		return nil, fail(span, err)
	}
	matched := rules.MatchLife(req.query(), candidates)

	views := newViewSet(s.features, req.PlanID)
	offers := make([]LifeOffer, 0, len(matched))
	for _, c := range matched {
		company, err := views.get(ctx, c.Company)
		if err != nil {
			return nil, fail(span, err)
		}
		offer := LifeOffer{
			RuleID:    c.Rule.ID,
			PlanID:    c.Rule.PlanID,
			Company:   company,
			Gender:    c.Rule.Gender,
			From:      c.Rule.From,
			To:        c.Rule.To,
			Persitage: c.Rule.Persitage,
		}
		if req.BasePrice != nil {
			offer.FinalPrice = lo.ToPtr(rules.PercentagePremium(*req.BasePrice, c.Rule.Persitage))
		}
		offers = append(offers, offer)
	}

	s.finish(ctx, span, domain.InsuranceLife, len(offers), started)
	return offers, nil
}

// CarOffers lists every car rule covering the vehicle, priced against its
// purchase price.
func (s *Service) CarOffers(ctx context.Context, req CarRequest) ([]CarOffer, error) {
	ctx, span := s.start(ctx, "quote.CarOffers", domain.InsuranceCar, req.PlanID)
	defer span.End()
	span.SetAttributes(attribute.String("vehicle.condition", string(req.VehicleCondition)))
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	candidates, err := s.store.ListCarCandidates(ctx, req.PlanID, req.VehicleCondition)
	if err != nil {
		return nil, fail(span, err)
	}
	matched := rules.MatchCar(req.query(), candidates)

	views := newViewSet(s.features, req.PlanID)
	offers := make([]CarOffer, 0, len(matched))
	for _, c := range matched {
		company, err := views.get(ctx, c.Company)
		if err != nil {
			return nil, fail(span, err)
		}
		offers = append(offers, CarOffer{
			RuleID:           c.Rule.ID,
			PlanID:           c.Rule.PlanID,
			Company:          company,
			RuleType:         c.Rule.RuleType,
			VehicleCondition: c.Rule.VehicleCondition,
			Persitage:        c.Rule.Persitage,
			FinalPrice:       rules.PercentagePremium(req.Price, c.Rule.Persitage),
		})
	}

	s.finish(ctx, span, domain.InsuranceCar, len(offers), started)
	return offers, nil
}

// FamilyHealthOffers lists the companies covering every member of the
// roster, cheapest total first.
func (s *Service) FamilyHealthOffers(ctx context.Context, req FamilyRequest) ([]FamilyOffer, error) {
	ctx, span := s.start(ctx, "quote.FamilyHealthOffers", domain.InsuranceHealth, req.PlanID)
	defer span.End()
	span.SetAttributes(attribute.Int("members.count", len(req.Members)))
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	candidates, err := s.store.ListHealthCandidates(ctx, req.PlanID)
	if err != nil {
		return nil, fail(span, err)
	}
	aggregated, err := rules.AggregateFamily(rules.FamilyQuery{
		PlanID:        req.PlanID,
		CompanyFilter: req.CompanyFilter,
		Members:       req.Members,
	}, candidates)
	if err != nil {
		return nil, fail(span, err)
	}

	views := newViewSet(s.features, req.PlanID)
	offers := make([]FamilyOffer, 0, len(aggregated))
	for _, a := range aggregated {
		company, err := views.get(ctx, a.Company)
		if err != nil {
			return nil, fail(span, err)
		}
		offers = append(offers, FamilyOffer{
			Company:    company,
			Members:    a.Members,
			TotalPrice: a.TotalPrice,
		})
	}

	s.finish(ctx, span, "family", len(offers), started)
	return offers, nil
}

func (s *Service) start(ctx context.Context, name string, insuranceType domain.InsuranceType, planID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("insurance.type", string(insuranceType)),
			attribute.Int64("plan.id", planID),
		))
}

func (s *Service) finish(ctx context.Context, span trace.Span, insuranceType domain.InsuranceType, offers int, started time.Time) {
	elapsed := time.Since(started)
	span.SetAttributes(attribute.Int("offers.count", offers))
	s.metrics.ObserveQuote(string(insuranceType), offers, elapsed)
	slog.DebugContext(ctx, "offers computed",
		"insurance_type", insuranceType,
		"offers", offers,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// viewSet builds each company's view once per request.
type viewSet struct {
	features FeatureSource
	planID   int64
	views    map[int64]CompanyView
}

func newViewSet(features FeatureSource, planID int64) *viewSet {
	return &viewSet{features: features, planID: planID, views: make(map[int64]CompanyView)}
}

func (v *viewSet) get(ctx context.Context, c domain.Company) (CompanyView, error) {
	if view, ok := v.views[c.ID]; ok {
		return view, nil
	}
	view := CompanyView{
		ID:          c.ID,
		Name:        c.Name,
		Logo:        c.Logo,
		CompanyType: c.CompanyType,
		Features:    []string{},
	}
	if v.features != nil {
		features, err := v.features.Features(ctx, c.ID, v.planID)
		if err != nil {
			return CompanyView{}, err
		}
		view.Features = features
	}
	v.views[c.ID] = view
	return view, nil
}
