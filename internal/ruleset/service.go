// Package ruleset coordinates rule writes: batch upserts of health and life
// rules, full car-rule upserts with group diffing, atomic bulk deletes and
// the grouped rules report.
package ruleset

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/metrics"
	"github.com/opensource-finance/brokerage/internal/rules"
)

var tracer = otel.Tracer("brokerage-ruleset")

// Service owns every rule mutation. Each public operation runs in a single
// transaction.
type Service struct {
	repo    domain.Repository
	metrics *metrics.Metrics
}

// NewService creates a rule service. m may be nil.
func NewService(repo domain.Repository, m *metrics.Metrics) *Service {
	return &Service{repo: repo, metrics: m}
}

// UpsertHealthRules creates or updates every rule of the batch atomically and
// returns the stored rules in request order.
func (s *Service) UpsertHealthRules(ctx context.Context, req UpsertHealthRulesRequest) ([]*domain.HealthRule, error) {
	ctx, span := tracer.Start(ctx, "ruleset.UpsertHealthRules",
		trace.WithAttributes(attribute.Int("rules.count", len(req.Rules))))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	ids := lo.FilterMap(req.Rules, func(in HealthRuleInput, _ int) (int64, bool) {
		return lo.FromPtr(in.ID), in.ID != nil
	})

	out := make([]*domain.HealthRule, 0, len(req.Rules))
	modes := make([]domain.UpsertMode, 0, len(req.Rules))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := requireIDs(ctx, "health rules", ids, tx.FindHealthRuleIDs); err != nil {
			return err
		}

		refs := newRefChecker(tx, domain.InsuranceHealth)
		for _, in := range req.Rules {
			if err := refs.check(ctx, in.PlanID, in.CompanyID); err != nil {
				return err
			}

			rule := &domain.HealthRule{
				PlanID:    in.PlanID,
				CompanyID: in.CompanyID,
				Gender:    in.Gender,
				From:      in.From,
				To:        in.To,
				Price:     in.Price,
			}
			if in.ID == nil {
				if err := tx.CreateHealthRule(ctx, rule); err != nil {
					return err
				}
				modes = append(modes, domain.ModeCreated)
			} else {
				existing, err := tx.GetHealthRule(ctx, *in.ID)
				if err != nil {
					return err
				}
				rule.ID = existing.ID
				rule.CreatedAt = existing.CreatedAt
				if err := tx.UpdateHealthRule(ctx, rule); err != nil {
					return err
				}
				modes = append(modes, domain.ModeUpdated)
			}
			out = append(out, rule)
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.recordUpserts(domain.InsuranceHealth, modes)
	slog.InfoContext(ctx, "health rules upserted", "count", len(out))
	return out, nil
}

// UpsertLifeRules creates or updates every rule of the batch atomically and
// returns the stored rules in request order.
func (s *Service) UpsertLifeRules(ctx context.Context, req UpsertLifeRulesRequest) ([]*domain.LifeRule, error) {
	ctx, span := tracer.Start(ctx, "ruleset.UpsertLifeRules",
		trace.WithAttributes(attribute.Int("rules.count", len(req.Rules))))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	ids := lo.FilterMap(req.Rules, func(in LifeRuleInput, _ int) (int64, bool) {
		return lo.FromPtr(in.ID), in.ID != nil
	})

	out := make([]*domain.LifeRule, 0, len(req.Rules))
	modes := make([]domain.UpsertMode, 0, len(req.Rules))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := requireIDs(ctx, "life rules", ids, tx.FindLifeRuleIDs); err != nil {
			return err
		}

		refs := newRefChecker(tx, domain.InsuranceLife)
		for _, in := range req.Rules {
			if err := refs.check(ctx, in.PlanID, in.CompanyID); err != nil {
				return err
			}

			rule := &domain.LifeRule{
				PlanID:    in.PlanID,
				CompanyID: in.CompanyID,
				Gender:    in.Gender,
				From:      in.From,
				To:        in.To,
				Persitage: in.Persitage,
			}
			if in.ID == nil {
				if err := tx.CreateLifeRule(ctx, rule); err != nil {
					return err
				}
				modes = append(modes, domain.ModeCreated)
			} else {
				existing, err := tx.GetLifeRule(ctx, *in.ID)
				if err != nil {
					return err
				}
				rule.ID = existing.ID
				rule.CreatedAt = existing.CreatedAt
				if err := tx.UpdateLifeRule(ctx, rule); err != nil {
					return err
				}
				modes = append(modes, domain.ModeUpdated)
			}
			out = append(out, rule)
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.recordUpserts(domain.InsuranceLife, modes)
	slog.InfoContext(ctx, "life rules upserted", "count", len(out))
	return out, nil
}

// UpsertCarRule creates or fully replaces one car rule. For GROUP rules only
// the entries not yet persisted are inserted, so replaying a request never
// grows the rule. Switching a GROUP rule to RANGE drops its entries.
func (s *Service) UpsertCarRule(ctx context.Context, req CarRuleInput) (*CarUpsertResult, error) {
	ctx, span := tracer.Start(ctx, "ruleset.UpsertCarRule",
		trace.WithAttributes(
			attribute.String("rule.type", string(req.RuleType)),
			attribute.String("vehicle.condition", string(req.VehicleCondition)),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	var wanted []domain.CarRuleGroupEntry
	switch req.RuleType {
	case domain.CarRuleRange:
		if len(req.Groups) > 0 {
			return nil, fail(span, ierr.NewError("range rule with groups").
				WithHint("a RANGE rule cannot carry groups").
				Mark(ierr.ErrIntegrity))
		}
	case domain.CarRuleGroup:
		entries, err := rules.FlattenGroups(0, req.Groups)
		if err != nil {
			return nil, fail(span, err)
		}
		wanted = entries
	}

	result := &CarUpsertResult{Mode: domain.ModeCreated}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := newRefChecker(tx, domain.InsuranceCar).check(ctx, req.PlanID, req.CompanyID); err != nil {
			return err
		}

		rule := &domain.CarRule{
			RuleType:         req.RuleType,
			VehicleCondition: req.VehicleCondition,
			PlanID:           req.PlanID,
			CompanyID:        req.CompanyID,
			Persitage:        req.Persitage,
		}
		if req.RuleType == domain.CarRuleRange {
			rule.From, rule.To = req.From, req.To
		}

		if req.ID == nil {
			if err := tx.CreateCarRule(ctx, rule); err != nil {
				return err
			}
		} else {
			existing, err := tx.GetCarRule(ctx, *req.ID)
			if err != nil {
				if ierr.IsNotFound(err) {
					return ierr.NewUnknownIDs("car rules", []int64{*req.ID})
				}
				return err
			}
			rule.ID = existing.ID
			rule.CreatedAt = existing.CreatedAt
			if err := tx.UpdateCarRule(ctx, rule); err != nil {
				return err
			}
			if existing.RuleType == domain.CarRuleGroup && rule.RuleType == domain.CarRuleRange {
				if _, err := tx.DeleteCarRuleGroupEntriesByRule(ctx, rule.ID); err != nil {
					return err
				}
			}
			result.Mode = domain.ModeUpdated
		}
		result.RuleID = rule.ID

		if rule.RuleType != domain.CarRuleGroup {
			return nil
		}

		for i := range wanted {
			wanted[i].RuleID = rule.ID
		}
		persisted, err := tx.ListCarRuleGroupEntries(ctx, rule.ID)
		if err != nil {
			return err
		}
		missing := rules.MissingEntries(wanted, persisted)
		if len(missing) == 0 {
			return nil
		}
		if err := tx.InsertCarRuleGroupEntries(ctx, missing); err != nil {
			return err
		}
		result.InsertedEntries = len(missing)
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.metrics.IncRuleUpsert(string(domain.InsuranceCar), string(result.Mode))
	slog.InfoContext(ctx, "car rule upserted",
		"rule_id", result.RuleID,
		"mode", result.Mode,
		"inserted_entries", result.InsertedEntries,
	)
	return result, nil
}

// DeleteHealthRules deletes every listed rule, or none when any id is unknown.
func (s *Service) DeleteHealthRules(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	return s.deleteAll(ctx, "health rules", req, func(tx domain.Store) (idFinder, idDeleter) {
		return tx.FindHealthRuleIDs, tx.DeleteHealthRules
	})
}

// DeleteLifeRules deletes every listed rule, or none when any id is unknown.
func (s *Service) DeleteLifeRules(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	return s.deleteAll(ctx, "life rules", req, func(tx domain.Store) (idFinder, idDeleter) {
		return tx.FindLifeRuleIDs, tx.DeleteLifeRules
	})
}

// DeleteCarRules deletes every listed rule and its group entries, or nothing
// when any id is unknown.
func (s *Service) DeleteCarRules(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	return s.deleteAll(ctx, "car rules", req, func(tx domain.Store) (idFinder, idDeleter) {
		return tx.FindCarRuleIDs, tx.DeleteCarRules
	})
}

// DeleteCarRuleGroupEntries deletes individual group entries. A delete that
// would leave a GROUP rule with no entries is rejected.
func (s *Service) DeleteCarRuleGroupEntries(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "ruleset.DeleteCarRuleGroupEntries",
		trace.WithAttributes(attribute.Int("ids.count", len(req.IDs))))
	defer span.End()

	if err := validateDelete(&req); err != nil {
		return nil, fail(span, err)
	}
	ids := lo.Uniq(req.IDs)

	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		found, err := tx.FindCarRuleGroupEntries(ctx, ids)
		if err != nil {
			return err
		}
		foundIDs := lo.Map(found, func(e domain.CarRuleGroupEntry, _ int) int64 { return e.ID })
		if missing := lo.Without(ids, foundIDs...); len(missing) > 0 {
			return ierr.NewUnknownIDs("car rule group entries", missing)
		}

		perRule := lo.CountValuesBy(found, func(e domain.CarRuleGroupEntry) int64 { return e.RuleID })
		for _, ruleID := range lo.Keys(perRule) {
			total, err := tx.CountCarRuleGroupEntries(ctx, ruleID)
			if err != nil {
				return err
			}
			if total <= perRule[ruleID] {
				return ierr.NewErrorf("rule %d would have no group entries", ruleID).
					WithHintf("car rule %d must keep at least one group entry; delete the rule instead", ruleID).
					Mark(ierr.ErrIntegrity)
			}
		}

		deleted, err = tx.DeleteCarRuleGroupEntries(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.metrics.AddRulesDeleted("car_rule_group_entries", deleted)
	slog.InfoContext(ctx, "car rule group entries deleted", "count", deleted)
	return &DeleteResult{Deleted: deleted}, nil
}

// GetAllRules returns every rule, grouped for display.
func (s *Service) GetAllRules(ctx context.Context, filter domain.RuleFilter) (rules.RulesReport, error) {
	ctx, span := tracer.Start(ctx, "ruleset.GetAllRules")
	defer span.End()

	health, err := s.repo.ListHealthRules(ctx, filter)
	if err != nil {
		return rules.RulesReport{}, fail(span, err)
	}
	life, err := s.repo.ListLifeRules(ctx, filter)
	if err != nil {
		return rules.RulesReport{}, fail(span, err)
	}
	car, err := s.repo.ListCarRules(ctx, filter)
	if err != nil {
		return rules.RulesReport{}, fail(span, err)
	}
	return rules.ProjectRules(health, life, car), nil
}

type (
	idFinder  func(ctx context.Context, ids []int64) ([]int64, error)
	idDeleter func(ctx context.Context, ids []int64) (int64, error)
)

func (s *Service) deleteAll(ctx context.Context, entity string, req DeleteRequest, ops func(domain.Store) (idFinder, idDeleter)) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "ruleset.Delete",
		trace.WithAttributes(
			attribute.String("entity", entity),
			attribute.Int("ids.count", len(req.IDs)),
		))
	defer span.End()

	if err := validateDelete(&req); err != nil {
		return nil, fail(span, err)
	}
	ids := lo.Uniq(req.IDs)

	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		find, del := ops(tx)
		if err := requireIDs(ctx, entity, ids, find); err != nil {
			return err
		}
		var err error
		deleted, err = del(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.metrics.AddRulesDeleted(entity, deleted)
	slog.InfoContext(ctx, "rules deleted", "entity", entity, "count", deleted)
	return &DeleteResult{Deleted: deleted}, nil
}

func (s *Service) recordUpserts(insuranceType domain.InsuranceType, modes []domain.UpsertMode) {
	for _, m := range modes {
		s.metrics.IncRuleUpsert(string(insuranceType), string(m))
	}
}

// requireIDs fails with every id of ids that find does not return.
func requireIDs(ctx context.Context, entity string, ids []int64, find idFinder) error {
	if len(ids) == 0 {
		return nil
	}
	ids = lo.Uniq(ids)
	found, err := find(ctx, ids)
	if err != nil {
		return err
	}
	if missing := lo.Without(ids, found...); len(missing) > 0 {
		return ierr.NewUnknownIDs(entity, missing)
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
