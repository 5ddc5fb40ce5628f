// Package catalog resolves plans, companies and company plan features,
// caching them in front of the repository. Rule data never passes through
// here.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/opensource-finance/brokerage/internal/cache"
	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

// Reader is the slice of the store the catalog reads from.
type Reader interface {
	GetPlan(ctx context.Context, id int64) (*domain.Plan, error)
	GetCompany(ctx context.Context, id int64) (*domain.Company, error)
	GetCompanyPlan(ctx context.Context, companyID, planID int64) (*domain.CompanyPlan, error)
}

// Writer is the slice of the store catalog updates go to.
type Writer interface {
	SavePlan(ctx context.Context, plan *domain.Plan) error
	SaveCompany(ctx context.Context, company *domain.Company) error
	SaveCompanyPlan(ctx context.Context, cp *domain.CompanyPlan) error
}

// Store is everything the catalog needs from the repository.
type Store interface {
	Reader
	Writer
}

// Catalog is a read-through cache over a Store. Cache failures fall back to
// the store.
type Catalog struct {
	store Store
	cache domain.Cache
	ttl   time.Duration
}

// New creates a catalog. A nil kv disables caching.
func New(store Store, kv domain.Cache, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = cache.DefaultCatalogTTL
	}
	return &Catalog{store: store, cache: kv, ttl: ttl}
}

// Plan returns the plan with id.
func (c *Catalog) Plan(ctx context.Context, id int64) (*domain.Plan, error) {
	var plan domain.Plan
	err := c.cached(ctx, cache.PlanKey(id), &plan, func() (any, error) {
		return c.store.GetPlan(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// Company returns the company with id.
func (c *Catalog) Company(ctx context.Context, id int64) (*domain.Company, error) {
	var company domain.Company
	err := c.cached(ctx, cache.CompanyKey(id), &company, func() (any, error) {
		return c.store.GetCompany(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// Features returns the features a company lists for a plan. A company with
// no feature row has none.
func (c *Catalog) Features(ctx context.Context, companyID, planID int64) ([]string, error) {
	var features []string
	err := c.cached(ctx, cache.FeaturesKey(companyID, planID), &features, func() (any, error) {
		cp, err := c.store.GetCompanyPlan(ctx, companyID, planID)
		if ierr.IsNotFound(err) {
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		return cp.Features, nil
	})
	if err != nil {
		return nil, err
	}
	if features == nil {
		features = []string{}
	}
	return features, nil
}

// SavePlan creates or replaces a plan and drops its cached copy.
func (c *Catalog) SavePlan(ctx context.Context, req PlanRequest) (*domain.Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	plan := &domain.Plan{ID: req.ID, Name: req.Name, InsuranceType: req.InsuranceType}
	if err := c.store.SavePlan(ctx, plan); err != nil {
		return nil, err
	}
	c.Invalidate(ctx, plan.ID, 0)
	slog.InfoContext(ctx, "plan saved", "plan_id", plan.ID, "insurance_type", plan.InsuranceType)
	return plan, nil
}

// SaveCompany creates or replaces a company and drops its cached copy.
func (c *Catalog) SaveCompany(ctx context.Context, req CompanyRequest) (*domain.Company, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	company := &domain.Company{ID: req.ID, Name: req.Name, Logo: req.Logo, CompanyType: req.CompanyType}
	if err := c.store.SaveCompany(ctx, company); err != nil {
		return nil, err
	}
	c.Invalidate(ctx, 0, company.ID)
	slog.InfoContext(ctx, "company saved", "company_id", company.ID)
	return company, nil
}

// SetFeatures replaces the features a company lists for a plan. Both must
// exist.
func (c *Catalog) SetFeatures(ctx context.Context, companyID, planID int64, req FeaturesRequest) (*domain.CompanyPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := c.Company(ctx, companyID); err != nil {
		return nil, err
	}
	if _, err := c.Plan(ctx, planID); err != nil {
		return nil, err
	}

	cp := &domain.CompanyPlan{CompanyID: companyID, PlanID: planID, Features: lo.Uniq(req.Features)}
	if err := c.store.SaveCompanyPlan(ctx, cp); err != nil {
		return nil, err
	}
	c.Invalidate(ctx, planID, companyID)
	return cp, nil
}

// Invalidate drops the cached plan, company and features for the ids given.
// Zero ids are skipped.
func (c *Catalog) Invalidate(ctx context.Context, planID, companyID int64) {
	if c.cache == nil {
		return
	}
	keys := cache.CatalogKeys(planID, companyID)
	for _, k := range keys {
		if err := c.cache.Delete(ctx, k); err != nil {
			slog.WarnContext(ctx, "catalog cache delete failed", "key", k, "error", err)
		}
	}
}

// cached decodes key into dst, or loads, stores and decodes the value.
func (c *Catalog) cached(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if c.cache != nil {
		data, err := c.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
		} else if data != nil && json.Unmarshal(data, dst) == nil {
			return nil
		}
	}

	value, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return ierr.WithError(err).WithMessage("encode catalog entry").Mark(ierr.ErrSystem)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return ierr.WithError(err).WithMessage("decode catalog entry").Mark(ierr.ErrSystem)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			slog.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
		}
	}
	return nil
}
