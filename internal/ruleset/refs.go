package ruleset

import (
	"context"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// refChecker verifies plan and company references inside a transaction,
// remembering what it already saw.
type refChecker struct {
	tx            domain.Store
	insuranceType domain.InsuranceType
	plans         map[int64]struct{}
	companies     map[int64]struct{}
}

func newRefChecker(tx domain.Store, insuranceType domain.InsuranceType) *refChecker {
	return &refChecker{
		tx:            tx,
		insuranceType: insuranceType,
		plans:         make(map[int64]struct{}),
		companies:     make(map[int64]struct{}),
	}
}

func (r *refChecker) check(ctx context.Context, planID, companyID int64) error {
	if _, ok := r.plans[planID]; !ok {
		plan, err := r.tx.GetPlan(ctx, planID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return ierr.WithError(err).
					WithHintf("plan %d does not exist", planID).
					Mark(ierr.ErrNotFound)
			}
			return err
		}
		if plan.InsuranceType != r.insuranceType {
			return ierr.NewErrorf("plan %d is %s", planID, plan.InsuranceType).
				WithHintf("plan %d is a %s plan and cannot hold %s rules", planID, plan.InsuranceType, r.insuranceType).
				Mark(ierr.ErrIntegrity)
		}
		r.plans[planID] = struct{}{}
	}

	if _, ok := r.companies[companyID]; !ok {
		if _, err := r.tx.GetCompany(ctx, companyID); err != nil {
			if ierr.IsNotFound(err) {
				return ierr.WithError(err).
					WithHintf("company %d does not exist", companyID).
					Mark(ierr.ErrNotFound)
			}
			return err
		}
		r.companies[companyID] = struct{}{}
	}
	return nil
}

func validateDelete(req *DeleteRequest) error {
	if len(req.IDs) == 0 {
		return validator.Field("ids", "must not be empty")
	}
	return validator.ValidateRequest(req)
}
