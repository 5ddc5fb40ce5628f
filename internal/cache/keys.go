package cache

import (
	"strconv"
	"time"
)

// DefaultCatalogTTL is used when no catalog TTL is configured.
const DefaultCatalogTTL = 5 * time.Minute

// PlanKey is the cache key of one plan.
func PlanKey(id int64) string {
	return "catalog:plan:" + strconv.FormatInt(id, 10)
}

// CompanyKey is the cache key of one company.
func CompanyKey(id int64) string {
	return "catalog:company:" + strconv.FormatInt(id, 10)
}

// FeaturesKey is the cache key of the features a company lists for a plan.
func FeaturesKey(companyID, planID int64) string {
	return "catalog:features:" + strconv.FormatInt(companyID, 10) + ":" + strconv.FormatInt(planID, 10)
}

// CatalogKeys lists the keys a change to the plan or company makes stale.
// Zero ids are skipped; the features key needs both.
func CatalogKeys(planID, companyID int64) []string {
	var keys []string
	if planID != 0 {
		keys = append(keys, PlanKey(planID))
	}
	if companyID != 0 {
		keys = append(keys, CompanyKey(companyID))
	}
	if planID != 0 && companyID != 0 {
		keys = append(keys, FeaturesKey(companyID, planID))
	}
	return keys
}
