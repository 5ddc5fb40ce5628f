package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HealthDocumentType distinguishes single-person and group health documents.
type HealthDocumentType string

const (
	HealthIndividual HealthDocumentType = "INDIVIDUAL"
	HealthGroup      HealthDocumentType = "GROUP"
)

// Document is an issued insurance document. Exactly one of Car, Life or
// Health is set, according to InsuranceType.
type Document struct {
	ID             int64         `json:"id"`
	DocumentNumber string        `json:"documentNumber"`
	InsuranceType  InsuranceType `json:"insuranceType"`
	UserID         int64         `json:"userId"`
	PlanID         int64         `json:"planId"`
	CompanyID      int64         `json:"companyId"`
	Paid           bool          `json:"paid"`
	PaidKey        string        `json:"paidKey,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`

	Car    *CarDocumentInfo    `json:"carInfo,omitempty"`
	Life   *LifeDocumentInfo   `json:"lifeInfo,omitempty"`
	Health *HealthDocumentInfo `json:"healthInfo,omitempty"`
}

// CarDocumentInfo snapshots the car rule pricing at issuance.
type CarDocumentInfo struct {
	RuleID           int64            `json:"ruleId"`
	VehicleCondition VehicleCondition `json:"vehicleCondition"`
	MakeID           int64            `json:"makeId"`
	ModelID          int64            `json:"modelId"`
	Year             int              `json:"year"`
	Price            decimal.Decimal  `json:"price"`
	Persitage        decimal.Decimal  `json:"persitage"`
	FinalPrice       decimal.Decimal  `json:"finalPrice"`
}

// LifeDocumentInfo snapshots the life rule pricing at issuance.
type LifeDocumentInfo struct {
	RuleID     int64           `json:"ruleId"`
	Price      decimal.Decimal `json:"price"`
	Persitage  decimal.Decimal `json:"persitage"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

// HealthDocumentInfo holds the priced members of a health document.
type HealthDocumentInfo struct {
	Type       HealthDocumentType `json:"type"`
	GroupName  string             `json:"groupName,omitempty"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	Members    []DocumentMember   `json:"members"`
}

// DocumentMember is one insured person on a health document.
type DocumentMember struct {
	ID     int64           `json:"id"`
	RuleID int64           `json:"ruleId"`
	Age    int             `json:"age"`
	Gender Gender          `json:"gender"`
	Price  decimal.Decimal `json:"price"`
}

// DocumentEvent is published on the event bus after a document write commits.
type DocumentEvent struct {
	DocumentID     int64           `json:"documentId"`
	DocumentNumber string          `json:"documentNumber"`
	UserID         int64           `json:"userId"`
	InsuranceType  InsuranceType   `json:"insuranceType"`
	CompanyID      int64           `json:"companyId"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Paid           bool            `json:"paid"`
}

// DocumentFilter narrows a document listing. Zero values match everything.
type DocumentFilter struct {
	UserID        int64
	CompanyID     int64
	PlanID        int64
	InsuranceType InsuranceType
	Paid          *bool
}

// Paging defaults.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Normalize fills in the first page and the default size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	return p
}

// Offset is the number of rows skipped before the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// Page is one page of a listing with the total row count.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	TotalPages int `json:"totalPages"`
}

// NewPage wraps rows fetched for req.
func NewPage[T any](rows []T, total int, req PageRequest) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{
		Data:       rows,
		Total:      total,
		Page:       req.Page,
		Size:       req.Size,
		TotalPages: (total + req.Size - 1) / req.Size,
	}
}
