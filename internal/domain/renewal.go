package domain

import "time"

// RenewalRequest asks for an issued document to be renewed. A paid key marks
// it paid; confirmation is set by the back office.
type RenewalRequest struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"documentId"`
	UserID     int64     `json:"userId"`
	Confirmed  bool      `json:"confirmed"`
	Paid       bool      `json:"paid"`
	PaidKey    string    `json:"paidKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RenewalFilter narrows a renewal listing. Zero values match everything.
type RenewalFilter struct {
	UserID     int64
	DocumentID int64
	Confirmed  *bool
	Paid       *bool
}

// RefundStatus is the review state of a refund request.
type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundRejected RefundStatus = "REJECTED"
)

// RefundRequest is a claim against an issued car document. Image fields
// hold references to documents stored elsewhere.
type RefundRequest struct {
	ID           int64        `json:"id"`
	DocumentID   int64        `json:"documentId"`
	UserID       int64        `json:"userId"`
	CarNumber    string       `json:"carNumber"`
	Description  string       `json:"description"`
	IDImage      string       `json:"idImage,omitempty"`
	CarLicence   string       `json:"carLicence,omitempty"`
	DriveLicence string       `json:"driveLicence,omitempty"`
	Status       RefundStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// RefundFilter narrows a refund listing. Zero values match everything.
type RefundFilter struct {
	UserID     int64
	DocumentID int64
	Status     RefundStatus
}
