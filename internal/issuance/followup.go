package issuance

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/validator"
)

// RenewalInput requests renewal of an issued document.
type RenewalInput struct {
	DocumentID int64  `json:"documentId" validate:"required,gt=0"`
	PaidKey    string `json:"paidKey,omitempty"`
}

// RenewalPatch changes a renewal request. Nil fields are left as stored.
type RenewalPatch struct {
	Confirmed *bool   `json:"confirmed,omitempty"`
	Paid      *bool   `json:"paid,omitempty"`
	PaidKey   *string `json:"paidKey,omitempty"`
}

// RefundInput files a refund claim against an issued document.
type RefundInput struct {
	DocumentID   int64  `json:"documentId" validate:"required,gt=0"`
	CarNumber    string `json:"carNumber" validate:"required"`
	Description  string `json:"description" validate:"required"`
	IDImage      string `json:"idImage,omitempty"`
	CarLicence   string `json:"carLicence,omitempty"`
	DriveLicence string `json:"driveLicence,omitempty"`
}

// RefundPatch reviews or amends a refund request. Empty image references
// keep the stored ones.
type RefundPatch struct {
	Status       *domain.RefundStatus `json:"status,omitempty" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
	Description  *string              `json:"description,omitempty"`
	IDImage      string               `json:"idImage,omitempty"`
	CarLicence   string               `json:"carLicence,omitempty"`
	DriveLicence string               `json:"driveLicence,omitempty"`
}

// CreateRenewal records a renewal request by userID. The document must exist.
func (s *Service) CreateRenewal(ctx context.Context, userID int64, in RenewalInput) (*domain.RenewalRequest, error) {
	ctx, span := tracer.Start(ctx, "issuance.CreateRenewal",
		trace.WithAttributes(attribute.Int64("document.id", in.DocumentID)))
	defer span.End()

	if err := validator.ValidateRequest(&in); err != nil {
		return nil, fail(span, err)
	}

	r := &domain.RenewalRequest{DocumentID: in.DocumentID, UserID: userID}
	if in.PaidKey != "" {
		r.Paid, r.PaidKey = true, in.PaidKey
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := requireDocument(ctx, tx, in.DocumentID); err != nil {
			return err
		}
		return tx.CreateRenewal(ctx, r)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	slog.InfoContext(ctx, "renewal requested",
		"renewal_id", r.ID,
		"document_id", r.DocumentID,
		"paid", r.Paid,
	)
	return r, nil
}

// UpdateRenewal applies patch. A paid key marks the renewal paid.
func (s *Service) UpdateRenewal(ctx context.Context, id int64, patch RenewalPatch) (*domain.RenewalRequest, error) {
	ctx, span := tracer.Start(ctx, "issuance.UpdateRenewal",
		trace.WithAttributes(attribute.Int64("renewal.id", id)))
	defer span.End()

	var r *domain.RenewalRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		stored, err := tx.GetRenewal(ctx, id)
		if err != nil {
			return err
		}
		if patch.Confirmed != nil {
			stored.Confirmed = *patch.Confirmed
		}
		if patch.Paid != nil {
			stored.Paid = *patch.Paid
		}
		if patch.PaidKey != nil {
			stored.PaidKey = *patch.PaidKey
			if stored.PaidKey != "" {
				stored.Paid = true
			}
		}
		if err := tx.UpdateRenewal(ctx, stored); err != nil {
			return err
		}
		r = stored
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	slog.InfoContext(ctx, "renewal updated",
		"renewal_id", r.ID,
		"confirmed", r.Confirmed,
		"paid", r.Paid,
	)
	return r, nil
}

// ListRenewals returns one page of renewal requests, newest first.
func (s *Service) ListRenewals(ctx context.Context, filter domain.RenewalFilter, req domain.PageRequest) (domain.Page[*domain.RenewalRequest], error) {
	req, err := pageOf(req)
	if err != nil {
		return domain.Page[*domain.RenewalRequest]{}, err
	}
	rows, total, err := s.repo.ListRenewals(ctx, filter, req)
	if err != nil {
		return domain.Page[*domain.RenewalRequest]{}, err
	}
	return domain.NewPage(rows, total, req), nil
}

// CreateRefund records a pending refund claim by userID. The document must
// exist.
func (s *Service) CreateRefund(ctx context.Context, userID int64, in RefundInput) (*domain.RefundRequest, error) {
	ctx, span := tracer.Start(ctx, "issuance.CreateRefund",
		trace.WithAttributes(attribute.Int64("document.id", in.DocumentID)))
	defer span.End()

	if err := validator.ValidateRequest(&in); err != nil {
		return nil, fail(span, err)
	}

	r := &domain.RefundRequest{
		DocumentID:   in.DocumentID,
		UserID:       userID,
		CarNumber:    in.CarNumber,
		Description:  in.Description,
		IDImage:      in.IDImage,
		CarLicence:   in.CarLicence,
		DriveLicence: in.DriveLicence,
		Status:       domain.RefundPending,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := requireDocument(ctx, tx, in.DocumentID); err != nil {
			return err
		}
		return tx.CreateRefund(ctx, r)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	slog.InfoContext(ctx, "refund requested",
		"refund_id", r.ID,
		"document_id", r.DocumentID,
	)
	return r, nil
}

// UpdateRefund applies patch.
func (s *Service) UpdateRefund(ctx context.Context, id int64, patch RefundPatch) (*domain.RefundRequest, error) {
	ctx, span := tracer.Start(ctx, "issuance.UpdateRefund",
		trace.WithAttributes(attribute.Int64("refund.id", id)))
	defer span.End()

	if err := validator.ValidateRequest(&patch); err != nil {
		return nil, fail(span, err)
	}

	var r *domain.RefundRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		stored, err := tx.GetRefund(ctx, id)
		if err != nil {
			return err
		}
		if patch.Status != nil {
			stored.Status = *patch.Status
		}
		if patch.Description != nil {
			stored.Description = *patch.Description
		}
		if patch.IDImage != "" {
			stored.IDImage = patch.IDImage
		}
		if patch.CarLicence != "" {
			stored.CarLicence = patch.CarLicence
		}
		if patch.DriveLicence != "" {
			stored.DriveLicence = patch.DriveLicence
		}
		if err := tx.UpdateRefund(ctx, stored); err != nil {
			return err
		}
		r = stored
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	slog.InfoContext(ctx, "refund updated", "refund_id", r.ID, "status", r.Status)
	return r, nil
}

// ListRefunds returns one page of refund requests, newest first.
func (s *Service) ListRefunds(ctx context.Context, filter domain.RefundFilter, req domain.PageRequest) (domain.Page[*domain.RefundRequest], error) {
	req, err := pageOf(req)
	if err != nil {
		return domain.Page[*domain.RefundRequest]{}, err
	}
	rows, total, err := s.repo.ListRefunds(ctx, filter, req)
	if err != nil {
		return domain.Page[*domain.RefundRequest]{}, err
	}
	return domain.NewPage(rows, total, req), nil
}

func requireDocument(ctx context.Context, tx domain.Store, id int64) error {
	if _, err := tx.GetDocument(ctx, id); err != nil {
		if ierr.IsNotFound(err) {
			return ierr.NewUnknownIDs("documents", []int64{id})
		}
		return err
	}
	return nil
}

// pageOf applies paging defaults and caps the page size.
func pageOf(req domain.PageRequest) (domain.PageRequest, error) {
	if req.Page < 0 || req.Size < 0 {
		return req, validator.Field("page", "must not be negative")
	}
	if req.Size > domain.MaxPageSize {
		return req, validator.Field("size", "must be at most 100")
	}
	return req.Normalize(), nil
}
