package repository

import (
	"context"
	"time"

	"github.com/opensource-finance/brokerage/internal/domain"
)

const renewalColumns = `id, document_id, user_id, confirmed, paid, paid_key, created_at, updated_at`

const refundColumns = `id, document_id, user_id, car_number, description, id_image, car_licence, drive_licence, status, created_at, updated_at`

// CreateRenewal inserts a renewal request.
func (s *sqlStore) CreateRenewal(ctx context.Context, r *domain.RenewalRequest) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO document_renewals (document_id, user_id, confirmed, paid, paid_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		r.DocumentID, r.UserID, boolToInt(r.Confirmed), boolToInt(r.Paid), r.PaidKey, now, now)
	if err != nil {
		return dbError(err, "create renewal")
	}

	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// UpdateRenewal overwrites the mutable state of a renewal request.
func (s *sqlStore) UpdateRenewal(ctx context.Context, r *domain.RenewalRequest) error {
	now := time.Now().UTC()

	query := `UPDATE document_renewals SET confirmed = ?, paid = ?, paid_key = ?, updated_at = ? WHERE id = ?`
	result, err := s.q.ExecContext(ctx, s.rebind(query),
		boolToInt(r.Confirmed), boolToInt(r.Paid), r.PaidKey, now, r.ID)
	if err := requireAffected(result, err, "update renewal"); err != nil {
		return err
	}
	r.UpdatedAt = now
	return nil
}

// GetRenewal returns one renewal request.
func (s *sqlStore) GetRenewal(ctx context.Context, id int64) (*domain.RenewalRequest, error) {
	query := `SELECT ` + renewalColumns + ` FROM document_renewals WHERE id = ?`
	r, err := scanRenewal(s.q.QueryRowContext(ctx, s.rebind(query), id))
	return r, dbError(err, "get renewal")
}

// ListRenewals returns one page of renewal requests, newest first.
func (s *sqlStore) ListRenewals(ctx context.Context, filter domain.RenewalFilter, page domain.PageRequest) ([]*domain.RenewalRequest, int, error) {
	var c conditions
	c.eq("user_id", filter.UserID, filter.UserID != 0)
	c.eq("document_id", filter.DocumentID, filter.DocumentID != 0)
	c.flag("confirmed", filter.Confirmed)
	c.flag("paid", filter.Paid)

	total, err := s.count(ctx, "document_renewals", c)
	if err != nil {
		return nil, 0, dbError(err, "count renewals")
	}

	query := `SELECT ` + renewalColumns + ` FROM document_renewals` + c.where() +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.q.QueryContext(ctx, s.rebind(query), c.page(page)...)
	if err != nil {
		return nil, 0, dbError(err, "list renewals")
	}
	defer rows.Close()

	var out []*domain.RenewalRequest
	for rows.Next() {
		r, err := scanRenewal(rows)
		if err != nil {
			return nil, 0, dbError(err, "scan renewal")
		}
		out = append(out, r)
	}
	return out, total, dbError(rows.Err(), "list renewals")
}

func scanRenewal(row rowScanner) (*domain.RenewalRequest, error) {
	var r domain.RenewalRequest
	var confirmed, paid int
	if err := row.Scan(&r.ID, &r.DocumentID, &r.UserID, &confirmed, &paid, &r.PaidKey, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Confirmed = confirmed == 1
	r.Paid = paid == 1
	return &r, nil
}

// CreateRefund inserts a refund request.
func (s *sqlStore) CreateRefund(ctx context.Context, r *domain.RefundRequest) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO document_refunds (
			document_id, user_id, car_number, description, id_image, car_licence, drive_licence, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		r.DocumentID, r.UserID, r.CarNumber, r.Description,
		r.IDImage, r.CarLicence, r.DriveLicence, r.Status, now, now)
	if err != nil {
		return dbError(err, "create refund")
	}

	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// UpdateRefund overwrites the mutable state of a refund request.
func (s *sqlStore) UpdateRefund(ctx context.Context, r *domain.RefundRequest) error {
	now := time.Now().UTC()

	query := `
		UPDATE document_refunds
		SET description = ?, id_image = ?, car_licence = ?, drive_licence = ?, status = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.q.ExecContext(ctx, s.rebind(query),
		r.Description, r.IDImage, r.CarLicence, r.DriveLicence, r.Status, now, r.ID)
	if err := requireAffected(result, err, "update refund"); err != nil {
		return err
	}
	r.UpdatedAt = now
	return nil
}

// GetRefund returns one refund request.
func (s *sqlStore) GetRefund(ctx context.Context, id int64) (*domain.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM document_refunds WHERE id = ?`
	r, err := scanRefund(s.q.QueryRowContext(ctx, s.rebind(query), id))
	return r, dbError(err, "get refund")
}

// ListRefunds returns one page of refund requests, newest first.
func (s *sqlStore) ListRefunds(ctx context.Context, filter domain.RefundFilter, page domain.PageRequest) ([]*domain.RefundRequest, int, error) {
	var c conditions
	c.eq("user_id", filter.UserID, filter.UserID != 0)
	c.eq("document_id", filter.DocumentID, filter.DocumentID != 0)
	c.eq("status", filter.Status, filter.Status != "")

	total, err := s.count(ctx, "document_refunds", c)
	if err != nil {
		return nil, 0, dbError(err, "count refunds")
	}

	query := `SELECT ` + refundColumns + ` FROM document_refunds` + c.where() +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.q.QueryContext(ctx, s.rebind(query), c.page(page)...)
	if err != nil {
		return nil, 0, dbError(err, "list refunds")
	}
	defer rows.Close()

	var out []*domain.RefundRequest
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, 0, dbError(err, "scan refund")
		}
		out = append(out, r)
	}
	return out, total, dbError(rows.Err(), "list refunds")
}

func scanRefund(row rowScanner) (*domain.RefundRequest, error) {
	var r domain.RefundRequest
	err := row.Scan(&r.ID, &r.DocumentID, &r.UserID, &r.CarNumber, &r.Description,
		&r.IDImage, &r.CarLicence, &r.DriveLicence, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
