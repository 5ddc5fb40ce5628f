package issuance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var issued []*domain.Document
	for _, userID := range []int64{7, 7, 8} {
		doc, err := f.svc.IssueLifeDocument(ctx, userID, LifeDocumentRequest{RuleID: f.lifeR.ID, Price: dec("1000")})
		require.NoError(t, err)
		issued = append(issued, doc)
	}

	t.Run("DefaultsAndTotals", func(t *testing.T) {
		page, err := f.svc.ListDocuments(ctx, domain.DocumentFilter{UserID: 7}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, domain.DefaultPageSize, page.Size)
		assert.Equal(t, 1, page.TotalPages)
		require.Len(t, page.Data, 2)
		assert.Equal(t, issued[1].ID, page.Data[0].ID)
	})

	t.Run("TotalPagesRoundsUp", func(t *testing.T) {
		page, err := f.svc.ListDocuments(ctx, domain.DocumentFilter{}, domain.PageRequest{Page: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.Data, 2)
	})

	t.Run("EmptyPageHasNoNilData", func(t *testing.T) {
		page, err := f.svc.ListDocuments(ctx, domain.DocumentFilter{UserID: 99}, domain.PageRequest{})
		require.NoError(t, err)
		assert.NotNil(t, page.Data)
		assert.Zero(t, page.TotalPages)
	})

	t.Run("OversizedPage", func(t *testing.T) {
		_, err := f.svc.ListDocuments(ctx, domain.DocumentFilter{}, domain.PageRequest{Size: domain.MaxPageSize + 1})
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("ByNumber", func(t *testing.T) {
		doc, err := f.svc.GetDocumentByNumber(ctx, issued[2].DocumentNumber)
		require.NoError(t, err)
		assert.Equal(t, issued[2].ID, doc.ID)

		_, err = f.svc.GetDocumentByNumber(ctx, "")
		assert.True(t, ierr.IsValidation(err))

		_, err = f.svc.GetDocumentByNumber(ctx, "no-such-number")
		assert.True(t, ierr.IsNotFound(err))
	})
}

func TestRenewals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc, err := f.svc.IssueLifeDocument(ctx, 7, LifeDocumentRequest{RuleID: f.lifeR.ID, Price: dec("1000")})
	require.NoError(t, err)

	t.Run("CreateThenConfirm", func(t *testing.T) {
		r, err := f.svc.CreateRenewal(ctx, 7, RenewalInput{DocumentID: doc.ID})
		require.NoError(t, err)
		assert.False(t, r.Paid)
		assert.False(t, r.Confirmed)

		confirmed, key := true, "renew_1"
		r, err = f.svc.UpdateRenewal(ctx, r.ID, RenewalPatch{Confirmed: &confirmed, PaidKey: &key})
		require.NoError(t, err)
		assert.True(t, r.Confirmed)
		assert.True(t, r.Paid)

		page, err := f.svc.ListRenewals(ctx, domain.RenewalFilter{DocumentID: doc.ID, Paid: &confirmed}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("PaidKeyOnCreate", func(t *testing.T) {
		r, err := f.svc.CreateRenewal(ctx, 7, RenewalInput{DocumentID: doc.ID, PaidKey: "pay_9"})
		require.NoError(t, err)
		assert.True(t, r.Paid)
	})

	t.Run("UnknownDocument", func(t *testing.T) {
		_, err := f.svc.CreateRenewal(ctx, 7, RenewalInput{DocumentID: 999})
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
		ids, ok := ierr.UnknownIDs(err)
		require.True(t, ok)
		assert.Equal(t, []int64{999}, ids)
	})

	t.Run("UnknownRenewal", func(t *testing.T) {
		_, err := f.svc.UpdateRenewal(ctx, 999, RenewalPatch{})
		assert.True(t, ierr.IsNotFound(err))
	})
}

func TestRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc, err := f.svc.IssueLifeDocument(ctx, 7, LifeDocumentRequest{RuleID: f.lifeR.ID, Price: dec("1000")})
	require.NoError(t, err)

	t.Run("PendingThenApproved", func(t *testing.T) {
		r, err := f.svc.CreateRefund(ctx, 7, RefundInput{
			DocumentID: doc.ID, CarNumber: "77-123-45", Description: "hail damage", IDImage: "refund/id.png",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RefundPending, r.Status)

		approved := domain.RefundApproved
		r, err = f.svc.UpdateRefund(ctx, r.ID, RefundPatch{Status: &approved, CarLicence: "refund/car.png"})
		require.NoError(t, err)
		assert.Equal(t, domain.RefundApproved, r.Status)
		assert.Equal(t, "refund/id.png", r.IDImage)
		assert.Equal(t, "refund/car.png", r.CarLicence)

		page, err := f.svc.ListRefunds(ctx, domain.RefundFilter{UserID: 7, Status: domain.RefundApproved}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := f.svc.CreateRefund(ctx, 7, RefundInput{DocumentID: doc.ID})
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		closed := domain.RefundStatus("CLOSED")
		_, err := f.svc.UpdateRefund(ctx, 1, RefundPatch{Status: &closed})
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("UnknownDocument", func(t *testing.T) {
		_, err := f.svc.CreateRefund(ctx, 7, RefundInput{DocumentID: 999, CarNumber: "1", Description: "x"})
		assert.True(t, ierr.IsNotFound(err))
	})
}
