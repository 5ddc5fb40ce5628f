// Package issuance turns a chosen offer into a stored insurance document.
// Every issuance re-runs the matchers and the premium calculator so a
// document is never priced differently from the offer it came from.
package issuance

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/brokerage/internal/domain"
	ierr "github.com/opensource-finance/brokerage/internal/errors"
	"github.com/opensource-finance/brokerage/internal/metrics"
	"github.com/opensource-finance/brokerage/internal/rules"
	"github.com/opensource-finance/brokerage/internal/validator"
)

var tracer = otel.Tracer("brokerage-issuance")

// Service issues, re-prices and reads documents.
type Service struct {
	repo    domain.Repository
	bus     domain.EventBus
	metrics *metrics.Metrics
}

// NewService creates an issuance service. bus and m may be nil.
func NewService(repo domain.Repository, bus domain.EventBus, m *metrics.Metrics) *Service {
	return &Service{repo: repo, bus: bus, metrics: m}
}

// IssueCarDocument prices the vehicle under the rule. The rule must cover it.
func (s *Service) IssueCarDocument(ctx context.Context, userID int64, req CarDocumentRequest) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "issuance.IssueCarDocument",
		trace.WithAttributes(attribute.Int64("rule.id", req.RuleID)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	doc := newDocument(domain.InsuranceCar, userID, req.PaidKey)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := priceCar(ctx, tx, doc, req); err != nil {
			return err
		}
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return s.issued(ctx, doc), nil
}

// IssueLifeDocument applies the rule's percentage to the price.
func (s *Service) IssueLifeDocument(ctx context.Context, userID int64, req LifeDocumentRequest) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "issuance.IssueLifeDocument",
		trace.WithAttributes(attribute.Int64("rule.id", req.RuleID)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	doc := newDocument(domain.InsuranceLife, userID, req.PaidKey)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := priceLife(ctx, tx, doc, req); err != nil {
			return err
		}
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return s.issued(ctx, doc), nil
}

// IssueHealthDocument insures one person under a rule that covers them.
func (s *Service) IssueHealthDocument(ctx context.Context, userID int64, req HealthDocumentRequest) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "issuance.IssueHealthDocument",
		trace.WithAttributes(attribute.Int64("rule.id", req.RuleID)))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	doc := newDocument(domain.InsuranceHealth, userID, req.PaidKey)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := priceHealth(ctx, tx, doc, req.RuleID, rules.Member{Age: req.Age, Gender: req.Gender}); err != nil {
			return err
		}
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return s.issued(ctx, doc), nil
}

// IssueGroupHealthDocument insures a roster at one company. Every member
// must be covered there or nothing is issued.
func (s *Service) IssueGroupHealthDocument(ctx context.Context, userID int64, req GroupHealthDocumentRequest) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "issuance.IssueGroupHealthDocument",
		trace.WithAttributes(
			attribute.Int64("company.id", req.CompanyID),
			attribute.Int("members.count", len(req.Members)),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fail(span, err)
	}

	doc := newDocument(domain.InsuranceHealth, userID, req.PaidKey)
	doc.PlanID, doc.CompanyID = req.PlanID, req.CompanyID
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if err := requirePlan(ctx, tx, req.PlanID, domain.InsuranceHealth); err != nil {
			return err
		}
		if _, err := tx.GetCompany(ctx, req.CompanyID); err != nil {
			return err
		}
		if err := priceGroup(ctx, tx, doc, req.GroupName, req.Members); err != nil {
			return err
		}
		return tx.CreateDocument(ctx, doc)
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return s.issued(ctx, doc), nil
}

// UpdateDocument re-prices a document with the update matching its kind.
// A paid key marks the document paid; documents are never marked unpaid.
func (s *Service) UpdateDocument(ctx context.Context, id int64, upd DocumentUpdate) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "issuance.UpdateDocument",
		trace.WithAttributes(attribute.Int64("document.id", id)))
	defer span.End()

	if upd == nil {
		return nil, fail(span, ierr.NewError("missing update").Mark(ierr.ErrValidation))
	}

	var doc *domain.Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx domain.Store) error {
		stored, err := tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if stored.InsuranceType != upd.insuranceType() {
			return ierr.NewErrorf("document %d is %s", id, stored.InsuranceType).
				WithHintf("document %d is a %s document and cannot take a %s update",
					id, stored.InsuranceType, upd.insuranceType()).
				Mark(ierr.ErrValidation)
		}

		var paidKey string
		switch u := upd.(type) {
		case CarDocumentUpdate:
			req := CarDocumentRequest(u)
			if err := req.Validate(); err != nil {
				return err
			}
			stored.Car = nil
			if err := priceCar(ctx, tx, stored, req); err != nil {
				return err
			}
			paidKey = u.PaidKey
		case LifeDocumentUpdate:
			req := LifeDocumentRequest(u)
			if err := req.Validate(); err != nil {
				return err
			}
			stored.Life = nil
			if err := priceLife(ctx, tx, stored, req); err != nil {
				return err
			}
			paidKey = u.PaidKey
		case HealthDocumentUpdate:
			if err := repriceHealth(ctx, tx, stored, u); err != nil {
				return err
			}
			paidKey = u.PaidKey
		default:
			return ierr.NewErrorf("unsupported update %T", upd).Mark(ierr.ErrValidation)
		}

		markPaid(stored, paidKey)
		if err := tx.UpdateDocument(ctx, stored); err != nil {
			return err
		}
		doc = stored
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	slog.InfoContext(ctx, "document updated",
		"document_id", doc.ID,
		"insurance_type", doc.InsuranceType,
		"paid", doc.Paid,
	)
	s.publish(ctx, domain.TopicDocumentUpdated, doc)
	return doc, nil
}

// GetDocument returns a stored document with its info.
func (s *Service) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// GetDocumentByNumber returns the document issued under number.
func (s *Service) GetDocumentByNumber(ctx context.Context, number string) (*domain.Document, error) {
	if number == "" {
		return nil, validator.Field("documentNumber", "is required")
	}
	return s.repo.GetDocumentByNumber(ctx, number)
}

// ListDocuments returns one page of documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, filter domain.DocumentFilter, req domain.PageRequest) (domain.Page[*domain.Document], error) {
	ctx, span := tracer.Start(ctx, "issuance.ListDocuments",
		trace.WithAttributes(attribute.Int64("user.id", filter.UserID)))
	defer span.End()

	req, err := pageOf(req)
	if err != nil {
		return domain.Page[*domain.Document]{}, fail(span, err)
	}
	docs, total, err := s.repo.ListDocuments(ctx, filter, req)
	if err != nil {
		return domain.Page[*domain.Document]{}, fail(span, err)
	}
	return domain.NewPage(docs, total, req), nil
}

func (s *Service) issued(ctx context.Context, doc *domain.Document) *domain.Document {
	s.metrics.IncDocumentIssued(string(doc.InsuranceType))
	slog.InfoContext(ctx, "document issued",
		"document_id", doc.ID,
		"document_number", doc.DocumentNumber,
		"insurance_type", doc.InsuranceType,
		"company_id", doc.CompanyID,
	)
	s.publish(ctx, domain.TopicDocumentIssued, doc)
	return doc
}

// publish runs after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, topic string, doc *domain.Document) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(eventFor(doc))
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode document event", "document_id", doc.ID, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, topic, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish document event",
			"topic", topic,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func eventFor(doc *domain.Document) domain.DocumentEvent {
	return domain.DocumentEvent{
		DocumentID:     doc.ID,
		DocumentNumber: doc.DocumentNumber,
		UserID:         doc.UserID,
		InsuranceType:  doc.InsuranceType,
		CompanyID:      doc.CompanyID,
		TotalPrice:     totalPrice(doc),
		Paid:           doc.Paid,
	}
}

func totalPrice(doc *domain.Document) decimal.Decimal {
	switch {
	case doc.Car != nil:
		return doc.Car.FinalPrice
	case doc.Life != nil:
		return doc.Life.FinalPrice
	case doc.Health != nil:
		return doc.Health.TotalPrice
	}
	return decimal.Zero
}

func newDocument(insuranceType domain.InsuranceType, userID int64, paidKey string) *domain.Document {
	doc := &domain.Document{
		DocumentNumber: uuid.New().String(),
		InsuranceType:  insuranceType,
		UserID:         userID,
	}
	markPaid(doc, paidKey)
	return doc
}

func markPaid(doc *domain.Document, paidKey string) {
	if paidKey == "" {
		return
	}
	doc.Paid = true
	doc.PaidKey = paidKey
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
