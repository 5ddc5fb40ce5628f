package repository

import (
	"context"
	"time"

	"github.com/opensource-finance/brokerage/internal/domain"
)

// CreateDocument inserts the document header and its insurance-type info.
// Call it inside WithTx so a failed info insert leaves no header behind.
func (s *sqlStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO insurance_documents (
			document_number, insurance_type, user_id, plan_id, company_id, paid, paid_key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.insert(ctx, query,
		doc.DocumentNumber, doc.InsuranceType, doc.UserID, doc.PlanID, doc.CompanyID,
		boolToInt(doc.Paid), doc.PaidKey, now, now)
	if err != nil {
		return dbError(err, "create document")
	}

	doc.ID = id
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return s.insertDocumentInfo(ctx, doc)
}

// UpdateDocument rewrites the header and replaces the info rows.
func (s *sqlStore) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()

	query := `
		UPDATE insurance_documents
		SET plan_id = ?, company_id = ?, paid = ?, paid_key = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, s.rebind(query),
		doc.PlanID, doc.CompanyID, boolToInt(doc.Paid), doc.PaidKey, now, doc.ID)
	if err := requireAffected(result, err, "update document"); err != nil {
		return err
	}
	doc.UpdatedAt = now

	for _, table := range []string{"document_car_info", "document_life_info", "document_health_info", "document_members"} {
		if _, err := s.q.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE document_id = ?`), doc.ID); err != nil {
			return dbError(err, "clear "+table)
		}
	}
	return s.insertDocumentInfo(ctx, doc)
}

func (s *sqlStore) insertDocumentInfo(ctx context.Context, doc *domain.Document) error {
	switch {
	case doc.Car != nil:
		c := doc.Car
		query := `
			INSERT INTO document_car_info (
				document_id, rule_id, vehicle_condition, make_id, model_id, year, price, persitage, final_price
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.q.ExecContext(ctx, s.rebind(query),
			doc.ID, c.RuleID, c.VehicleCondition, c.MakeID, c.ModelID, c.Year, c.Price, c.Persitage, c.FinalPrice)
		return dbError(err, "insert car document info")

	case doc.Life != nil:
		l := doc.Life
		query := `
			INSERT INTO document_life_info (document_id, rule_id, price, persitage, final_price)
			VALUES (?, ?, ?, ?, ?)`
		_, err := s.q.ExecContext(ctx, s.rebind(query), doc.ID, l.RuleID, l.Price, l.Persitage, l.FinalPrice)
		return dbError(err, "insert life document info")

	case doc.Health != nil:
		h := doc.Health
		query := `
			INSERT INTO document_health_info (document_id, health_type, group_name, total_price)
			VALUES (?, ?, ?, ?)`
		if _, err := s.q.ExecContext(ctx, s.rebind(query), doc.ID, h.Type, h.GroupName, h.TotalPrice); err != nil {
			return dbError(err, "insert health document info")
		}

		memberQuery := `
			INSERT INTO document_members (document_id, rule_id, age, gender, price)
			VALUES (?, ?, ?, ?, ?)`
		for i := range h.Members {
			m := &h.Members[i]
			id, err := s.insert(ctx, memberQuery, doc.ID, m.RuleID, m.Age, m.Gender, m.Price)
			if err != nil {
				return dbError(err, "insert document member")
			}
			m.ID = id
		}
		return nil
	}
	return nil
}

// GetDocument returns a document with its insurance-type info.
func (s *sqlStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	return s.getDocument(ctx, "id = ?", id)
}

// GetDocumentByNumber returns the document issued under number.
func (s *sqlStore) GetDocumentByNumber(ctx context.Context, number string) (*domain.Document, error) {
	return s.getDocument(ctx, "document_number = ?", number)
}

// ListDocuments returns one page of documents, newest first, and the number
// of documents matching filter.
func (s *sqlStore) ListDocuments(ctx context.Context, filter domain.DocumentFilter, page domain.PageRequest) ([]*domain.Document, int, error) {
	var c conditions
	c.eq("user_id", filter.UserID, filter.UserID != 0)
	c.eq("company_id", filter.CompanyID, filter.CompanyID != 0)
	c.eq("plan_id", filter.PlanID, filter.PlanID != 0)
	c.eq("insurance_type", filter.InsuranceType, filter.InsuranceType != "")
	c.flag("paid", filter.Paid)

	total, err := s.count(ctx, "insurance_documents", c)
	if err != nil {
		return nil, 0, dbError(err, "count documents")
	}

	query := `SELECT ` + documentColumns + ` FROM insurance_documents` + c.where() +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.q.QueryContext(ctx, s.rebind(query), c.page(page)...)
	if err != nil {
		return nil, 0, dbError(err, "list documents")
	}
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, 0, dbError(err, "scan document")
		}
		docs = append(docs, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, dbError(err, "list documents")
	}

	for _, doc := range docs {
		if err := s.loadDocumentInfo(ctx, doc); err != nil {
			return nil, 0, err
		}
	}
	return docs, total, nil
}

const documentColumns = `id, document_number, insurance_type, user_id, plan_id, company_id, paid, paid_key, created_at, updated_at`

func (s *sqlStore) getDocument(ctx context.Context, cond string, arg any) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM insurance_documents WHERE ` + cond

	doc, err := scanDocument(s.q.QueryRowContext(ctx, s.rebind(query), arg))
	if err != nil {
		return nil, dbError(err, "get document")
	}
	if err := s.loadDocumentInfo(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var paid int
	err := row.Scan(
		&doc.ID, &doc.DocumentNumber, &doc.InsuranceType, &doc.UserID, &doc.PlanID, &doc.CompanyID,
		&paid, &doc.PaidKey, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Paid = paid == 1
	return &doc, nil
}

func (s *sqlStore) loadDocumentInfo(ctx context.Context, doc *domain.Document) error {
	switch doc.InsuranceType {
	case domain.InsuranceCar:
		return s.loadCarInfo(ctx, doc)
	case domain.InsuranceLife:
		return s.loadLifeInfo(ctx, doc)
	case domain.InsuranceHealth:
		return s.loadHealthInfo(ctx, doc)
	}
	return nil
}

func (s *sqlStore) loadCarInfo(ctx context.Context, doc *domain.Document) error {
	query := `
		SELECT rule_id, vehicle_condition, make_id, model_id, year, price, persitage, final_price
		FROM document_car_info WHERE document_id = ?`

	var c domain.CarDocumentInfo
	err := s.q.QueryRowContext(ctx, s.rebind(query), doc.ID).Scan(
		&c.RuleID, &c.VehicleCondition, &c.MakeID, &c.ModelID, &c.Year, &c.Price, &c.Persitage, &c.FinalPrice,
	)
	if err != nil {
		return dbError(err, "get car document info")
	}
	doc.Car = &c
	return nil
}

func (s *sqlStore) loadLifeInfo(ctx context.Context, doc *domain.Document) error {
	query := `SELECT rule_id, price, persitage, final_price FROM document_life_info WHERE document_id = ?`

	var l domain.LifeDocumentInfo
	err := s.q.QueryRowContext(ctx, s.rebind(query), doc.ID).Scan(&l.RuleID, &l.Price, &l.Persitage, &l.FinalPrice)
	if err != nil {
		return dbError(err, "get life document info")
	}
	doc.Life = &l
	return nil
}

func (s *sqlStore) loadHealthInfo(ctx context.Context, doc *domain.Document) error {
	query := `SELECT health_type, group_name, total_price FROM document_health_info WHERE document_id = ?`

	var h domain.HealthDocumentInfo
	err := s.q.QueryRowContext(ctx, s.rebind(query), doc.ID).Scan(&h.Type, &h.GroupName, &h.TotalPrice)
	if err != nil {
		return dbError(err, "get health document info")
	}

	memberQuery := `SELECT id, rule_id, age, gender, price FROM document_members WHERE document_id = ? ORDER BY id`
	rows, err := s.q.QueryContext(ctx, s.rebind(memberQuery), doc.ID)
	if err != nil {
		return dbError(err, "list document members")
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.DocumentMember
		if err := rows.Scan(&m.ID, &m.RuleID, &m.Age, &m.Gender, &m.Price); err != nil {
			return dbError(err, "scan document member")
		}
		h.Members = append(h.Members, m)
	}
	if err := rows.Err(); err != nil {
		return dbError(err, "list document members")
	}

	doc.Health = &h
	return nil
}
