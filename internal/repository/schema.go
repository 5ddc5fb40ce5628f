package repository

import "strings"

// Schema definitions for the brokerage database.
// Compatible with both SQLite and PostgreSQL; {{ID}} expands to the
// driver's auto-increment primary key and {{DECIMAL}} to its exact money
// type. SQLite has no exact numeric type; money is stored there as decimal
// text.

const schemaCatalog = `
CREATE TABLE IF NOT EXISTS plans (
    id {{ID}},
    name TEXT NOT NULL,
    insurance_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
    id {{ID}},
    name TEXT NOT NULL,
    logo TEXT NOT NULL DEFAULT '',
    company_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS company_plans (
    company_id BIGINT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
    plan_id BIGINT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
    features TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (company_id, plan_id)
);
`

const schemaHealthRules = `
CREATE TABLE IF NOT EXISTS health_rules (
    id {{ID}},
    plan_id BIGINT NOT NULL REFERENCES plans(id),
    company_id BIGINT NOT NULL REFERENCES companies(id),
    gender TEXT NOT NULL,
    age_from INTEGER NOT NULL,
    age_to INTEGER NOT NULL,
    price {{DECIMAL}} NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_rules_plan ON health_rules(plan_id);
CREATE INDEX IF NOT EXISTS idx_health_rules_company ON health_rules(company_id);
`

const schemaLifeRules = `
CREATE TABLE IF NOT EXISTS life_rules (
    id {{ID}},
    plan_id BIGINT NOT NULL REFERENCES plans(id),
    company_id BIGINT NOT NULL REFERENCES companies(id),
    gender TEXT NOT NULL,
    age_from INTEGER NOT NULL,
    age_to INTEGER NOT NULL,
    persitage {{DECIMAL}} NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_life_rules_plan ON life_rules(plan_id);
CREATE INDEX IF NOT EXISTS idx_life_rules_company ON life_rules(company_id);
`

// schemaCarRules defines car rules and their group memberships.
// A RANGE rule has price_from/price_to and no group rows; a GROUP rule has
// NULL bounds and at least one group row.
const schemaCarRules = `
CREATE TABLE IF NOT EXISTS car_rules (
    id {{ID}},
    rule_type TEXT NOT NULL,
    vehicle_condition TEXT NOT NULL,
    plan_id BIGINT NOT NULL REFERENCES plans(id),
    company_id BIGINT NOT NULL REFERENCES companies(id),
    persitage {{DECIMAL}} NOT NULL,
    price_from {{DECIMAL}},
    price_to {{DECIMAL}},
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_car_rules_plan ON car_rules(plan_id, vehicle_condition);
CREATE INDEX IF NOT EXISTS idx_car_rules_company ON car_rules(company_id);

CREATE TABLE IF NOT EXISTS car_rule_groups (
    id {{ID}},
    rule_id BIGINT NOT NULL REFERENCES car_rules(id) ON DELETE CASCADE,
    group_name TEXT NOT NULL,
    make_id BIGINT NOT NULL,
    model_id BIGINT,
    year INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_car_rule_groups_rule ON car_rule_groups(rule_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_car_rule_groups_unique
    ON car_rule_groups(rule_id, group_name, make_id, COALESCE(model_id, 0), year);
`

// schemaDocuments defines issued documents. Info tables snapshot the pricing
// at issuance and carry no foreign key to the rule tables.
const schemaDocuments = `
CREATE TABLE IF NOT EXISTS insurance_documents (
    id {{ID}},
    document_number TEXT NOT NULL UNIQUE,
    insurance_type TEXT NOT NULL,
    user_id BIGINT NOT NULL,
    plan_id BIGINT NOT NULL,
    company_id BIGINT NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0,
    paid_key TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON insurance_documents(user_id);

CREATE TABLE IF NOT EXISTS document_car_info (
    document_id BIGINT PRIMARY KEY REFERENCES insurance_documents(id) ON DELETE CASCADE,
    rule_id BIGINT NOT NULL,
    vehicle_condition TEXT NOT NULL,
    make_id BIGINT NOT NULL,
    model_id BIGINT NOT NULL,
    year INTEGER NOT NULL,
    price {{DECIMAL}} NOT NULL,
    persitage {{DECIMAL}} NOT NULL,
    final_price {{DECIMAL}} NOT NULL
);

CREATE TABLE IF NOT EXISTS document_life_info (
    document_id BIGINT PRIMARY KEY REFERENCES insurance_documents(id) ON DELETE CASCADE,
    rule_id BIGINT NOT NULL,
    price {{DECIMAL}} NOT NULL,
    persitage {{DECIMAL}} NOT NULL,
    final_price {{DECIMAL}} NOT NULL
);

CREATE TABLE IF NOT EXISTS document_health_info (
    document_id BIGINT PRIMARY KEY REFERENCES insurance_documents(id) ON DELETE CASCADE,
    health_type TEXT NOT NULL,
    group_name TEXT NOT NULL DEFAULT '',
    total_price {{DECIMAL}} NOT NULL
);

CREATE TABLE IF NOT EXISTS document_members (
    id {{ID}},
    document_id BIGINT NOT NULL REFERENCES insurance_documents(id) ON DELETE CASCADE,
    rule_id BIGINT NOT NULL,
    age INTEGER NOT NULL,
    gender TEXT NOT NULL,
    price {{DECIMAL}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_members_document ON document_members(document_id);

CREATE TABLE IF NOT EXISTS document_renewals (
    id {{ID}},
    document_id BIGINT NOT NULL REFERENCES insurance_documents(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    confirmed INTEGER NOT NULL DEFAULT 0,
    paid INTEGER NOT NULL DEFAULT 0,
    paid_key TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_renewals_document ON document_renewals(document_id);

CREATE TABLE IF NOT EXISTS document_refunds (
    id {{ID}},
    document_id BIGINT NOT NULL REFERENCES insurance_documents(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    car_number TEXT NOT NULL,
    description TEXT NOT NULL,
    id_image TEXT NOT NULL DEFAULT '',
    car_licence TEXT NOT NULL DEFAULT '',
    drive_licence TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_refunds_document ON document_refunds(document_id);
`

// AllSchemas returns all schema definitions for the driver in order.
func AllSchemas(driver string) []string {
	idColumn, decimalColumn := "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	if driver == "postgres" {
		idColumn, decimalColumn = "BIGSERIAL PRIMARY KEY", "NUMERIC"
	}

	schemas := []string{
		schemaCatalog,
		schemaHealthRules,
		schemaLifeRules,
		schemaCarRules,
		schemaDocuments,
	}
	r := strings.NewReplacer("{{ID}}", idColumn, "{{DECIMAL}}", decimalColumn)
	for i, s := range schemas {
		schemas[i] = r.Replace(s)
	}
	return schemas
}
