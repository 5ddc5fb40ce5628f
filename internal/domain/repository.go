// Package domain defines the core entities and interfaces of the brokerage
// rule engine.
package domain

import (
	"context"
	"time"
)

// Store is the set of persistence operations available both on the
// repository and inside a transaction opened with Repository.WithTx.
type Store interface {
	// Catalog reference data
	SavePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	SaveCompany(ctx context.Context, company *Company) error
	GetCompany(ctx context.Context, id int64) (*Company, error)
	SaveCompanyPlan(ctx context.Context, cp *CompanyPlan) error
	GetCompanyPlan(ctx context.Context, companyID, planID int64) (*CompanyPlan, error)

	// Health rules
	CreateHealthRule(ctx context.Context, rule *HealthRule) error
	UpdateHealthRule(ctx context.Context, rule *HealthRule) error
	GetHealthRule(ctx context.Context, id int64) (*HealthRule, error)
	ListHealthRules(ctx context.Context, filter RuleFilter) ([]*HealthRule, error)
	ListHealthCandidates(ctx context.Context, planID int64) ([]HealthCandidate, error)
	FindHealthRuleIDs(ctx context.Context, ids []int64) ([]int64, error)
	DeleteHealthRules(ctx context.Context, ids []int64) (int64, error)

	// Life rules
	CreateLifeRule(ctx context.Context, rule *LifeRule) error
	UpdateLifeRule(ctx context.Context, rule *LifeRule) error
	GetLifeRule(ctx context.Context, id int64) (*LifeRule, error)
	ListLifeRules(ctx context.Context, filter RuleFilter) ([]*LifeRule, error)
	ListLifeCandidates(ctx context.Context, planID int64) ([]LifeCandidate, error)
	FindLifeRuleIDs(ctx context.Context, ids []int64) ([]int64, error)
	DeleteLifeRules(ctx context.Context, ids []int64) (int64, error)

	// Car rules and their group entries
	CreateCarRule(ctx context.Context, rule *CarRule) error
	UpdateCarRule(ctx context.Context, rule *CarRule) error
	GetCarRule(ctx context.Context, id int64) (*CarRule, error)
	ListCarRules(ctx context.Context, filter RuleFilter) ([]*CarRule, error)
	ListCarCandidates(ctx context.Context, planID int64, condition VehicleCondition) ([]CarCandidate, error)
	FindCarRuleIDs(ctx context.Context, ids []int64) ([]int64, error)
	DeleteCarRules(ctx context.Context, ids []int64) (int64, error)
	ListCarRuleGroupEntries(ctx context.Context, ruleID int64) ([]CarRuleGroupEntry, error)
	InsertCarRuleGroupEntries(ctx context.Context, entries []CarRuleGroupEntry) error
	DeleteCarRuleGroupEntriesByRule(ctx context.Context, ruleID int64) (int64, error)
	FindCarRuleGroupEntries(ctx context.Context, ids []int64) ([]CarRuleGroupEntry, error)
	CountCarRuleGroupEntries(ctx context.Context, ruleID int64) (int, error)
	DeleteCarRuleGroupEntries(ctx context.Context, ids []int64) (int64, error)

	// Documents
	CreateDocument(ctx context.Context, doc *Document) error
	UpdateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	GetDocumentByNumber(ctx context.Context, number string) (*Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter, page PageRequest) ([]*Document, int, error)

	// Renewal and refund requests
	CreateRenewal(ctx context.Context, r *RenewalRequest) error
	UpdateRenewal(ctx context.Context, r *RenewalRequest) error
	GetRenewal(ctx context.Context, id int64) (*RenewalRequest, error)
	ListRenewals(ctx context.Context, filter RenewalFilter, page PageRequest) ([]*RenewalRequest, int, error)
	CreateRefund(ctx context.Context, r *RefundRequest) error
	UpdateRefund(ctx context.Context, r *RefundRequest) error
	GetRefund(ctx context.Context, id int64) (*RefundRequest, error)
	ListRefunds(ctx context.Context, filter RefundFilter, page PageRequest) ([]*RefundRequest, int, error)
}

// Repository is the relational store. Multi-statement writes run through
// WithTx: fn receives a Store bound to one transaction which is committed when
// fn returns nil and rolled back otherwise.
type Repository interface {
	Store

	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `mapstructure:"driver"`

	SQLitePath string `mapstructure:"sqlite_path"`

	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDB       string `mapstructure:"postgres_db"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}
