package domain

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across the pipeline. Only ErrNotFound is ever
// surfaced to API callers; everything else resolves to a documented
// fallback.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// RecordStore is the read-only adapter over the five record collections,
// plus the append-only audit log. Save methods exist for ingestion
// collaborators and test fixtures; the decision pipeline never calls them.
type RecordStore interface {
	// Profile lookups
	GetProfile(ctx context.Context, customerID string) (*CustomerProfile, error)
	ListProfiles(ctx context.Context, search string, limit int) ([]*CustomerProfile, error)
	CountProfiles(ctx context.Context) (int, error)

	// Per-customer history, possibly empty
	GetTransactions(ctx context.Context, customerID string, since time.Time) ([]*TransactionRecord, error)
	GetSalaryHistory(ctx context.Context, customerID string) ([]*SalaryCreditRecord, error)
	GetAppActivity(ctx context.Context, customerID string, since time.Time) ([]*AppActivityRecord, error)
	GetUtilityPayments(ctx context.Context, customerID string) ([]*UtilityPaymentRecord, error)

	// Dashboard aggregate: customers whose latest salary credit was at
	// least minDelayDays late, worst first.
	ListSalaryLags(ctx context.Context, minDelayDays int, limit int) ([]*SalaryLag, error)

	// Audit log (append-only)
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// Ingestion / fixtures
	SaveProfile(ctx context.Context, p *CustomerProfile) error
	AddTransaction(ctx context.Context, tr *TransactionRecord) error
	AddSalaryCredit(ctx context.Context, sc *SalaryCreditRecord) error
	AddAppActivity(ctx context.Context, a *AppActivityRecord) error
	AddUtilityPayment(ctx context.Context, u *UtilityPaymentRecord) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for record store initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
