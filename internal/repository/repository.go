// Package repository provides the SQL-backed record store adapter.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLStore implements domain.RecordStore using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a new record store based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const profileColumns = `customer_id, name, city, product_type, annual_income, monthly_salary,
	   credit_score, credit_utilization, savings_change_pct, current_salary_delay_days,
	   loan_amount, monthly_emi, risk_score, risk_level, suggested_action,
	   ability_score, willingness_score, case_type`

func scanProfile(row interface{ Scan(...any) error }) (*domain.CustomerProfile, error) {
	var p domain.CustomerProfile
	err := row.Scan(
		&p.CustomerID, &p.Name, &p.City, &p.ProductType,
		&p.AnnualIncome, &p.MonthlySalary,
		&p.CreditScore, &p.CreditUtilization, &p.SavingsChangePct, &p.CurrentSalaryDelayDays,
		&p.LoanAmount, &p.MonthlyInstallment,
		&p.RiskScore, &p.RiskLevel, &p.SuggestedAction,
		&p.AbilityScore, &p.WillingnessScore, &p.CaseType,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile retrieves one customer profile by identifier.
func (s *SQLStore) GetProfile(ctx context.Context, customerID string) (*domain.CustomerProfile, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `SELECT ` + profileColumns + ` FROM customers WHERE customer_id = ?`

	p, err := scanProfile(s.db.QueryRowContext(ctx, s.rebind(query), customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles retrieves profiles in ascending customer-identifier order,
// optionally filtered by an identifier/name substring. This ordering is
// part of the externally observable list contract.
func (s *SQLStore) ListProfiles(ctx context.Context, search string, limit int) ([]*domain.CustomerProfile, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + profileColumns + ` FROM customers`
	args := []any{}
	if search != "" {
		query += ` WHERE customer_id LIKE ? OR name LIKE ?`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY customer_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.CustomerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// CountProfiles returns the total number of customers.
func (s *SQLStore) CountProfiles(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count)
	return count, err
}

// GetTransactions retrieves a customer's transactions since the given time.
func (s *SQLStore) GetTransactions(ctx context.Context, customerID string, since time.Time) ([]*domain.TransactionRecord, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, timestamp, amount, category, merchant, method, outcome
		FROM transactions
		WHERE customer_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), customerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		var tr domain.TransactionRecord
		if err := rows.Scan(&tr.ID, &tr.CustomerID, &tr.Timestamp, &tr.Amount,
			&tr.Category, &tr.Merchant, &tr.Method, &tr.Outcome); err != nil {
			return nil, err
		}
		records = append(records, &tr)
	}

	return records, rows.Err()
}

// GetSalaryHistory retrieves a customer's salary credits, most recent first.
func (s *SQLStore) GetSalaryHistory(ctx context.Context, customerID string) ([]*domain.SalaryCreditRecord, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, period, amount, delay_days, employer, credit_date
		FROM salary_history
		WHERE customer_id = ?
		ORDER BY credit_date DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SalaryCreditRecord
	for rows.Next() {
		var sc domain.SalaryCreditRecord
		if err := rows.Scan(&sc.ID, &sc.CustomerID, &sc.Period, &sc.Amount,
			&sc.DelayDays, &sc.Employer, &sc.CreditDate); err != nil {
			return nil, err
		}
		records = append(records, &sc)
	}

	return records, rows.Err()
}

// GetAppActivity retrieves a customer's app events since the given time.
func (s *SQLStore) GetAppActivity(ctx context.Context, customerID string, since time.Time) ([]*domain.AppActivityRecord, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, timestamp, action, device
		FROM app_activity
		WHERE customer_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), customerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AppActivityRecord
	for rows.Next() {
		var a domain.AppActivityRecord
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Timestamp, &a.Action, &a.Device); err != nil {
			return nil, err
		}
		records = append(records, &a)
	}

	return records, rows.Err()
}

// GetUtilityPayments retrieves a customer's utility payment history.
func (s *SQLStore) GetUtilityPayments(ctx context.Context, customerID string) ([]*domain.UtilityPaymentRecord, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, customer_id, bill_date, payment_date, amount, category, days_past_due
		FROM utility_payments
		WHERE customer_id = ?
		ORDER BY bill_date DESC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.UtilityPaymentRecord
	for rows.Next() {
		var u domain.UtilityPaymentRecord
		if err := rows.Scan(&u.ID, &u.CustomerID, &u.BillDate, &u.PaymentDate,
			&u.Amount, &u.Category, &u.DaysPastDue); err != nil {
			return nil, err
		}
		records = append(records, &u)
	}

	return records, rows.Err()
}

// ListSalaryLags returns customers whose latest salary credit arrived at
// least minDelayDays late, worst first. Feeds the dashboard alert list.
func (s *SQLStore) ListSalaryLags(ctx context.Context, minDelayDays int, limit int) ([]*domain.SalaryLag, error) {
	if limit <= 0 {
		limit = 15
	}

	query := `
		SELECT sh.customer_id, c.name, sh.delay_days, sh.credit_date
		FROM salary_history sh
		JOIN customers c ON c.customer_id = sh.customer_id
		WHERE sh.delay_days >= ?
		  AND sh.credit_date = (
			SELECT MAX(credit_date) FROM salary_history WHERE customer_id = sh.customer_id
		  )
		ORDER BY sh.delay_days DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), minDelayDays, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lags []*domain.SalaryLag
	for rows.Next() {
		var lag domain.SalaryLag
		if err := rows.Scan(&lag.CustomerID, &lag.CustomerName, &lag.DelayDays, &lag.CreditDate); err != nil {
			return nil, err
		}
		lags = append(lags, &lag)
	}

	return lags, rows.Err()
}

// AppendAudit writes one audit entry. Callers treat failures as
// non-fatal; the method itself reports them normally.
func (s *SQLStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (
			id, created_at, customer_id, fusion_score, offer_id,
			category, governance_verdict, fallback_id, fairness_flag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		entry.ID, entry.Timestamp, entry.CustomerID, entry.FusionScore,
		entry.OfferID, string(entry.Category), entry.GovernanceVerdict,
		entry.FallbackID, entry.FairnessFlag,
	)
	return err
}

// SaveProfile inserts or replaces a customer profile.
func (s *SQLStore) SaveProfile(ctx context.Context, p *domain.CustomerProfile) error {
	if p == nil || p.CustomerID == "" {
		return fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			product_type = excluded.product_type,
			annual_income = excluded.annual_income,
			monthly_salary = excluded.monthly_salary,
			credit_score = excluded.credit_score,
			credit_utilization = excluded.credit_utilization,
			savings_change_pct = excluded.savings_change_pct,
			current_salary_delay_days = excluded.current_salary_delay_days,
			loan_amount = excluded.loan_amount,
			monthly_emi = excluded.monthly_emi,
			risk_score = excluded.risk_score,
			risk_level = excluded.risk_level,
			suggested_action = excluded.suggested_action,
			ability_score = excluded.ability_score,
			willingness_score = excluded.willingness_score,
			case_type = excluded.case_type
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		p.CustomerID, p.Name, p.City, p.ProductType,
		p.AnnualIncome, p.MonthlySalary,
		p.CreditScore, p.CreditUtilization, p.SavingsChangePct, p.CurrentSalaryDelayDays,
		p.LoanAmount, p.MonthlyInstallment,
		p.RiskScore, p.RiskLevel, p.SuggestedAction,
		p.AbilityScore, p.WillingnessScore, p.CaseType,
	)
	return err
}

// AddTransaction appends one transaction record.
func (s *SQLStore) AddTransaction(ctx context.Context, tr *domain.TransactionRecord) error {
	query := `
		INSERT INTO transactions (id, customer_id, timestamp, amount, category, merchant, method, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		tr.ID, tr.CustomerID, tr.Timestamp, tr.Amount, tr.Category, tr.Merchant, tr.Method, tr.Outcome)
	return err
}

// AddSalaryCredit appends one salary credit record.
func (s *SQLStore) AddSalaryCredit(ctx context.Context, sc *domain.SalaryCreditRecord) error {
	query := `
		INSERT INTO salary_history (id, customer_id, period, amount, delay_days, employer, credit_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		sc.ID, sc.CustomerID, sc.Period, sc.Amount, sc.DelayDays, sc.Employer, sc.CreditDate)
	return err
}

// AddAppActivity appends one app activity record.
func (s *SQLStore) AddAppActivity(ctx context.Context, a *domain.AppActivityRecord) error {
	query := `
		INSERT INTO app_activity (id, customer_id, timestamp, action, device)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		a.ID, a.CustomerID, a.Timestamp, a.Action, a.Device)
	return err
}

// AddUtilityPayment appends one utility payment record.
func (s *SQLStore) AddUtilityPayment(ctx context.Context, u *domain.UtilityPaymentRecord) error {
	query := `
		INSERT INTO utility_payments (id, customer_id, bill_date, payment_date, amount, category, days_past_due)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		u.ID, u.CustomerID, u.BillDate, u.PaymentDate, u.Amount, u.Category, u.DaysPastDue)
	return err
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
