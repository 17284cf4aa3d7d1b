package repository

// Schema definitions for the Kestrel record store.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    city TEXT,
    product_type TEXT,
    annual_income REAL NOT NULL DEFAULT 0,
    monthly_salary REAL NOT NULL DEFAULT 0,
    credit_score INTEGER NOT NULL DEFAULT 0,
    credit_utilization REAL NOT NULL DEFAULT 0,
    savings_change_pct REAL NOT NULL DEFAULT 0,
    current_salary_delay_days INTEGER NOT NULL DEFAULT 0,
    loan_amount REAL NOT NULL DEFAULT 0,
    monthly_emi REAL NOT NULL DEFAULT 0,
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_level TEXT NOT NULL DEFAULT '',
    suggested_action TEXT NOT NULL DEFAULT '',
    ability_score INTEGER NOT NULL DEFAULT 0,
    willingness_score INTEGER NOT NULL DEFAULT 0,
    case_type TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_customers_city ON customers(city);
CREATE INDEX IF NOT EXISTS idx_customers_product ON customers(product_type);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    amount REAL NOT NULL,
    category TEXT NOT NULL,
    merchant TEXT,
    method TEXT,
    outcome TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_outcome ON transactions(customer_id, outcome);
`

const schemaSalaryHistory = `
CREATE TABLE IF NOT EXISTS salary_history (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    period TEXT NOT NULL,
    amount REAL NOT NULL,
    delay_days INTEGER NOT NULL DEFAULT 0,
    employer TEXT,
    credit_date TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_salary_customer ON salary_history(customer_id, credit_date);
CREATE INDEX IF NOT EXISTS idx_salary_delay ON salary_history(delay_days);
`

const schemaAppActivity = `
CREATE TABLE IF NOT EXISTS app_activity (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    action TEXT NOT NULL,
    device TEXT
);

CREATE INDEX IF NOT EXISTS idx_activity_customer ON app_activity(customer_id, timestamp);
`

const schemaUtilityPayments = `
CREATE TABLE IF NOT EXISTS utility_payments (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    bill_date TIMESTAMP NOT NULL,
    payment_date TIMESTAMP NOT NULL,
    amount REAL NOT NULL,
    category TEXT,
    days_past_due INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_utility_customer ON utility_payments(customer_id, bill_date);
`

// schemaAuditLog backs the append-only audit sink. The core has no read
// contract over this table.
const schemaAuditLog = `
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    customer_id TEXT NOT NULL,
    fusion_score INTEGER NOT NULL,
    offer_id TEXT NOT NULL,
    category TEXT NOT NULL,
    governance_verdict TEXT NOT NULL,
    fallback_id TEXT,
    fairness_flag TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_customer ON audit_log(customer_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaTransactions,
		schemaSalaryHistory,
		schemaAppActivity,
		schemaUtilityPayments,
		schemaAuditLog,
	}
}
