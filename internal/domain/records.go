// Package domain defines the core types and interfaces for Kestrel.
package domain

import "time"

// CustomerProfile is the identity and product record for one customer.
// Created by onboarding/ingestion; read-only to the decision pipeline.
type CustomerProfile struct {
	CustomerID  string `json:"customerId"`
	Name        string `json:"name"`
	City        string `json:"city"`
	ProductType string `json:"productType"`

	// Income and credit attributes
	AnnualIncome           float64 `json:"annualIncome"`
	MonthlySalary          float64 `json:"monthlySalary"`
	CreditScore            int     `json:"creditScore"`
	CreditUtilization      float64 `json:"creditUtilization"` // percentage, 0-100
	SavingsChangePct       float64 `json:"savingsChangePct"`  // negative = savings shrank
	CurrentSalaryDelayDays int     `json:"currentSalaryDelayDays"`
	LoanAmount             float64 `json:"loanAmount"`
	MonthlyInstallment     float64 `json:"monthlyInstallment"`

	// Persisted outputs from a prior authoritative computation.
	// Zero/empty means "not computed"; the pipeline recomputes as fallback.
	RiskScore        int    `json:"riskScore,omitempty"`
	RiskLevel        string `json:"riskLevel,omitempty"`
	SuggestedAction  string `json:"suggestedAction,omitempty"`
	AbilityScore     int    `json:"abilityScore,omitempty"`
	WillingnessScore int    `json:"willingnessScore,omitempty"`
	CaseType         string `json:"caseType,omitempty"`
}

// Transaction categories observed in payment history.
const (
	CategoryGambling    = "Gambling"
	CategoryLendingApp  = "Lending App"
	CategoryInstallment = "EMI"
	CategoryGrocery     = "Grocery"
	CategoryUtility     = "Utilities"
	CategoryDining      = "Dining"
	CategoryShopping    = "Shopping"
)

// Transaction methods.
const (
	MethodCash      = "Cash"
	MethodCard      = "Card"
	MethodUPI       = "UPI"
	MethodAutoDebit = "AutoDebit"
)

// Transaction outcomes. OutcomeInstallmentBounced marks a failed
// auto-debit of a loan installment, the strongest single distress signal.
const (
	OutcomeDebit              = "DEBIT"
	OutcomeCredit             = "CREDIT"
	OutcomeInstallmentBounced = "EMI_BOUNCE"
)

// TransactionRecord is one append-only payment history fact.
type TransactionRecord struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	Merchant   string    `json:"merchant"`
	Method     string    `json:"method"`
	Outcome    string    `json:"outcome"`
}

// SalaryCreditRecord is one pay-period salary credit.
type SalaryCreditRecord struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	Period     string  `json:"period"` // YYYY-MM
	Amount     float64 `json:"amount"`
	DelayDays  int     `json:"delayDays"` // versus expected credit date
	Employer   string  `json:"employer"`
	CreditDate time.Time `json:"creditDate"`
}

// App activity action tags.
const (
	ActionLogin        = "Login"
	ActionBalanceCheck = "Balance Check"
	ActionInstallmentView = "EMI View"
	ActionLoanInquiry  = "Loan Inquiry"
)

// AppActivityRecord is one mobile/web app event.
type AppActivityRecord struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Device     string    `json:"device"`
}

// UtilityPaymentRecord is one utility bill and its settlement.
type UtilityPaymentRecord struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	BillDate    time.Time `json:"billDate"`
	PaymentDate time.Time `json:"paymentDate"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"` // Electricity, Postpaid, Broadband
	DaysPastDue int       `json:"daysPastDue"`
}

// SalaryLag is a dashboard-facing aggregate: a customer whose latest
// salary credit arrived materially late.
type SalaryLag struct {
	CustomerID   string    `json:"customerId"`
	CustomerName string    `json:"customerName"`
	DelayDays    int       `json:"delayDays"`
	CreditDate   time.Time `json:"creditDate"`
}
