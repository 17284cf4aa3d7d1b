package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func newTestDeriver(t *testing.T) (*Deriver, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	d := NewDeriver(store, nil)
	d.now = func() time.Time { return testNow }
	return d, store
}

func seedProfile(t *testing.T, store *repository.MemoryStore, p *domain.CustomerProfile) {
	t.Helper()
	if err := store.SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func TestDeriveUnknownCustomer(t *testing.T) {
	d, _ := newTestDeriver(t)

	_, err := d.Derive(context.Background(), "CUST-MISSING")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeriveDefaultsOnEmptyHistory(t *testing.T) {
	d, store := newTestDeriver(t)
	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID:   "CUST-001",
		Name:         "Asha Rao",
		AnnualIncome: 1200000,
	})

	v, err := d.Derive(context.Background(), "CUST-001")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if v.MonthlySalary != 100000 {
		t.Errorf("monthly salary default: got %v, want 100000", v.MonthlySalary)
	}
	if v.DiscretionarySpendTrend != 1.0 {
		t.Errorf("trend default: got %v, want 1.0", v.DiscretionarySpendTrend)
	}
	if v.ActivityVelocity != 1.0 {
		t.Errorf("velocity default: got %v, want 1.0", v.ActivityVelocity)
	}
	if v.IncomeVolatility != 0 || v.AvgSalaryDelay != 0 || v.UtilityPaymentLatency != 0 {
		t.Errorf("history defaults not zero: volatility=%v delay=%v latency=%v",
			v.IncomeVolatility, v.AvgSalaryDelay, v.UtilityPaymentLatency)
	}
}

func TestDeriveAssumedBaselineIncome(t *testing.T) {
	d, store := newTestDeriver(t)
	seedProfile(t, store, &domain.CustomerProfile{CustomerID: "CUST-002", Name: "No Income"})

	v, err := d.Derive(context.Background(), "CUST-002")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if v.MonthlySalary != assumedMonthlySalary {
		t.Errorf("got %v, want assumed baseline %v", v.MonthlySalary, assumedMonthlySalary)
	}
}

func TestDeriveSpendWindows(t *testing.T) {
	d, store := newTestDeriver(t)
	ctx := context.Background()
	seedProfile(t, store, &domain.CustomerProfile{CustomerID: "CUST-003", MonthlySalary: 80000})

	add := func(daysAgo int, amount float64, category, method, outcome string) {
		t.Helper()
		err := store.AddTransaction(ctx, &domain.TransactionRecord{
			ID:         fmt.Sprintf("TXN-%d-%s", daysAgo, category),
			CustomerID: "CUST-003",
			Timestamp:  testNow.AddDate(0, 0, -daysAgo),
			Amount:     amount,
			Category:   category,
			Method:     method,
			Outcome:    outcome,
		})
		if err != nil {
			t.Fatalf("seed txn: %v", err)
		}
	}

	add(5, 2000, domain.CategoryGambling, domain.MethodUPI, domain.OutcomeDebit)
	add(45, 3000, domain.CategoryGambling, domain.MethodUPI, domain.OutcomeDebit) // in 60d, out of 30d
	add(70, 9000, domain.CategoryGambling, domain.MethodUPI, domain.OutcomeDebit) // out of 60d
	add(10, 4000, domain.CategoryLendingApp, domain.MethodCash, domain.OutcomeDebit)
	add(3, 6000, domain.CategoryInstallment, domain.MethodAutoDebit, domain.OutcomeDebit)
	add(2, 1500, domain.CategoryInstallment, domain.MethodAutoDebit, domain.OutcomeInstallmentBounced)
	add(1, 5000, domain.CategoryGrocery, domain.MethodCard, domain.OutcomeCredit) // credits never count

	v, err := d.Derive(ctx, "CUST-003")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if v.SpendGambling60d != 5000 {
		t.Errorf("gambling 60d: got %v, want 5000", v.SpendGambling60d)
	}
	if v.SpendLendingApp60d != 4000 {
		t.Errorf("lending 60d: got %v, want 4000", v.SpendLendingApp60d)
	}
	if v.TotalSpend30d != 12000 {
		t.Errorf("spend 30d: got %v, want 12000", v.TotalSpend30d)
	}
	if v.AutoDebitFailCount != 1 {
		t.Errorf("auto-debit fails: got %v, want 1", v.AutoDebitFailCount)
	}

	// (5000+4000)/2 monthly-ized over 80k salary
	wantDistress := 4500.0 / 80000
	if math.Abs(v.DistressSpendRatio-wantDistress) > 1e-9 {
		t.Errorf("distress ratio: got %v, want %v", v.DistressSpendRatio, wantDistress)
	}
}

func TestDeriveSalarySignals(t *testing.T) {
	d, store := newTestDeriver(t)
	ctx := context.Background()
	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID:             "CUST-004",
		MonthlySalary:          60000,
		CurrentSalaryDelayDays: 12,
	})

	delays := []int{15, 9, 2, 1, 0, 0} // most recent first
	for i, delay := range delays {
		err := store.AddSalaryCredit(ctx, &domain.SalaryCreditRecord{
			CustomerID: "CUST-004",
			Period:     testNow.AddDate(0, -i, 0).Format("2006-01"),
			Amount:     60000,
			DelayDays:  delay,
			CreditDate: testNow.AddDate(0, -i, 0),
		})
		if err != nil {
			t.Fatalf("seed salary: %v", err)
		}
	}

	v, err := d.Derive(ctx, "CUST-004")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	wantAvg := 27.0 / 6
	if math.Abs(v.AvgSalaryDelay-wantAvg) > 1e-9 {
		t.Errorf("avg delay: got %v, want %v", v.AvgSalaryDelay, wantAvg)
	}
	if v.MaxSalaryDelay != 15 {
		t.Errorf("max delay: got %v, want 15", v.MaxSalaryDelay)
	}
	wantIndex := 12 / (wantAvg + 1)
	if math.Abs(v.SalaryDelayIndex-wantIndex) > 1e-9 {
		t.Errorf("delay index: got %v, want %v", v.SalaryDelayIndex, wantIndex)
	}
	// recent (15+9)/2 = 12 vs older (2+1+0+0)/4 = 0.75
	if v.SalaryDelayTrend <= 0 {
		t.Errorf("delay trend should be positive (worsening), got %v", v.SalaryDelayTrend)
	}
	if v.IncomeVolatility != 0 {
		t.Errorf("constant salary should have zero volatility, got %v", v.IncomeVolatility)
	}
}

func TestDeriveBehavioralSignals(t *testing.T) {
	d, store := newTestDeriver(t)
	ctx := context.Background()
	seedProfile(t, store, &domain.CustomerProfile{CustomerID: "CUST-005", MonthlySalary: 50000})

	addEvent := func(daysAgo, hour int, action string) {
		t.Helper()
		ts := testNow.AddDate(0, 0, -daysAgo)
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), hour, 0, 0, 0, time.UTC)
		if err := store.AddAppActivity(ctx, &domain.AppActivityRecord{
			CustomerID: "CUST-005",
			Timestamp:  ts,
			Action:     action,
		}); err != nil {
			t.Fatalf("seed activity: %v", err)
		}
	}

	addEvent(1, 2, domain.ActionLogin)   // night
	addEvent(2, 14, domain.ActionLogin)  // day
	addEvent(3, 3, domain.ActionLogin)   // night
	addEvent(4, 10, domain.ActionBalanceCheck)
	addEvent(5, 11, domain.ActionBalanceCheck)
	addEvent(20, 9, domain.ActionLoanInquiry)

	v, err := d.Derive(ctx, "CUST-005")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if v.LoginCount180d != 6 {
		t.Errorf("activity count: got %v, want 6", v.LoginCount180d)
	}
	if math.Abs(v.NightLoginRatio-2.0/3) > 1e-9 {
		t.Errorf("night ratio: got %v, want 2/3", v.NightLoginRatio)
	}
	if math.Abs(v.BehavioralAnxietyIndex-2.0/6) > 1e-9 {
		t.Errorf("anxiety index: got %v, want 1/3", v.BehavioralAnxietyIndex)
	}
	if v.LoanInquiryCount != 1 {
		t.Errorf("inquiries: got %v, want 1", v.LoanInquiryCount)
	}
	// 5 of 6 events in the last week against a 180-day baseline
	if v.ActivityVelocity <= 1 {
		t.Errorf("velocity should exceed baseline, got %v", v.ActivityVelocity)
	}
}

func TestEncodeShapeAndDeterminism(t *testing.T) {
	v := &domain.FeatureVector{CustomerID: "CUST-ENC", MonthlySalary: 75000}

	a := v.Encode()
	b := v.Encode()

	if len(a) != domain.VectorSize {
		t.Fatalf("vector length: got %d, want %d", len(a), domain.VectorSize)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encoding not reproducible at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestHeuristicScore(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.CustomerProfile
		level   domain.RiskLevel
	}{
		{
			name: "severe distress clamps to 99",
			profile: domain.CustomerProfile{
				CustomerID:             "CUST-SEV",
				CurrentSalaryDelayDays: 25,
				CreditUtilization:      95,
				SavingsChangePct:       -45,
			},
			level: domain.LevelCritical,
		},
		{
			name:    "clean profile stays low",
			profile: domain.CustomerProfile{CustomerID: "CUST-CLEAN"},
			level:   domain.LevelLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := HeuristicScore(&tt.profile)
			if score < 1 || score > 99 {
				t.Fatalf("score out of range: %d", score)
			}
			if got := domain.LevelForScore(score); got != tt.level {
				t.Errorf("level: got %s, want %s (score %d)", got, tt.level, score)
			}
			if again := HeuristicScore(&tt.profile); again != score {
				t.Errorf("score not deterministic: %d then %d", score, again)
			}
		})
	}
}

func TestListCustomersOrdering(t *testing.T) {
	d, store := newTestDeriver(t)
	ctx := context.Background()

	seedProfile(t, store, &domain.CustomerProfile{CustomerID: "CUST-A", Name: "Low Risk"})
	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID: "CUST-B", Name: "Persisted High",
		RiskScore: 72, RiskLevel: string(domain.LevelHigh),
	})
	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID: "CUST-C", Name: "Persisted Higher",
		RiskScore: 91, RiskLevel: string(domain.LevelCritical),
	})

	all, err := d.ListCustomers(ctx, FilterAll, "", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 rows, got %d", len(all))
	}
	for i, want := range []string{"CUST-A", "CUST-B", "CUST-C"} {
		if all[i].CustomerID != want {
			t.Errorf("all ordering[%d]: got %s, want %s", i, all[i].CustomerID, want)
		}
	}

	high, err := d.ListCustomers(ctx, string(domain.LevelHigh), "", 0)
	if err != nil {
		t.Fatalf("list high: %v", err)
	}
	if len(high) != 1 || high[0].CustomerID != "CUST-B" {
		t.Fatalf("high filter: got %+v", high)
	}
	if high[0].RiskScore != 72 {
		t.Errorf("persisted score should win: got %d", high[0].RiskScore)
	}
}

func TestDashboardStats(t *testing.T) {
	d, store := newTestDeriver(t)
	ctx := context.Background()

	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID: "CUST-D1", Name: "Critical One", City: "Mumbai", ProductType: "Personal Loan",
		RiskScore: 92, RiskLevel: string(domain.LevelCritical),
	})
	seedProfile(t, store, &domain.CustomerProfile{
		CustomerID: "CUST-D2", Name: "Low One", City: "Pune", ProductType: "Credit Card",
		RiskScore: 18, RiskLevel: string(domain.LevelLow),
	})
	err := store.AddSalaryCredit(ctx, &domain.SalaryCreditRecord{
		CustomerID: "CUST-D1", Amount: 50000, DelayDays: 14, CreditDate: testNow.AddDate(0, 0, -10),
	})
	if err != nil {
		t.Fatalf("seed salary: %v", err)
	}

	stats, err := d.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if stats.Summary.TotalCustomers != 2 || stats.Summary.CriticalRisk != 1 {
		t.Errorf("summary: %+v", stats.Summary)
	}
	if len(stats.RiskDistribution) != 4 {
		t.Fatalf("distribution buckets: got %d, want 4", len(stats.RiskDistribution))
	}
	if stats.RiskDistribution[0].Level != string(domain.LevelCritical) || stats.RiskDistribution[0].Count != 1 {
		t.Errorf("critical bucket: %+v", stats.RiskDistribution[0])
	}
	if len(stats.Alerts) != 1 || stats.Alerts[0].CustomerID != "CUST-D1" {
		t.Fatalf("alerts: %+v", stats.Alerts)
	}
	if len(stats.GeoRisk) != 2 || stats.GeoRisk[0].City != "Mumbai" {
		t.Errorf("geo risk should rank Mumbai first: %+v", stats.GeoRisk)
	}
	if len(stats.RiskTrend) != 6 {
		t.Errorf("trend points: got %d, want 6", len(stats.RiskTrend))
	}
	last := stats.RiskTrend[5]
	if last.Date != testNow.Format("2006-01-02") {
		t.Errorf("trend should end today: %s", last.Date)
	}
}
