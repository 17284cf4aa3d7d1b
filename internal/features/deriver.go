// Package features derives the named feature vector and the heuristic
// fast-path score from raw multi-table customer records.
package features

import (
	"context"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Window bounds for time-windowed aggregates.
const (
	txWindow       = 90 * 24 * time.Hour
	activityWindow = 180 * 24 * time.Hour
	spendWindow30d = 30 * 24 * time.Hour
	spendWindow60d = 60 * 24 * time.Hour
	recentWeek     = 7 * 24 * time.Hour
)

// assumedMonthlySalary is the documented baseline used when a profile
// carries no income information at all.
const assumedMonthlySalary = 50000.0

const vectorTTL = 5 * time.Minute

// Deriver turns raw records for one customer into a FeatureVector.
// All default substitution for missing or empty inputs happens here;
// downstream consumers read fields directly.
type Deriver struct {
	store domain.RecordStore
	cache domain.Cache
	now   func() time.Time
}

// NewDeriver creates a feature deriver. cache may be nil.
func NewDeriver(store domain.RecordStore, cache domain.Cache) *Deriver {
	return &Deriver{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// Derive computes the feature vector for one customer.
// Returns domain.ErrNotFound when no profile record exists.
func (d *Deriver) Derive(ctx context.Context, customerID string) (*domain.FeatureVector, error) {
	if d.cache != nil {
		if v, err := d.cache.GetFeatureVector(ctx, customerID); err == nil && v != nil {
			return v, nil
		}
	}

	profile, err := d.store.GetProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}

	now := d.now()

	transactions, err := d.store.GetTransactions(ctx, customerID, now.Add(-txWindow))
	if err != nil {
		return nil, err
	}
	salaries, err := d.store.GetSalaryHistory(ctx, customerID)
	if err != nil {
		return nil, err
	}
	activity, err := d.store.GetAppActivity(ctx, customerID, now.Add(-activityWindow))
	if err != nil {
		return nil, err
	}
	utilities, err := d.store.GetUtilityPayments(ctx, customerID)
	if err != nil {
		return nil, err
	}

	v := d.compute(profile, transactions, salaries, activity, utilities, now)

	if d.cache != nil {
		_ = d.cache.SetFeatureVector(ctx, customerID, v, vectorTTL)
	}

	return v, nil
}

func (d *Deriver) compute(
	p *domain.CustomerProfile,
	transactions []*domain.TransactionRecord,
	salaries []*domain.SalaryCreditRecord,
	activity []*domain.AppActivityRecord,
	utilities []*domain.UtilityPaymentRecord,
	now time.Time,
) *domain.FeatureVector {
	v := &domain.FeatureVector{
		CustomerID:         p.CustomerID,
		Name:               p.Name,
		AnnualIncome:       p.AnnualIncome,
		MonthlySalary:      monthlySalary(p),
		CreditScore:        float64(p.CreditScore),
		CreditUtilization:  p.CreditUtilization,
		SavingsChangePct:   p.SavingsChangePct,
		LoanAmount:         p.LoanAmount,
		MonthlyInstallment: p.MonthlyInstallment,
		CurrentSalaryDelay: float64(p.CurrentSalaryDelayDays),
	}

	d.financialSignals(v, transactions, now)
	d.behavioralSignals(v, transactions, activity, now)
	d.temporalSignals(v, transactions, salaries, utilities)

	return v
}

// financialSignals fills spend aggregates and liquidity measures.
func (d *Deriver) financialSignals(v *domain.FeatureVector, transactions []*domain.TransactionRecord, now time.Time) {
	var totalOutflow, cashOutflow float64

	for _, tr := range transactions {
		if tr.Outcome != domain.OutcomeDebit {
			continue
		}
		age := now.Sub(tr.Timestamp)

		if age <= spendWindow30d {
			v.TotalSpend30d += tr.Amount
		}
		if age <= spendWindow60d {
			switch tr.Category {
			case domain.CategoryGambling:
				v.SpendGambling60d += tr.Amount
			case domain.CategoryLendingApp:
				v.SpendLendingApp60d += tr.Amount
			case domain.CategoryInstallment:
				v.SpendInstallment60d += tr.Amount
			}
		}

		totalOutflow += tr.Amount
		if tr.Method == domain.MethodCash {
			cashOutflow += tr.Amount
		}
	}

	salary := v.MonthlySalary // never zero, see monthlySalary

	v.InstallmentToIncome = v.MonthlyInstallment / salary
	v.DTIRatio = math.Max(v.InstallmentToIncome, (v.SpendInstallment60d/2)/salary)
	v.DistressSpendRatio = ((v.SpendGambling60d + v.SpendLendingApp60d) / 2) / salary

	// Liquidity Compression: magnitude of negative savings change.
	v.LiquidityCompression = math.Max(0, -v.SavingsChangePct)

	// Financial Runway: proxy balance over estimated daily burn, in days.
	proxyBalance := salary * (1 + v.SavingsChangePct/100)
	dailyBurn := math.Max(1, v.TotalSpend30d/30)
	v.FinancialRunwayDays = math.Min(365, math.Max(0, proxyBalance/dailyBurn))

	if totalOutflow > 0 {
		v.CashHoardingIndex = cashOutflow / totalOutflow
	}
}

// behavioralSignals fills app-usage measures and the discretionary trend.
func (d *Deriver) behavioralSignals(v *domain.FeatureVector, transactions []*domain.TransactionRecord, activity []*domain.AppActivityRecord, now time.Time) {
	var logins, nightLogins, balanceChecks, inquiries, recentEvents int

	for _, a := range activity {
		switch a.Action {
		case domain.ActionLogin:
			logins++
			if h := a.Timestamp.Hour(); h >= 0 && h < 5 {
				nightLogins++
			}
		case domain.ActionBalanceCheck:
			balanceChecks++
		case domain.ActionLoanInquiry:
			inquiries++
		}
		if now.Sub(a.Timestamp) <= recentWeek {
			recentEvents++
		}
	}

	v.LoginCount180d = float64(len(activity))
	v.LoanInquiryCount = float64(inquiries)
	if logins > 0 {
		v.NightLoginRatio = float64(nightLogins) / float64(logins)
	}
	if len(activity) > 0 {
		v.BehavioralAnxietyIndex = float64(balanceChecks) / float64(len(activity))
	}

	// Activity velocity: recent daily event rate against the 180-day
	// baseline rate. 1.0 = steady state.
	baselineRate := v.LoginCount180d / 180
	if baselineRate > 0 {
		v.ActivityVelocity = (float64(recentEvents) / 7) / baselineRate
	} else {
		v.ActivityVelocity = 1.0
	}

	v.DiscretionarySpendTrend = discretionaryTrend(transactions, now)
}

// discretionary categories are everything that is not an obligation.
func isDiscretionary(category string) bool {
	switch category {
	case domain.CategoryInstallment, domain.CategoryLendingApp, domain.CategoryUtility, domain.CategoryGrocery:
		return false
	}
	return true
}

// discretionaryTrend compares the most recent week's discretionary daily
// spend with the three weeks before it. Defaults to 1.0 when no past
// baseline exists; clamped to [0,3].
func discretionaryTrend(transactions []*domain.TransactionRecord, now time.Time) float64 {
	var recent, past float64
	for _, tr := range transactions {
		if tr.Outcome != domain.OutcomeDebit || !isDiscretionary(tr.Category) {
			continue
		}
		age := now.Sub(tr.Timestamp)
		switch {
		case age <= recentWeek:
			recent += tr.Amount
		case age <= 4*recentWeek:
			past += tr.Amount
		}
	}

	if past <= 0 {
		return 1.0
	}

	trend := (recent / 7) / (past / 21)
	return math.Min(3, math.Max(0, trend))
}

// temporalSignals fills salary-delay, volatility and payment-lag measures.
func (d *Deriver) temporalSignals(v *domain.FeatureVector, transactions []*domain.TransactionRecord, salaries []*domain.SalaryCreditRecord, utilities []*domain.UtilityPaymentRecord) {
	if len(salaries) > 0 {
		var sumDelay, maxDelay float64
		amounts := make([]float64, 0, len(salaries))
		for _, sc := range salaries {
			delay := float64(sc.DelayDays)
			sumDelay += delay
			if delay > maxDelay {
				maxDelay = delay
			}
			amounts = append(amounts, sc.Amount)
		}
		v.AvgSalaryDelay = sumDelay / float64(len(salaries))
		v.MaxSalaryDelay = maxDelay
		v.IncomeVolatility = coefficientOfVariation(amounts)
		v.SalaryDelayTrend = delayTrend(salaries)
	}

	// +1 guards against division by zero on clean histories.
	v.SalaryDelayIndex = v.CurrentSalaryDelay / (v.AvgSalaryDelay + 1)

	for _, tr := range transactions {
		if tr.Outcome == domain.OutcomeInstallmentBounced {
			v.AutoDebitFailCount++
		}
	}

	if len(utilities) > 0 {
		var sum float64
		for _, u := range utilities {
			sum += float64(u.DaysPastDue)
		}
		v.UtilityPaymentLatency = sum / float64(len(utilities))
	}
}

// delayTrend compares the two most recent salary delays with the rest.
// Salaries arrive most-recent-first from the store. Positive = worsening.
func delayTrend(salaries []*domain.SalaryCreditRecord) float64 {
	if len(salaries) < 3 {
		return 0
	}

	var recent, older float64
	for i, sc := range salaries {
		if i < 2 {
			recent += float64(sc.DelayDays)
		} else {
			older += float64(sc.DelayDays)
		}
	}
	return recent/2 - older/float64(len(salaries)-2)
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, x := range values {
		sum += x
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, x := range values {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance) / mean
}

// monthlySalary centralizes the income default chain: profile monthly
// salary, then annual income / 12, then the assumed baseline.
func monthlySalary(p *domain.CustomerProfile) float64 {
	if p.MonthlySalary > 0 {
		return p.MonthlySalary
	}
	if p.AnnualIncome > 0 {
		return p.AnnualIncome / 12
	}
	return assumedMonthlySalary
}
