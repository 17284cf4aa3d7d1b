package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/audit"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ensemble"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/intervention"
	"github.com/opensource-finance/kestrel/internal/narrative"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/resolver"
)

type captureBus struct {
	mu       sync.Mutex
	messages map[string]int
}

func newCaptureBus() *captureBus {
	return &captureBus{messages: make(map[string]int)}
}

func (b *captureBus) Publish(_ context.Context, topic string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[topic]++
	return nil
}

func (b *captureBus) Subscribe(context.Context, string, domain.MessageHandler) (domain.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (b *captureBus) Ping(context.Context) error { return nil }
func (b *captureBus) Close() error               { return nil }

func (b *captureBus) count(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[topic]
}

func newTestPipeline(t *testing.T) (*Pipeline, *repository.MemoryStore, *captureBus) {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	store := repository.NewMemoryStore()
	bus := newCaptureBus()

	selector, err := intervention.NewSelector(audit.NewSink(store, bus, log), narrative.NewTemplateGenerator(), log)
	if err != nil {
		t.Fatalf("selector: %v", err)
	}

	p := New(
		store,
		features.NewDeriver(store, nil),
		ensemble.New(ensemble.NewHeuristicProvider(), log),
		resolver.New(log),
		selector,
		bus,
		Config{BatchEnrichLimit: 5, Workers: 2},
		log,
	)
	return p, store, bus
}

func seedCustomer(t *testing.T, store *repository.MemoryStore, p *domain.CustomerProfile) {
	t.Helper()
	if err := store.SaveProfile(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestRunNotFound(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	_, err := p.Run(context.Background(), "CUST-NOPE")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRunFullPipeline(t *testing.T) {
	p, store, bus := newTestPipeline(t)
	ctx := context.Background()

	seedCustomer(t, store, &domain.CustomerProfile{
		CustomerID:             "CUST-RUN",
		Name:                   "Ravi Iyer",
		CreditScore:            560,
		CreditUtilization:      95,
		SavingsChangePct:       -45,
		CurrentSalaryDelayDays: 25,
		LoanAmount:             800000,
		MonthlySalary:          60000,
		MonthlyInstallment:     40000,
	})
	if err := store.AddTransaction(ctx, &domain.TransactionRecord{
		CustomerID: "CUST-RUN",
		Timestamp:  time.Now().AddDate(0, 0, -2),
		Amount:     5000,
		Category:   domain.CategoryInstallment,
		Method:     domain.MethodAutoDebit,
		Outcome:    domain.OutcomeInstallmentBounced,
	}); err != nil {
		t.Fatalf("seed txn: %v", err)
	}
	if err := store.AddTransaction(ctx, &domain.TransactionRecord{
		CustomerID: "CUST-RUN",
		Timestamp:  time.Now().AddDate(0, 0, -2),
		Amount:     20000,
		Category:   domain.CategoryGambling,
		Method:     domain.MethodUPI,
		Outcome:    domain.OutcomeDebit,
	}); err != nil {
		t.Fatalf("seed txn: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AddAppActivity(ctx, &domain.AppActivityRecord{
			CustomerID: "CUST-RUN",
			Timestamp:  time.Now().AddDate(0, 0, -10-i),
			Action:     domain.ActionLoanInquiry,
		}); err != nil {
			t.Fatalf("seed activity: %v", err)
		}
	}

	result, err := p.Run(ctx, "CUST-RUN")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Assessment.Level != domain.LevelCritical {
		t.Errorf("severely delayed customer should be Critical, got %s (score %d)",
			result.Assessment.Level, result.Assessment.FusionScore)
	}
	if result.Context == nil || result.Intervention == nil {
		t.Fatal("incomplete result")
	}
	if result.Intervention.Primary.ID == "" {
		t.Error("pipeline must always select a primary offer")
	}
	if result.Intervention.Message == "" {
		t.Error("pipeline must always render outreach copy")
	}

	if bus.count(domain.TopicAssessmentCompleted) != 1 {
		t.Errorf("assessment completion not published")
	}
	if bus.count(domain.TopicRiskAlert) != 1 {
		t.Errorf("critical outcome should raise a risk alert")
	}

	// selection was audited through the sink
	if entries := store.AuditEntries(); len(entries) != 1 {
		t.Errorf("want one audit entry, got %d", len(entries))
	}
}

func TestRunHealthyCustomerNoAlert(t *testing.T) {
	p, store, bus := newTestPipeline(t)

	seedCustomer(t, store, &domain.CustomerProfile{
		CustomerID:    "CUST-FINE",
		Name:          "Meera Shah",
		CreditScore:   820,
		MonthlySalary: 90000,
	})

	result, err := p.Run(context.Background(), "CUST-FINE")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Assessment.Level == domain.LevelCritical {
		t.Errorf("clean customer should not be Critical")
	}
	if result.Context.RareCaseDetected {
		t.Errorf("clean customer flagged rare: %+v", result.Context)
	}
	if bus.count(domain.TopicRiskAlert) != 0 {
		t.Errorf("no alert expected for healthy customer")
	}
}

func TestRunDeterministic(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	seedCustomer(t, store, &domain.CustomerProfile{
		CustomerID:             "CUST-DET",
		Name:                   "Det Erminism",
		CreditScore:            640,
		CreditUtilization:      70,
		CurrentSalaryDelayDays: 6,
		MonthlySalary:          55000,
	})

	a, err := p.Run(context.Background(), "CUST-DET")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := p.Run(context.Background(), "CUST-DET")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if a.Assessment.FusionScore != b.Assessment.FusionScore {
		t.Errorf("fusion score not reproducible: %d then %d",
			a.Assessment.FusionScore, b.Assessment.FusionScore)
	}
	if a.Intervention.Primary.ID != b.Intervention.Primary.ID {
		t.Errorf("selection not reproducible: %s then %s",
			a.Intervention.Primary.ID, b.Intervention.Primary.ID)
	}
}

func TestEnrichBatch(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	for i := 0; i < 3; i++ {
		seedCustomer(t, store, &domain.CustomerProfile{
			CustomerID:    fmt.Sprintf("CUST-B%d", i),
			Name:          fmt.Sprintf("Batch %d", i),
			CreditScore:   700,
			MonthlySalary: 60000,
		})
	}

	items := p.EnrichBatch(context.Background(), []string{"CUST-B0", "CUST-B1", "CUST-MISSING", "CUST-B2"})
	if len(items) != 4 {
		t.Fatalf("want 4 items, got %d", len(items))
	}

	for i, want := range []string{"CUST-B0", "CUST-B1", "CUST-MISSING", "CUST-B2"} {
		if items[i].CustomerID != want {
			t.Errorf("order[%d]: got %s, want %s", i, items[i].CustomerID, want)
		}
	}
	if items[2].Err != "not found" || items[2].Result != nil {
		t.Errorf("missing customer item: %+v", items[2])
	}
	for _, i := range []int{0, 1, 3} {
		if items[i].Result == nil || items[i].Err != "" {
			t.Errorf("item %d should carry a result: %+v", i, items[i])
		}
	}
}

func TestEnrichBatchCapped(t *testing.T) {
	p, store, _ := newTestPipeline(t)

	ids := make([]string, 8) // limit configured at 5
	for i := range ids {
		ids[i] = fmt.Sprintf("CUST-C%d", i)
		seedCustomer(t, store, &domain.CustomerProfile{
			CustomerID:    ids[i],
			CreditScore:   700,
			MonthlySalary: 60000,
		})
	}

	items := p.EnrichBatch(context.Background(), ids)
	if len(items) != 5 {
		t.Fatalf("batch should cap at 5, got %d", len(items))
	}
}
