package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// BatchItem is one outcome of a batch enrichment. Exactly one of
// Result or Err is set.
type BatchItem struct {
	CustomerID string  `json:"customerId"`
	Result     *Result `json:"result,omitempty"`
	Err        string  `json:"error,omitempty"`
}

// EnrichBatch runs the pipeline for a set of customers concurrently.
// The input is capped at the configured batch limit to bound tail
// latency; results come back in input order. Per-customer failures are
// isolated into their item rather than failing the batch.
func (p *Pipeline) EnrichBatch(ctx context.Context, customerIDs []string) []BatchItem {
	if len(customerIDs) > p.batchLimit {
		p.log.Info("batch capped", "requested", len(customerIDs), "limit", p.batchLimit)
		customerIDs = customerIDs[:p.batchLimit]
	}

	items := make([]BatchItem, len(customerIDs))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, id := range customerIDs {
		wg.Add(1)
		go func(idx int, customerID string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			item := BatchItem{CustomerID: customerID}
			result, err := p.Run(ctx, customerID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				item.Err = "not found"
			case err != nil:
				item.Err = err.Error()
			default:
				item.Result = result
			}
			items[idx] = item
		}(i, id)
	}

	wg.Wait()
	return items
}
