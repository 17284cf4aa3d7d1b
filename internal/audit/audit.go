// Package audit fans selection records out to the append-only store
// and the event bus. Failures never propagate: the pipeline's output
// must not depend on successful audit logging.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Sink writes audit entries to the record store and announces them on
// the bus. Both targets are optional; a nil target is skipped.
type Sink struct {
	store domain.RecordStore
	bus   domain.EventBus
	log   *slog.Logger
}

func NewSink(store domain.RecordStore, bus domain.EventBus, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{store: store, bus: bus, log: log}
}

// Record appends one entry. The returned error exists to satisfy the
// Recorder contract; callers are expected to swallow it, and this
// implementation already absorbs every failure internally.
func (s *Sink) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if s.store != nil {
		if err := s.store.AppendAudit(ctx, entry); err != nil {
			s.log.Warn("audit store append failed", "customer_id", entry.CustomerID, "error", err)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(entry)
		if err == nil {
			err = s.bus.Publish(ctx, domain.TopicAuditAppended, payload)
		}
		if err != nil {
			s.log.Warn("audit publish failed", "customer_id", entry.CustomerID, "error", err)
		}
	}

	return nil
}
