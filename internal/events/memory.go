package events

import (
	"context"
	"sync"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/constants"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/storage"
)

// MemoryStore keeps recent settlements in process. It is used when Redis is
// not configured.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*models.SettlementEvent
	max    int
}

var _ storage.SettlementStore = (*MemoryStore)(nil)

func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = constants.MaxRecentSettlements
	}
	return &MemoryStore{max: max}
}

func (m *MemoryStore) RecordSettlement(_ context.Context, ev *models.SettlementEvent) error {
	cp := *ev
	m.mu.Lock()
	m.events = append(m.events, &cp)
	if over := len(m.events) - m.max; over > 0 {
		m.events = append(m.events[:0:0], m.events[over:]...)
	}
	m.mu.Unlock()
	return nil
}

// RecentSettlements returns up to limit events, newest first.
func (m *MemoryStore) RecentSettlements(_ context.Context, limit int64) ([]*models.SettlementEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := int64(len(m.events))
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*models.SettlementEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Fanout forwards every event to each sink, returning the first error after
// trying all of them.
type Fanout []storage.SettlementSink

func (f Fanout) RecordSettlement(ctx context.Context, ev *models.SettlementEvent) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.RecordSettlement(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
