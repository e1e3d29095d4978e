package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/solana-bundle-swapper/internal/models"
)

// SettlementSink receives every finished swap request
type SettlementSink interface {
	// RecordSettlement stores or forwards a settlement event
	RecordSettlement(ctx context.Context, ev *models.SettlementEvent) error
}

// SettlementHistory serves the most recent settlements, newest first
type SettlementHistory interface {
	RecentSettlements(ctx context.Context, limit int64) ([]*models.SettlementEvent, error)
}

// SettlementStore is a sink that also keeps history
type SettlementStore interface {
	SettlementSink
	SettlementHistory

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// SettlementHandler is a function that processes settlement events
type SettlementHandler func(*models.SettlementEvent)
