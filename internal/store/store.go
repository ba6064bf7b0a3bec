// Package store defines the turn-audit storage interface and implementations.
package store

import (
	"context"

	"geniebot/internal/domain"
)

// Store persists processed turn records for operational inspection.
type Store interface {
	CreateTurn(ctx context.Context, turn *domain.Turn) error
	GetTurn(ctx context.Context, turnID string) (*domain.Turn, error)
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	Close() error
}
