package store

import (
	"context"

	"github.com/serpens2/weather-bot/internal/domain"
)

// Repo defines storage operations for registered users.
type Repo interface {
	GetUser(ctx context.Context, chatID string) (*domain.User, error)
	ListNotified(ctx context.Context) ([]domain.User, error)
	CountUsers(ctx context.Context) (int, error)
	// WithTx runs fn in one transaction: committed if fn returns nil,
	// rolled back if it returns an error or panics.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of statements available inside WithTx.
type Tx interface {
	GetUser(ctx context.Context, chatID string) (*domain.User, error)
	InsertUser(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, chatID string) (bool, error)
	SetNotify(ctx context.Context, chatID string, n *domain.NotifyTime) error
}
