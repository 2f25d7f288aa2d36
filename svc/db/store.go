package db

import (
	"context"

	"pinbin/pkg/domain"
)

// Store is the single owner of durable User and Paste state. Every mutation
// commits to the durable medium before it returns; a successful call must
// survive a process restart.
type Store interface {
	GetUser(ctx context.Context, id int) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, username, plainPassword string) (*domain.User, error)
	UpdateUser(ctx context.Context, id int, changes domain.UserUpdate) error
	DeleteUser(ctx context.Context, id int) error
	GetAllUsers(ctx context.Context) ([]domain.User, error)

	CreatePaste(ctx context.Context, params domain.CreatePasteParams, ownerID int) (*domain.Paste, error)
	GetPaste(ctx context.Context, urlID string) (*domain.Paste, error)
	GetPasteByID(ctx context.Context, id int) (*domain.Paste, error)
	GetUserPastes(ctx context.Context, ownerID int) ([]domain.Paste, error)
	GetAllPastes(ctx context.Context) ([]domain.Paste, error)
	GetPinnedPastes(ctx context.Context) ([]domain.Paste, error)
	GetRecentPastes(ctx context.Context, limit int) ([]domain.Paste, error)
	SetPastePinned(ctx context.Context, id int, pinned bool) error
	DeletePaste(ctx context.Context, id int) error

	Close() error
}
