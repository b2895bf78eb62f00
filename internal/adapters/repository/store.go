// Package repository persists avatars as YAML documents.
package repository

import (
	"context"

	"github.com/okian/immersivescaler/internal/domain/avatar"
)

// Store provides read/write access to avatar documents by name.
type Store interface {
	// Load reads and resolves the named avatar.
	// Returns ErrNotFound if no document has that name.
	Load(ctx context.Context, name string) (*avatar.Avatar, error)

	// Save writes the avatar under name, replacing any previous document.
	Save(ctx context.Context, name string, a *avatar.Avatar) error

	// List returns the stored names in lexical order.
	List(ctx context.Context) ([]string, error)
}
