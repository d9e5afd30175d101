package docs

import (
	"context"

	"veriledger/pkg/domain"
)

// Store persists document entries. Put fails with sentinel.ErrConflict when
// the ID is already taken; Get fails with sentinel.ErrNotFound when absent.
type Store interface {
	Get(ctx context.Context, id domain.DocumentID) (*Document, error)
	Put(ctx context.Context, doc *Document) error
	List(ctx context.Context) ([]Document, error)
}
