// Package docs is the write-once legal-document registry: each entry binds a
// document ID to the hash of off-ledger prospectus or disclosure material.
package docs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/sha3"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
	"veriledger/pkg/platform/sentinel"
)

// HashDocument produces the canonical hash stored alongside a document URI.
func HashDocument(contents []byte) [32]byte {
	return sha3.Sum256(contents)
}

type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, derrors.New(derrors.CodeValidation, "document store is required")
	}
	return &Service{store: store, now: time.Now, logger: logger}, nil
}

// Set records a document entry. IDs are write-once: a second Set with the
// same ID fails even when the payload is identical.
func (s *Service) Set(ctx context.Context, id domain.DocumentID, uri string, hash [32]byte) error {
	if id == "" {
		return derrors.New(derrors.CodeValidation, "document id is required")
	}
	doc := &Document{ID: id, URI: uri, Hash: hash, AddedAt: s.now().UTC()}
	if err := s.store.Put(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return derrors.Newf(derrors.CodeDuplicateDocument, "document %q already recorded", id)
		}
		return derrors.Wrap(err, derrors.CodeInternal, "store document")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "document recorded", "document", id.String(), "uri", uri)
	}
	return nil
}

// Get returns a recorded document.
func (s *Service) Get(ctx context.Context, id domain.DocumentID) (*Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.Newf(derrors.CodeNotFound, "document %q not recorded", id)
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load document")
	}
	return doc, nil
}

// List returns all recorded documents in ID order.
func (s *Service) List(ctx context.Context) ([]Document, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list documents")
	}
	return out, nil
}
