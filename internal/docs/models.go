package docs

import (
	"time"

	"veriledger/pkg/domain"
)

// Document is one entry in the write-once document-hash table. Once stored,
// an entry never changes; amendments get a new ID.
type Document struct {
	ID      domain.DocumentID
	URI     string
	Hash    [32]byte
	AddedAt time.Time
}
