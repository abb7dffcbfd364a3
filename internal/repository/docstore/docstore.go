// Package docstore defines the revisioned document store the ledger engine
// persists to. Every write carries the revision it was based on; a stale
// revision fails with ErrConflict and nothing is merged.
package docstore

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write carries a stale or missing revision.
	ErrConflict = errors.New("document update conflict")
)

// Meta carries the identity and revision of a stored document. Embed it in
// document types.
type Meta struct {
	ID  string `json:"_id,omitempty" bson:"_id"`
	Rev string `json:"_rev,omitempty" bson:"_rev,omitempty"`
}

// Metadata exposes the embedded Meta to the store.
func (m *Meta) Metadata() *Meta { return m }

// Document is any value with an embedded Meta.
type Document interface {
	Metadata() *Meta
}

// Store reads and writes whole documents.
type Store interface {
	// Get decodes the document with the given id into doc and sets its Meta.
	Get(ctx context.Context, id string, doc Document) error
	// Put writes doc under doc.Metadata().ID. An empty Rev creates the
	// document; otherwise Rev must match the stored revision. The new
	// revision is returned and written back into doc.
	Put(ctx context.Context, doc Document) (string, error)
}

// NextRev builds the revision following prev in the "{generation}-{token}"
// shape CouchDB uses.
func NextRev(prev string) string {
	gen := 0
	if head, _, ok := strings.Cut(prev, "-"); ok {
		gen, _ = strconv.Atoi(head)
	}
	return strconv.Itoa(gen+1) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
