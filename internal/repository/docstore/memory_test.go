package docstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Meta
	Text string `json:"text"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Get(ctx, "missing", &note{})
	assert.ErrorIs(t, err, ErrNotFound)

	doc := &note{Meta: Meta{ID: "n1"}, Text: "first"}
	rev, err := store.Put(ctx, doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rev, "1-"))
	assert.Equal(t, rev, doc.Rev)

	var got note
	require.NoError(t, store.Get(ctx, "n1", &got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, rev, got.Rev)
	assert.Equal(t, "first", got.Text)
}

func TestMemoryStoreRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, &note{Meta: Meta{ID: "n1"}, Text: "a"})
	require.NoError(t, err)

	var first, second note
	require.NoError(t, store.Get(ctx, "n1", &first))
	require.NoError(t, store.Get(ctx, "n1", &second))

	first.Text = "b"
	rev, err := store.Put(ctx, &first)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rev, "2-"))

	second.Text = "c"
	_, err = store.Put(ctx, &second)
	assert.ErrorIs(t, err, ErrConflict)

	// Creating over an existing document without a revision conflicts too.
	_, err = store.Put(ctx, &note{Meta: Meta{ID: "n1"}})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = store.Put(ctx, &note{Meta: Meta{ID: "n2", Rev: "3-abc"}})
	assert.ErrorIs(t, err, ErrConflict)

	var got note
	require.NoError(t, store.Get(ctx, "n1", &got))
	assert.Equal(t, "b", got.Text)
	assert.Equal(t, 1, store.Len())
}

func TestNextRev(t *testing.T) {
	assert.True(t, strings.HasPrefix(NextRev(""), "1-"))
	assert.True(t, strings.HasPrefix(NextRev("7-deadbeef"), "8-"))
	assert.NotContains(t, strings.TrimPrefix(NextRev(""), "1-"), "-")
}
