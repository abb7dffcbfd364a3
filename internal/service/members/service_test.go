package members

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

func newTestService(t *testing.T) (*Service, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	svc := NewService(store, "91", nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestListMissingRegistryIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateNumbersMembersSequentially(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.Create(ctx, models.MemberInput{NameEn: " Ravi ", Village: "Kondapur"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.CustNo)
	assert.Equal(t, "Ravi", first.NameEn)
	assert.True(t, first.IsActive)

	inactive := false
	second, err := svc.Create(ctx, models.MemberInput{NameEn: "Sita", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 2, second.CustNo)
	assert.False(t, second.IsActive)

	// Deactivating the highest number must not free it for reuse.
	third, err := svc.Create(ctx, models.MemberInput{NameEn: "Lakshmi"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.CustNo)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, []int{1, 3}, []int{active[0].CustNo, active[1].CustNo})

	_, err = svc.Create(ctx, models.MemberInput{NameEn: "  "})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLegacyMembersWithoutFlagAreActive(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := store.Put(ctx, &customersDocument{
		Meta:      docstore.Meta{ID: DocumentID},
		Customers: []memberRecord{{CustNo: 7, NameEn: "Old"}},
	})
	require.NoError(t, err)

	m, err := svc.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, m.IsActive)

	created, err := svc.Create(ctx, models.MemberInput{NameEn: "New"})
	require.NoError(t, err)
	assert.Equal(t, 8, created.CustNo)
}

func TestUpdateKeepsCustNo(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, models.MemberInput{NameEn: "Ravi", MobileNo: "98765 43210"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, 1, models.MemberInput{NameEn: "Ravi Kumar", NameTel: "రవి"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CustNo)
	assert.Equal(t, "Ravi Kumar", updated.NameEn)
	assert.True(t, updated.IsActive)

	off := false
	updated, err = svc.Update(ctx, 1, models.MemberInput{NameEn: "Ravi Kumar", IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, 42, models.MemberInput{NameEn: "Nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByMobile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, models.MemberInput{NameEn: "Ravi", MobileNo: "98765 43210"})
	require.NoError(t, err)

	m, err := svc.FindByMobile(ctx, "919876543210")
	require.NoError(t, err)
	assert.Equal(t, 1, m.CustNo)

	_, err = svc.FindByMobile(ctx, "919999999999")
	assert.ErrorIs(t, err, ErrNotFound)
}
