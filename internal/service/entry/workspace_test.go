package entry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     map[string]*models.TenDayLedger
	members   []int
	days      int
	loads     int
	refreshes int
	saves     int
	failErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]*models.TenDayLedger{}, members: []int{1, 2}, days: 3}
}

// fill adds the template days and members l is missing.
func (f *fakeStore) fill(l *models.TenDayLedger) *models.TenDayLedger {
	for _, d := range period.Days(l.TenDayStart, l.TenDayStart.AddDate(0, 0, f.days-1)) {
		if l.Day(d) == nil {
			l.Records = append(l.Records, models.LedgerDayRecord{Day: d})
		}
	}
	l.SortRecords()
	for i := range l.Records {
		for _, custNo := range f.members {
			if l.Records[i].Customer(custNo) == nil {
				l.Records[i].Quantities = append(l.Records[i].Quantities, models.CustDayRecord{CustNo: custNo})
			}
		}
	}
	return l
}

func (f *fakeStore) Load(_ context.Context, start time.Time) (*models.TenDayLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if l, ok := f.saved[period.Format(start)]; ok {
		return f.fill(l.Clone()), nil
	}
	return f.fill(&models.TenDayLedger{TenDayStart: start}), nil
}

func (f *fakeStore) Refresh(_ context.Context, l *models.TenDayLedger) (*models.TenDayLedger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.fill(l.Clone()), nil
}

func (f *fakeStore) Save(_ context.Context, l *models.TenDayLedger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.saves++
	l.RecomputeDayTotals()
	f.saved[period.Format(l.TenDayStart)] = l.Clone()
	return nil
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestRecordReadingsMarksDirty(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	assert.False(t, ws.Dirty(day(1)))

	l, err := ws.RecordReadings(ctx, day(1), []Reading{
		{Day: day(2), CustNo: 2, Session: models.SessionAM, Qty: 5, Fat: 4},
		{Day: day(2), CustNo: 2, Session: models.SessionPM, Qty: 3.5, Fat: 6.1},
	})
	require.NoError(t, err)
	assert.True(t, ws.Dirty(day(1)))
	assert.Equal(t, models.MilkRecord{Qty: 5, Fat: 4}, l.Day(day(2)).Customer(2).AM)
	assert.Equal(t, 3.5, l.Day(day(2)).Customer(2).PM.Qty)
	assert.Empty(t, store.saved)

	// The returned ledger is a copy.
	l.Day(day(2)).Customer(2).AM.Qty = 99
	again, err := ws.Open(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 5.0, again.Day(day(2)).Customer(2).AM.Qty)
	assert.Equal(t, 1, store.loads)
}

func TestRecordReadingsRejectsBadInputWithoutMutation(t *testing.T) {
	ctx := context.Background()
	ws := NewWorkspace(newFakeStore(), nil)

	_, err := ws.RecordReadings(ctx, day(1), []Reading{
		{Day: day(2), CustNo: 1, Session: models.SessionAM, Qty: 4, Fat: 4},
		{Day: day(2), CustNo: 2, Session: models.SessionAM, Qty: -1, Fat: 4},
	})
	assert.ErrorIs(t, err, ErrNegativeValue)

	_, err = ws.RecordReadings(ctx, day(1), []Reading{{Day: day(11), CustNo: 1, Session: models.SessionAM, Qty: 1}})
	assert.ErrorIs(t, err, ErrDayOutOfPeriod)

	_, err = ws.RecordReadings(ctx, day(1), []Reading{{Day: day(2), CustNo: 1, Session: "NOON", Qty: 1}})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = ws.RecordReadings(ctx, day(2), nil)
	assert.ErrorIs(t, err, period.ErrInvalidStart)

	l, err := ws.Open(ctx, day(1))
	require.NoError(t, err)
	assert.False(t, l.Day(day(2)).Customer(1).HasData())
	assert.False(t, ws.Dirty(day(1)))
}

func TestRecordReadingsCreatesMissingDay(t *testing.T) {
	ws := NewWorkspace(newFakeStore(), nil)

	l, err := ws.RecordReadings(context.Background(), day(1), []Reading{
		{Day: day(7), CustNo: 3, Session: models.SessionPM, Qty: 2, Fat: 5},
	})
	require.NoError(t, err)

	rec := l.Day(day(7))
	require.NotNil(t, rec)
	assert.Equal(t, []int{1, 2, 3}, []int{rec.Quantities[0].CustNo, rec.Quantities[1].CustNo, rec.Quantities[2].CustNo})
	assert.Equal(t, day(7), l.LastDay())
}

func TestSaveClearsDirtyAndFailureKeepsEdits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	_, err := ws.RecordReadings(ctx, day(1), []Reading{{Day: day(1), CustNo: 1, Session: models.SessionAM, Qty: 2, Fat: 3}})
	require.NoError(t, err)

	store.failErr = errors.New("conflict")
	_, err = ws.Save(ctx, day(1))
	require.Error(t, err)
	assert.True(t, ws.Dirty(day(1)))
	l, err := ws.Open(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, l.Day(day(1)).Customer(1).AM.Qty)

	store.failErr = nil
	saved, err := ws.Save(ctx, day(1))
	require.NoError(t, err)
	assert.False(t, ws.Dirty(day(1)))
	assert.Equal(t, 2.0, saved.Day(day(1)).DayTotal.AM.Qty)

	_, err = ws.ClearReading(ctx, day(1), day(1), 1, models.SessionAM)
	require.NoError(t, err)
	ws.Discard(day(1))
	assert.False(t, ws.Dirty(day(1)))

	l, err = ws.Open(ctx, day(1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, l.Day(day(1)).Customer(1).AM.Qty)
}

func TestUpdateAppliesOnlyAfterSave(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	_, err := ws.Update(ctx, day(11), func(l *models.TenDayLedger) error {
		l.IsBilled = true
		return errors.New("rejected")
	})
	require.Error(t, err)
	l, err := ws.Open(ctx, day(11))
	require.NoError(t, err)
	assert.False(t, l.IsBilled)

	store.failErr = errors.New("offline")
	_, err = ws.Update(ctx, day(11), func(l *models.TenDayLedger) error {
		l.IsBilled = true
		return nil
	})
	require.Error(t, err)
	l, err = ws.Open(ctx, day(11))
	require.NoError(t, err)
	assert.False(t, l.IsBilled)

	store.failErr = nil
	l, err = ws.Update(ctx, day(11), func(l *models.TenDayLedger) error {
		l.IsBilled = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, l.IsBilled)
	assert.True(t, store.saved["2025-01-11"].IsBilled)
}

func TestFlushDirtySavesOnlyDirtyBuffers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	_, err := ws.Open(ctx, day(1))
	require.NoError(t, err)
	_, err = ws.RecordReadings(ctx, day(11), []Reading{{Day: day(12), CustNo: 1, Session: models.SessionPM, Qty: 1, Fat: 1}})
	require.NoError(t, err)
	_, err = ws.RecordReadings(ctx, day(21), []Reading{{Day: day(22), CustNo: 2, Session: models.SessionAM, Qty: 1, Fat: 1}})
	require.NoError(t, err)

	store.failErr = errors.New("offline")
	n, err := ws.FlushDirty(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, ws.Dirty(day(11)))

	store.failErr = nil
	n, err = ws.FlushDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.saves)
	assert.False(t, ws.Dirty(day(11)))
	assert.False(t, ws.Dirty(day(21)))

	n, err = ws.FlushDirty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenFollowsClockAndMembers(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	l, err := ws.Open(ctx, day(1))
	require.NoError(t, err)
	require.Len(t, l.Records, 3)

	store.days, store.members = 6, []int{1, 2, 4}
	l, err = ws.Open(ctx, day(1))
	require.NoError(t, err)
	require.Len(t, l.Records, 6)
	for _, r := range l.Records {
		assert.Len(t, r.Quantities, 3, "day %s", period.Format(r.Day))
	}
	assert.Equal(t, 2, store.loads)

	// Unsaved edits are extended in place instead of being reloaded.
	_, err = ws.RecordReadings(ctx, day(1), []Reading{{Day: day(2), CustNo: 4, Session: models.SessionAM, Qty: 2, Fat: 5}})
	require.NoError(t, err)
	store.days, store.members = 8, []int{1, 2, 4, 5}
	l, err = ws.Open(ctx, day(1))
	require.NoError(t, err)
	require.Len(t, l.Records, 8)
	assert.NotNil(t, l.Day(day(8)).Customer(5))
	assert.Equal(t, 2.0, l.Day(day(2)).Customer(4).AM.Qty)
	assert.Equal(t, 3, store.loads)
	assert.Equal(t, 1, store.refreshes)
}

func TestSaveReleasesLedger(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ws := NewWorkspace(store, nil)

	_, err := ws.RecordReadings(ctx, day(11), []Reading{{Day: day(11), CustNo: 1, Session: models.SessionPM, Qty: 1, Fat: 4}})
	require.NoError(t, err)
	_, err = ws.Save(ctx, day(11))
	require.NoError(t, err)

	// A write by another writer is visible once the edits are saved.
	store.saved["2025-01-11"].Day(day(11)).Customer(2).AM = models.MilkRecord{Qty: 7, Fat: 3}
	l, err := ws.Open(ctx, day(11))
	require.NoError(t, err)
	assert.Equal(t, 7.0, l.Day(day(11)).Customer(2).AM.Qty)
	assert.Equal(t, 1.0, l.Day(day(11)).Customer(1).PM.Qty)
}
