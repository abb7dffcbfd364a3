// Package entry holds the in-progress edits of billing period ledgers until
// they are saved, either explicitly or by the autosave job.
package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

var (
	// ErrNegativeValue is returned when a reading has a negative qty or fat.
	ErrNegativeValue = errors.New("qty and fat must not be negative")
	// ErrDayOutOfPeriod is returned when a reading's day lies outside the period.
	ErrDayOutOfPeriod = errors.New("day is outside the billing period")
	// ErrInvalidSession is returned for sessions other than AM and PM.
	ErrInvalidSession = errors.New("session must be AM or PM")
)

// LedgerStore loads and persists whole ledgers. Refresh extends an unsaved
// ledger to the current days and members without reading the store.
type LedgerStore interface {
	Load(ctx context.Context, start time.Time) (*models.TenDayLedger, error)
	Refresh(ctx context.Context, l *models.TenDayLedger) (*models.TenDayLedger, error)
	Save(ctx context.Context, l *models.TenDayLedger) error
}

// Reading is one session's qty and fat for a member on a day.
type Reading struct {
	Day     time.Time
	CustNo  int
	Session models.Session
	Qty     float64
	Fat     float64
}

type buffer struct {
	mu     sync.Mutex
	ledger *models.TenDayLedger
	dirty  bool
}

// Workspace keeps the unsaved edits of each period. Operations on the same
// period are serialized; different periods proceed independently. Only dirty
// ledgers stay in memory: a period without edits is loaded from the store on
// every access.
type Workspace struct {
	store  LedgerStore
	logger *zap.Logger

	mu      sync.Mutex
	buffers map[string]*buffer
}

// NewWorkspace wires a workspace over store.
func NewWorkspace(store LedgerStore, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{store: store, logger: logger, buffers: make(map[string]*buffer)}
}

func key(start time.Time) string {
	return period.Format(start)
}

func (w *Workspace) buffer(start time.Time) *buffer {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.buffers[key(start)]
	if !ok {
		b = &buffer{}
		w.buffers[key(start)] = b
	}
	return b
}

// with runs fn on the loaded buffer of the period, holding its lock.
func (w *Workspace) with(ctx context.Context, start time.Time, fn func(b *buffer) error) error {
	if err := period.Validate(start); err != nil {
		return err
	}

	b := w.buffer(start)
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		l   *models.TenDayLedger
		err error
	)
	if b.dirty {
		l, err = w.store.Refresh(ctx, b.ledger)
	} else {
		l, err = w.store.Load(ctx, start)
	}
	if err != nil {
		return err
	}
	b.ledger = l

	err = fn(b)
	if !b.dirty {
		b.ledger = nil
	}
	return err
}

// Open returns the period's ledger including unsaved edits.
func (w *Workspace) Open(ctx context.Context, start time.Time) (*models.TenDayLedger, error) {
	var out *models.TenDayLedger
	err := w.with(ctx, start, func(b *buffer) error {
		out = b.ledger.Clone()
		return nil
	})
	return out, err
}

// Dirty reports whether the period has unsaved edits.
func (w *Workspace) Dirty(start time.Time) bool {
	w.mu.Lock()
	b, ok := w.buffers[key(start)]
	w.mu.Unlock()
	if !ok {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

func validateReading(start time.Time, r Reading) error {
	if r.Qty < 0 || r.Fat < 0 {
		return fmt.Errorf("custNo %d %s: %w", r.CustNo, r.Session, ErrNegativeValue)
	}
	if !r.Session.Valid() {
		return fmt.Errorf("custNo %d %q: %w", r.CustNo, r.Session, ErrInvalidSession)
	}
	day := period.Midnight(r.Day)
	if r.Day.IsZero() || day.Before(start) || day.After(period.End(start)) {
		return fmt.Errorf("%s: %w", period.Format(r.Day), ErrDayOutOfPeriod)
	}
	return nil
}

// RecordReadings applies readings to the period's buffer. Every reading is
// validated before any is applied, so a rejected batch changes nothing. A day
// inside the period that the ledger does not have yet is added.
func (w *Workspace) RecordReadings(ctx context.Context, start time.Time, readings []Reading) (*models.TenDayLedger, error) {
	start = period.Midnight(start)
	if err := period.Validate(start); err != nil {
		return nil, err
	}
	for _, r := range readings {
		if err := validateReading(start, r); err != nil {
			return nil, err
		}
	}

	var out *models.TenDayLedger
	err := w.with(ctx, start, func(b *buffer) error {
		for _, r := range readings {
			rec := customerRecord(b.ledger, period.Midnight(r.Day), r.CustNo)
			*rec.Session(r.Session) = models.MilkRecord{Qty: r.Qty, Fat: r.Fat}
		}
		if len(readings) > 0 {
			b.dirty = true
		}
		out = b.ledger.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Debug("readings recorded", zap.String("period", key(start)), zap.Int("count", len(readings)))
	return out, nil
}

// ClearReading zeroes one session of a member on a day.
func (w *Workspace) ClearReading(ctx context.Context, start, day time.Time, custNo int, session models.Session) (*models.TenDayLedger, error) {
	return w.RecordReadings(ctx, start, []Reading{{Day: day, CustNo: custNo, Session: session}})
}

// customerRecord finds or creates the member's record for day. New days get a
// zero record for every member already on the ledger.
func customerRecord(l *models.TenDayLedger, day time.Time, custNo int) *models.CustDayRecord {
	rec := l.Day(day)
	if rec == nil {
		fresh := models.LedgerDayRecord{Day: day}
		if len(l.Records) > 0 {
			for _, q := range l.Records[0].Quantities {
				fresh.Quantities = append(fresh.Quantities, models.CustDayRecord{CustNo: q.CustNo})
			}
		}
		l.Records = append(l.Records, fresh)
		l.SortRecords()
		rec = l.Day(day)
	}

	if c := rec.Customer(custNo); c != nil {
		return c
	}
	rec.Quantities = append(rec.Quantities, models.CustDayRecord{CustNo: custNo})
	sort.SliceStable(rec.Quantities, func(i, j int) bool {
		return rec.Quantities[i].CustNo < rec.Quantities[j].CustNo
	})
	return rec.Customer(custNo)
}

// Save persists the period's buffer. On failure the buffer keeps its edits
// and stays dirty.
func (w *Workspace) Save(ctx context.Context, start time.Time) (*models.TenDayLedger, error) {
	var out *models.TenDayLedger
	err := w.with(ctx, start, func(b *buffer) error {
		if err := w.persist(ctx, b, b.ledger.Clone()); err != nil {
			return err
		}
		out = b.ledger.Clone()
		return nil
	})
	return out, err
}

// Update applies fn to a copy of the period's ledger and saves the result.
// The buffer only takes the change once the save succeeded.
func (w *Workspace) Update(ctx context.Context, start time.Time, fn func(l *models.TenDayLedger) error) (*models.TenDayLedger, error) {
	var out *models.TenDayLedger
	err := w.with(ctx, start, func(b *buffer) error {
		draft := b.ledger.Clone()
		if err := fn(draft); err != nil {
			return err
		}
		if err := w.persist(ctx, b, draft); err != nil {
			return err
		}
		out = b.ledger.Clone()
		return nil
	})
	return out, err
}

func (w *Workspace) persist(ctx context.Context, b *buffer, draft *models.TenDayLedger) error {
	if err := w.store.Save(ctx, draft); err != nil {
		return err
	}
	b.ledger = draft
	b.dirty = false
	return nil
}

// Discard drops the period's unsaved edits. The next access reloads from the
// store.
func (w *Workspace) Discard(start time.Time) {
	w.mu.Lock()
	b, ok := w.buffers[key(start)]
	w.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger = nil
	b.dirty = false
}

// FlushDirty saves every buffer with unsaved edits and returns how many were
// saved. Failures are logged, joined and returned; their buffers stay dirty.
func (w *Workspace) FlushDirty(ctx context.Context) (int, error) {
	w.mu.Lock()
	pending := make(map[string]*buffer, len(w.buffers))
	for k, b := range w.buffers {
		pending[k] = b
	}
	w.mu.Unlock()

	var (
		saved int
		errs  []error
	)
	for k, b := range pending {
		b.mu.Lock()
		if b.dirty && b.ledger != nil {
			if err := w.persist(ctx, b, b.ledger.Clone()); err != nil {
				w.logger.Warn("autosave failed", zap.String("period", k), zap.Error(err))
				errs = append(errs, fmt.Errorf("autosave %s: %w", k, err))
			} else {
				b.ledger = nil
				saved++
			}
		}
		b.mu.Unlock()
	}

	return saved, errors.Join(errs...)
}
