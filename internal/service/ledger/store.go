// Package ledger loads and saves billing period ledgers. Loading always
// yields a complete grid of days and members for the period: whatever was
// stored is merged over an empty template built from the active members.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// MemberSource lists the members a new period is laid out for.
type MemberSource interface {
	Active(ctx context.Context) ([]models.Member, error)
}

// Store is the ledger store adapter. It remembers the last revision seen per
// document so saves are checked against what was loaded.
type Store struct {
	docs    docstore.Store
	members MemberSource
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	revs map[string]string
}

// NewStore wires a ledger store. Calendar dates are interpreted in loc.
func NewStore(docs docstore.Store, members MemberSource, loc *time.Location, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		docs:    docs,
		members: members,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		revs:    make(map[string]string),
	}
}

// DocumentID returns the id of the ledger document for the period starting
// at start, e.g. 20251101_LEDGER.
func DocumentID(start time.Time) string {
	return start.Format("20060102") + "_LEDGER"
}

// Location returns the location calendar dates are interpreted in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Today returns midnight of the current day in the store's location.
func (s *Store) Today() time.Time {
	return period.Midnight(s.now().In(s.loc))
}

// normalize moves start to midnight of the same wall date in s.loc.
func (s *Store) normalize(start time.Time) time.Time {
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Store) cachedRev(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revs[id]
}

func (s *Store) cacheRev(id, rev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev == "" {
		delete(s.revs, id)
		return
	}
	s.revs[id] = rev
}

// Template builds the empty ledger for the period starting at start: one day
// per calendar day up to the earlier of the period end and today, each with a
// zero record for every given member.
func (s *Store) Template(start time.Time, members []models.Member) *models.TenDayLedger {
	start = s.normalize(start)
	until := period.Midnight(period.End(start))
	if today := s.Today(); today.Before(until) {
		until = today
	}

	l := &models.TenDayLedger{
		TenDayStart: start,
		Records:     []models.LedgerDayRecord{},
		CustBills:   []models.CustBill{},
	}
	for _, day := range period.Days(start, until) {
		rec := models.LedgerDayRecord{Day: day, Quantities: make([]models.CustDayRecord, 0, len(members))}
		for _, m := range members {
			rec.Quantities = append(rec.Quantities, models.CustDayRecord{CustNo: m.CustNo})
		}
		l.Records = append(l.Records, rec)
	}
	return l
}

func (s *Store) fetch(ctx context.Context, start time.Time) (*models.TenDayLedger, error) {
	id := DocumentID(start)
	doc := &ledgerDocument{}
	if err := s.docs.Get(ctx, id, doc); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.cacheRev(id, "")
		}
		return nil, err
	}
	s.cacheRev(id, doc.Rev)
	return decode(doc.Ledger, start, s.loc, s.logger), nil
}

// Load returns the ledger for the period starting at start. A period that was
// never saved yields the empty template; any other store failure is returned.
func (s *Store) Load(ctx context.Context, start time.Time) (*models.TenDayLedger, error) {
	start = s.normalize(start)
	if err := period.Validate(start); err != nil {
		return nil, err
	}

	members, err := s.members.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members for %s: %w", period.Format(start), err)
	}
	template := s.Template(start, members)

	stored, err := s.fetch(ctx, start)
	if errors.Is(err, docstore.ErrNotFound) {
		s.logger.Debug("ledger not stored yet, using template", zap.String("period", period.Format(start)))
		return template, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", DocumentID(start), err)
	}

	return merge(template, stored), nil
}

// Refresh lays an in-memory ledger over a fresh template without reading the
// store, so days reached since it was loaded and members added since appear.
func (s *Store) Refresh(ctx context.Context, l *models.TenDayLedger) (*models.TenDayLedger, error) {
	start := s.normalize(l.TenDayStart)
	members, err := s.members.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members for %s: %w", period.Format(start), err)
	}
	return merge(s.Template(start, members), l), nil
}

// Bills returns the stored bills of the period starting at start without
// building a template. A period that was never saved has no bills.
func (s *Store) Bills(ctx context.Context, start time.Time) ([]models.CustBill, error) {
	start = s.normalize(start)
	stored, err := s.fetch(ctx, start)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bills %s: %w", DocumentID(start), err)
	}
	return stored.CustBills, nil
}

// Save writes the ledger with the revision last seen for its document. Day
// totals are recomputed first. A concurrent write since that revision fails
// with docstore.ErrConflict and the ledger is not merged or retried.
func (s *Store) Save(ctx context.Context, l *models.TenDayLedger) error {
	l.TenDayStart = s.normalize(l.TenDayStart)
	if err := period.Validate(l.TenDayStart); err != nil {
		return err
	}

	l.SortRecords()
	l.RecomputeDayTotals()

	id := DocumentID(l.TenDayStart)
	doc := &ledgerDocument{
		Meta:      docstore.Meta{ID: id, Rev: s.cachedRev(id)},
		Ledger:    encode(l),
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}

	rev, err := s.docs.Put(ctx, doc)
	if err != nil {
		return fmt.Errorf("save ledger %s: %w", id, err)
	}
	s.cacheRev(id, rev)

	s.logger.Info("ledger saved", zap.String("id", id), zap.String("rev", rev), zap.Bool("billed", l.IsBilled))
	return nil
}

// merge lays stored over template. Stored readings replace template zeros,
// template days and members fill the gaps, and stored day-level and
// ledger-level fields survive. Readings of members missing from the template
// (deactivated since) and stored days the template does not reach yet are
// kept so a later save never drops recorded milk.
func merge(template, stored *models.TenDayLedger) *models.TenDayLedger {
	out := stored.Clone()
	out.TenDayStart = template.TenDayStart
	if out.CustBills == nil {
		out.CustBills = []models.CustBill{}
	}

	end := period.End(template.TenDayStart)
	records := make([]models.LedgerDayRecord, 0, len(template.Records))
	seen := make(map[string]bool, len(template.Records))

	for _, tday := range template.Records {
		key := period.Format(tday.Day)
		seen[key] = true

		sday := stored.Day(tday.Day)
		if sday == nil {
			records = append(records, tday)
			continue
		}

		merged := *sday
		merged.Day = tday.Day
		merged.Quantities = make([]models.CustDayRecord, 0, len(tday.Quantities))
		inTemplate := make(map[int]bool, len(tday.Quantities))
		for _, tc := range tday.Quantities {
			inTemplate[tc.CustNo] = true
			if sc := sday.Customer(tc.CustNo); sc != nil {
				merged.Quantities = append(merged.Quantities, *sc)
				continue
			}
			merged.Quantities = append(merged.Quantities, tc)
		}
		for _, sc := range sday.Quantities {
			if !inTemplate[sc.CustNo] && sc.HasData() {
				merged.Quantities = append(merged.Quantities, sc)
			}
		}
		records = append(records, merged)
	}

	for _, sday := range stored.Records {
		key := period.Format(sday.Day)
		if seen[key] || sday.Day.Before(template.TenDayStart) || sday.Day.After(end) {
			continue
		}
		seen[key] = true
		sday.Quantities = append([]models.CustDayRecord(nil), sday.Quantities...)
		records = append(records, sday)
	}

	out.Records = records
	out.SortRecords()
	return out
}
