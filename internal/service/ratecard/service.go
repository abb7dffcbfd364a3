// Package ratecard keeps the history of pay rates, stored as the
// MCM_RATE_CARD document.
package ratecard

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
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// DocumentID is the id of the rate card document.
const DocumentID = "MCM_RATE_CARD"

// ErrInvalidRate is returned for rate items that cannot be stored.
var ErrInvalidRate = errors.New("invalid rate item")

type rateItemRecord struct {
	EffectiveDate string  `json:"effectiveDate" bson:"effectiveDate"`
	PayRate       float64 `json:"payRate" bson:"payRate"`
}

type rateCardDocument struct {
	docstore.Meta `bson:",inline"`
	Items         []rateItemRecord `json:"items" bson:"items"`
	UpdatedAt     string           `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Service reads and extends the rate card.
type Service struct {
	store       docstore.Store
	defaultRate float64
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time

	mu sync.Mutex
}

// NewService wires a rate card over store. defaultRate applies whenever no
// positive rate is effective.
func NewService(store docstore.Store, defaultRate float64, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, defaultRate: defaultRate, loc: loc, logger: logger, now: time.Now}
}

func (s *Service) load(ctx context.Context) (*rateCardDocument, error) {
	doc := &rateCardDocument{}
	err := s.store.Get(ctx, DocumentID, doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return &rateCardDocument{Meta: docstore.Meta{ID: DocumentID}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rate card: %w", err)
	}
	doc.ID = DocumentID
	return doc, nil
}

func (s *Service) toModel(doc *rateCardDocument) models.RateCard {
	card := models.RateCard{Items: make([]models.RateItem, 0, len(doc.Items))}
	for _, rec := range doc.Items {
		day, err := period.Parse(rec.EffectiveDate, s.loc)
		if err != nil {
			s.logger.Warn("skip rate item with invalid date", zap.String("value", rec.EffectiveDate), zap.Error(err))
			continue
		}
		card.Items = append(card.Items, models.RateItem{EffectiveDate: day, PayRate: rec.PayRate})
	}
	sort.Slice(card.Items, func(i, j int) bool {
		return card.Items[i].EffectiveDate.Before(card.Items[j].EffectiveDate)
	})
	return card
}

// Get returns the rate card ordered by effective date. A missing document is
// an empty card.
func (s *Service) Get(ctx context.Context) (models.RateCard, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return models.RateCard{}, err
	}
	return s.toModel(doc), nil
}

// ApplicableRate returns the pay rate for the period starting at start: the
// latest item effective on or before start, or the default rate when none is
// or its rate is not positive.
func (s *Service) ApplicableRate(ctx context.Context, start time.Time) (float64, error) {
	card, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}

	item, ok := card.Applicable(start)
	if !ok || item.PayRate <= 0 {
		return s.defaultRate, nil
	}
	return item.PayRate, nil
}

// AddItem stores a new rate. An item with the same effective date is replaced.
func (s *Service) AddItem(ctx context.Context, item models.RateItem) (models.RateCard, error) {
	if item.EffectiveDate.IsZero() {
		return models.RateCard{}, fmt.Errorf("effective date is required: %w", ErrInvalidRate)
	}
	if item.PayRate <= 0 {
		return models.RateCard{}, fmt.Errorf("pay rate %.2f must be positive: %w", item.PayRate, ErrInvalidRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return models.RateCard{}, err
	}

	rec := rateItemRecord{EffectiveDate: period.Format(item.EffectiveDate), PayRate: item.PayRate}
	replaced := false
	for i := range doc.Items {
		if doc.Items[i].EffectiveDate == rec.EffectiveDate {
			doc.Items[i] = rec
			replaced = true
		}
	}
	if !replaced {
		doc.Items = append(doc.Items, rec)
	}

	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if _, err := s.store.Put(ctx, doc); err != nil {
		return models.RateCard{}, fmt.Errorf("save rate card: %w", err)
	}

	s.logger.Info("rate item stored", zap.String("effectiveDate", rec.EffectiveDate), zap.Float64("payRate", rec.PayRate))
	return s.toModel(doc), nil
}
