// Package members maintains the cooperative's member registry, stored as the
// single MCM_CUSTOMERS document.
package members

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// DocumentID is the id of the registry document.
const DocumentID = "MCM_CUSTOMERS"

var (
	// ErrNotFound is returned when no member has the requested custNo.
	ErrNotFound = errors.New("member not found")
	// ErrInvalid is returned for member input that cannot be stored.
	ErrInvalid = errors.New("invalid member")
)

type memberRecord struct {
	CustNo   int    `json:"custNo" bson:"custNo"`
	NameEn   string `json:"name_en" bson:"name_en"`
	NameTel  string `json:"name_tel" bson:"name_tel"`
	Village  string `json:"village" bson:"village"`
	MobileNo string `json:"mobileNo,omitempty" bson:"mobileNo,omitempty"`
	IsActive *bool  `json:"isActive,omitempty" bson:"isActive,omitempty"`
}

type customersDocument struct {
	docstore.Meta `bson:",inline"`
	Customers     []memberRecord `json:"customers" bson:"customers"`
	UpdatedAt     string         `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

func (r memberRecord) toModel() models.Member {
	return models.Member{
		CustNo:   r.CustNo,
		NameEn:   r.NameEn,
		NameTel:  r.NameTel,
		Village:  r.Village,
		MobileNo: r.MobileNo,
		// Members stored before the flag existed are active.
		IsActive: r.IsActive == nil || *r.IsActive,
	}
}

// Service reads and edits the member registry.
type Service struct {
	store       docstore.Store
	logger      *zap.Logger
	countryCode string
	now         func() time.Time

	// mu serializes read-modify-write cycles on the registry document.
	mu sync.Mutex
}

// NewService wires a member registry over store. countryCode is used to match
// WhatsApp sender numbers against stored mobile numbers.
func NewService(store docstore.Store, countryCode string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, countryCode: countryCode, now: time.Now}
}

func (s *Service) load(ctx context.Context) (*customersDocument, error) {
	doc := &customersDocument{}
	err := s.store.Get(ctx, DocumentID, doc)
	if errors.Is(err, docstore.ErrNotFound) {
		return &customersDocument{Meta: docstore.Meta{ID: DocumentID}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	doc.ID = DocumentID
	return doc, nil
}

func (s *Service) save(ctx context.Context, doc *customersDocument) error {
	doc.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if _, err := s.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("save members: %w", err)
	}
	return nil
}

// List returns every member ordered by custNo. A missing registry is empty.
func (s *Service) List(ctx context.Context) ([]models.Member, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Member, 0, len(doc.Customers))
	for _, rec := range doc.Customers {
		out = append(out, rec.toModel())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustNo < out[j].CustNo })
	return out, nil
}

// Active returns the active members ordered by custNo.
func (s *Service) Active(ctx context.Context) ([]models.Member, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, m := range all {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

// Get returns the member with custNo.
func (s *Service) Get(ctx context.Context, custNo int) (models.Member, error) {
	all, err := s.List(ctx)
	if err != nil {
		return models.Member{}, err
	}
	for _, m := range all {
		if m.CustNo == custNo {
			return m, nil
		}
	}
	return models.Member{}, fmt.Errorf("custNo %d: %w", custNo, ErrNotFound)
}

// Create adds a member numbered one above the highest existing custNo.
// Numbers are never reused, even for inactive members.
func (s *Service) Create(ctx context.Context, input models.MemberInput) (models.Member, error) {
	if err := validate(input); err != nil {
		return models.Member{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return models.Member{}, err
	}

	next := 1
	for _, rec := range doc.Customers {
		if rec.CustNo >= next {
			next = rec.CustNo + 1
		}
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	rec := memberRecord{CustNo: next, IsActive: &active}
	apply(&rec, input)
	doc.Customers = append(doc.Customers, rec)

	if err := s.save(ctx, doc); err != nil {
		return models.Member{}, err
	}

	s.logger.Info("member created", zap.Int("custNo", next), zap.String("name", rec.NameEn))
	return rec.toModel(), nil
}

// Update replaces a member's editable fields. A nil IsActive keeps the
// current flag.
func (s *Service) Update(ctx context.Context, custNo int, input models.MemberInput) (models.Member, error) {
	if err := validate(input); err != nil {
		return models.Member{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return models.Member{}, err
	}

	for i := range doc.Customers {
		rec := &doc.Customers[i]
		if rec.CustNo != custNo {
			continue
		}
		apply(rec, input)
		if input.IsActive != nil {
			active := *input.IsActive
			rec.IsActive = &active
		}
		if err := s.save(ctx, doc); err != nil {
			return models.Member{}, err
		}
		s.logger.Info("member updated", zap.Int("custNo", custNo))
		return rec.toModel(), nil
	}

	return models.Member{}, fmt.Errorf("custNo %d: %w", custNo, ErrNotFound)
}

// FindByMobile returns the member whose mobile number matches phone after
// normalisation.
func (s *Service) FindByMobile(ctx context.Context, phone string) (models.Member, error) {
	want := models.NormalizePhone(phone, s.countryCode)
	if want == "" {
		return models.Member{}, fmt.Errorf("mobile %q: %w", phone, ErrNotFound)
	}

	all, err := s.List(ctx)
	if err != nil {
		return models.Member{}, err
	}
	for _, m := range all {
		if m.MobileNo != "" && models.NormalizePhone(m.MobileNo, s.countryCode) == want {
			return m, nil
		}
	}
	return models.Member{}, fmt.Errorf("mobile %q: %w", phone, ErrNotFound)
}

func validate(input models.MemberInput) error {
	if strings.TrimSpace(input.NameEn) == "" {
		return fmt.Errorf("name_en must not be empty: %w", ErrInvalid)
	}
	return nil
}

func apply(rec *memberRecord, input models.MemberInput) {
	rec.NameEn = strings.TrimSpace(input.NameEn)
	rec.NameTel = strings.TrimSpace(input.NameTel)
	rec.Village = strings.TrimSpace(input.Village)
	rec.MobileNo = strings.TrimSpace(input.MobileNo)
}
