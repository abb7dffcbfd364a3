// Package reporting projects ledgers into exports, passbooks, statements and
// summaries.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	repo "github.com/mcmanager/milkledger/internal/repository/sheets"
)

var (
	// ErrNoData is returned when a period has no days to report.
	ErrNoData = errors.New("no ledger data to export")
	// ErrNoMobile is returned when a statement is shared with a member who
	// has no mobile number.
	ErrNoMobile = errors.New("member has no mobile number")
	// ErrAlreadyExported is returned when the period's rows are already in
	// the spreadsheet.
	ErrAlreadyExported = errors.New("period already exported")
	// ErrSheetsDisabled is returned when no spreadsheet is configured.
	ErrSheetsDisabled = errors.New("google sheets export is not configured")
)

// LedgerSource opens a period's ledger, unsaved edits included.
type LedgerSource interface {
	Open(ctx context.Context, start time.Time) (*models.TenDayLedger, error)
}

// MemberSource reads the member registry.
type MemberSource interface {
	List(ctx context.Context) ([]models.Member, error)
	Get(ctx context.Context, custNo int) (models.Member, error)
}

// RateSource resolves the pay rate of a period.
type RateSource interface {
	ApplicableRate(ctx context.Context, start time.Time) (float64, error)
}

// File is a rendered report.
type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// Service exposes the report projections.
type Service struct {
	ledgers     LedgerSource
	members     MemberSource
	rates       RateSource
	sheets      repo.Repository
	sheetRange  string
	countryCode string
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// Options configures optional collaborators of the service.
type Options struct {
	// Sheets is nil when spreadsheet export is disabled.
	Sheets      repo.Repository
	SheetRange  string
	CountryCode string
	Location    *time.Location
}

// NewService wires a new reporting service instance.
func NewService(ledgers LedgerSource, members MemberSource, rates RateSource, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		ledgers:     ledgers,
		members:     members,
		rates:       rates,
		sheets:      opts.Sheets,
		sheetRange:  opts.SheetRange,
		countryCode: opts.CountryCode,
		loc:         opts.Location,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) today() time.Time {
	return period.Midnight(s.now().In(s.loc))
}

// reportMembers lists everyone with a record on the ledger in custNo order.
// Names come from the registry; members missing from it keep only their
// number.
func reportMembers(l *models.TenDayLedger, registry []models.Member) []models.Member {
	byNo := make(map[int]models.Member, len(registry))
	for _, m := range registry {
		byNo[m.CustNo] = m
	}

	seen := make(map[int]bool)
	var out []models.Member
	for _, r := range l.Records {
		for _, q := range r.Quantities {
			if seen[q.CustNo] {
				continue
			}
			seen[q.CustNo] = true
			m, ok := byNo[q.CustNo]
			if !ok {
				m = models.Member{CustNo: q.CustNo}
			}
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustNo < out[j].CustNo })
	return out
}

// loadReport opens the ledger with its days in order and the members on it.
func (s *Service) loadReport(ctx context.Context, start time.Time) (*models.TenDayLedger, []models.Member, error) {
	l, err := s.ledgers.Open(ctx, start)
	if err != nil {
		return nil, nil, err
	}
	if len(l.Records) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", period.Format(start), ErrNoData)
	}
	l.SortRecords()

	registry, err := s.members.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load members: %w", err)
	}
	return l, reportMembers(l, registry), nil
}

// ledgerFileName names exports after the first and last recorded day.
func ledgerFileName(l *models.TenDayLedger, ext string) string {
	return fmt.Sprintf("ledger_%s_to_%s.%s", period.Format(l.TenDayStart), period.Format(l.LastDay()), ext)
}

// shortDate renders "Jan 2".
func shortDate(t time.Time) string {
	return t.Format("Jan 2")
}

func parseDate(value interface{}) (time.Time, error) {
	str := fmt.Sprint(value)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(str) > 10 {
		str = str[:10]
	}
	return time.Parse(period.DateLayout, str)
}

// formatOrBlank renders v with the given decimals, or "" when v is zero.
func formatOrBlank(v float64, decimals int) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
