package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

// Export is the JSON export of a period. Zero readings export as null.
type Export struct {
	BillingPeriod ExportPeriod   `json:"billingPeriod"`
	Data          []ExportMember `json:"data"`
}

// ExportPeriod spans the first to the last recorded day.
type ExportPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExportMember is one member's readings across the period.
type ExportMember struct {
	CustNo  int            `json:"custNo"`
	NameEn  string         `json:"name_en"`
	NameTel string         `json:"name_tel"`
	Village string         `json:"village"`
	Records []ExportRecord `json:"records"`
}

// ExportRecord is one day. Sessions outside the filter, or days without a
// record for the member, are omitted.
type ExportRecord struct {
	Date string         `json:"date"`
	AM   *ExportSession `json:"AM,omitempty"`
	PM   *ExportSession `json:"PM,omitempty"`
}

// ExportSession is one session's reading.
type ExportSession struct {
	Qty    *float64 `json:"qty"`
	Fat    *float64 `json:"fat"`
	Amount *float64 `json:"amount"`
}

func nullable(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func exportSession(r models.MilkRecord) *ExportSession {
	return &ExportSession{Qty: nullable(r.Qty), Fat: nullable(r.Fat), Amount: nullable(r.Amount)}
}

// BuildExport projects l for the given members and session filter. l's
// records must be in day order.
func BuildExport(l *models.TenDayLedger, members []models.Member, filter models.SessionFilter) Export {
	out := Export{
		BillingPeriod: ExportPeriod{Start: period.Format(l.TenDayStart), End: period.Format(l.LastDay())},
		Data:          make([]ExportMember, 0, len(members)),
	}

	for _, m := range members {
		em := ExportMember{
			CustNo:  m.CustNo,
			NameEn:  m.NameEn,
			NameTel: m.NameTel,
			Village: m.Village,
			Records: make([]ExportRecord, 0, len(l.Records)),
		}
		for i := range l.Records {
			rec := ExportRecord{Date: period.Format(l.Records[i].Day)}
			if c := l.Records[i].Customer(m.CustNo); c != nil {
				if filter.IncludesAM() {
					rec.AM = exportSession(c.AM)
				}
				if filter.IncludesPM() {
					rec.PM = exportSession(c.PM)
				}
			}
			em.Records = append(em.Records, rec)
		}
		out.Data = append(out.Data, em)
	}
	return out
}

// ExportJSON renders the period as an indented JSON file.
func (s *Service) ExportJSON(ctx context.Context, start time.Time, filter models.SessionFilter) (File, error) {
	l, members, err := s.loadReport(ctx, start)
	if err != nil {
		return File{}, err
	}

	body, err := json.MarshalIndent(BuildExport(l, members, filter), "", "  ")
	if err != nil {
		return File{}, fmt.Errorf("encode export: %w", err)
	}

	s.logger.Info("ledger exported",
		zap.String("period", period.Format(start)),
		zap.String("format", "json"),
		zap.String("session", string(filter)),
	)
	return File{Name: ledgerFileName(l, "json"), MimeType: "application/json", Content: body}, nil
}
