package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

// SheetRows lays the period out one row per member and day with readings:
// period start, date, custNo, name, AM qty/fat/amount, PM qty/fat/amount,
// day amount.
func SheetRows(l *models.TenDayLedger, members []models.Member, rate float64) [][]interface{} {
	names := make(map[int]string, len(members))
	for _, m := range members {
		names[m.CustNo] = m.NameEn
	}

	startCell := period.Format(l.TenDayStart)
	var rows [][]interface{}
	for i := range l.Records {
		day := period.Format(l.Records[i].Day)
		for _, q := range l.Records[i].Quantities {
			if !q.HasData() {
				continue
			}
			am := models.SessionAmount(q.AM, rate)
			pm := models.SessionAmount(q.PM, rate)
			rows = append(rows, []interface{}{
				startCell, day, q.CustNo, names[q.CustNo],
				q.AM.Qty, q.AM.Fat, am,
				q.PM.Qty, q.PM.Fat, pm,
				models.Round2(am + pm),
			})
		}
	}
	return rows
}

// firstColumn narrows an A1 range like "Ledger!A:K" to its first column.
func firstColumn(sheetRange string) string {
	sheet, cells, ok := strings.Cut(sheetRange, "!")
	if !ok {
		cells, sheet = sheet, ""
	}
	col := strings.TrimRight(strings.SplitN(cells, ":", 2)[0], "0123456789")
	if col == "" {
		col = "A"
	}
	if sheet == "" {
		return col + ":" + col
	}
	return sheet + "!" + col + ":" + col
}

// ExportToSheets appends the period's rows to the configured spreadsheet.
// A period whose start already appears in the first column is not appended
// again.
func (s *Service) ExportToSheets(ctx context.Context, start time.Time) (int, error) {
	if s.sheets == nil {
		return 0, ErrSheetsDisabled
	}

	l, members, err := s.loadReport(ctx, start)
	if err != nil {
		return 0, err
	}
	rate, err := s.rates.ApplicableRate(ctx, start)
	if err != nil {
		return 0, fmt.Errorf("resolve pay rate: %w", err)
	}

	existing, err := s.sheets.ReadRange(ctx, firstColumn(s.sheetRange))
	if err != nil {
		return 0, fmt.Errorf("read exported periods: %w", err)
	}
	for _, row := range existing {
		if len(row) == 0 {
			continue
		}
		if d, err := parseDate(row[0]); err == nil && period.Format(d) == period.Format(start) {
			return 0, fmt.Errorf("%s: %w", period.Format(start), ErrAlreadyExported)
		}
	}

	rows := SheetRows(l, members, rate)
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s: %w", period.Format(start), ErrNoData)
	}
	if err := s.sheets.AppendRows(ctx, s.sheetRange, rows); err != nil {
		return 0, err
	}

	s.logger.Info("ledger exported",
		zap.String("period", period.Format(start)),
		zap.String("format", "sheets"),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}
