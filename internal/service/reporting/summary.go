package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcmanager/milkledger/internal/domain/period"
)

// DailySummary reports the day's collection totals for the manager.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (string, error) {
	day = period.Midnight(day.In(s.loc))
	l, err := s.ledgers.Open(ctx, period.CurrentStart(day))
	if err != nil {
		return "", err
	}

	rec := l.Day(day)
	if rec == nil {
		return "", fmt.Errorf("%s: %w", period.Format(day), ErrNoData)
	}
	rec.RecomputeTotals()

	suppliers := 0
	for _, q := range rec.Quantities {
		if q.HasData() {
			suppliers++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Collection summary %s*\n", day.Format("Mon, Jan 2"))
	fmt.Fprintf(&b, "AM: %.1f L\n", rec.DayTotal.AM.Qty)
	fmt.Fprintf(&b, "PM: %.1f L\n", rec.DayTotal.PM.Qty)
	fmt.Fprintf(&b, "Total: %.1f L from %d members", rec.DayTotal.AM.Qty+rec.DayTotal.PM.Qty, suppliers)
	return b.String(), nil
}
