package models

import "github.com/shopspring/decimal"

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Round2 rounds money to paise.
func Round2(v float64) float64 { return Round(v, 2) }

// Round1 rounds quantities to one decimal.
func Round1(v float64) float64 { return Round(v, 1) }

// SessionAmount is qty × fat × rate rounded to 2 decimals, or 0 when nothing
// was collected.
func SessionAmount(r MilkRecord, rate float64) float64 {
	if r.Qty == 0 || r.Fat == 0 {
		return 0
	}
	return decimal.NewFromFloat(r.Qty).
		Mul(decimal.NewFromFloat(r.Fat)).
		Mul(decimal.NewFromFloat(rate)).
		Round(2).
		InexactFloat64()
}

// CustomerTotals sums a member's collected qty and amounts at rate over every
// day of the ledger, rounding after each day as bills do.
func (l *TenDayLedger) CustomerTotals(custNo int, rate float64) (qty, amount float64) {
	q, a := decimal.Zero, decimal.Zero
	for i := range l.Records {
		c := l.Records[i].Customer(custNo)
		if c == nil {
			continue
		}
		a = a.Add(decimal.NewFromFloat(SessionAmount(c.AM, rate))).
			Add(decimal.NewFromFloat(SessionAmount(c.PM, rate))).
			Round(2)
		q = q.Add(decimal.NewFromFloat(c.AM.Qty)).
			Add(decimal.NewFromFloat(c.PM.Qty)).
			Round(1)
	}
	return q.InexactFloat64(), a.InexactFloat64()
}
