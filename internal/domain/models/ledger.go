package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Session identifies one of the two daily collection slots.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// Valid reports whether s is AM or PM.
func (s Session) Valid() bool {
	return s == SessionAM || s == SessionPM
}

// SessionFilter selects which sessions a report shows.
type SessionFilter string

const (
	FilterAM   SessionFilter = "AM"
	FilterPM   SessionFilter = "PM"
	FilterBoth SessionFilter = "AM-PM"
)

// ParseSessionFilter maps a query value to a filter, defaulting to both sessions.
func ParseSessionFilter(value string) SessionFilter {
	switch SessionFilter(value) {
	case FilterAM:
		return FilterAM
	case FilterPM:
		return FilterPM
	}
	return FilterBoth
}

// IncludesAM reports whether the AM session is visible.
func (f SessionFilter) IncludesAM() bool { return f != FilterPM }

// IncludesPM reports whether the PM session is visible.
func (f SessionFilter) IncludesPM() bool { return f != FilterAM }

// MilkRecord is one session's reading for one member on one day.
type MilkRecord struct {
	Qty    float64 `json:"qty"`
	Fat    float64 `json:"fat"`
	Amount float64 `json:"amount,omitempty"`
}

// IsEmpty reports whether nothing was collected in the session.
func (r MilkRecord) IsEmpty() bool {
	return r.Qty == 0 && r.Fat == 0
}

// CustDayRecord holds a member's two sessions for a day.
type CustDayRecord struct {
	CustNo int        `json:"custNo"`
	AM     MilkRecord `json:"AM"`
	PM     MilkRecord `json:"PM"`
}

// Session returns a pointer to the record of the given session.
func (c *CustDayRecord) Session(s Session) *MilkRecord {
	if s == SessionPM {
		return &c.PM
	}
	return &c.AM
}

// HasData reports whether either session carries a reading.
func (c CustDayRecord) HasData() bool {
	return !c.AM.IsEmpty() || !c.PM.IsEmpty()
}

// DayTotal sums a day's sessions across members.
type DayTotal struct {
	AM MilkRecord `json:"AM"`
	PM MilkRecord `json:"PM"`
}

// LedgerDayRecord is one calendar day of a period.
type LedgerDayRecord struct {
	Day        time.Time
	Quantities []CustDayRecord
	IsVerified bool
	DayTotal   DayTotal
}

// Customer returns the member's record for the day, or nil.
func (d *LedgerDayRecord) Customer(custNo int) *CustDayRecord {
	for i := range d.Quantities {
		if d.Quantities[i].CustNo == custNo {
			return &d.Quantities[i]
		}
	}
	return nil
}

// RecomputeTotals refreshes the session sums. Quantities round to 1 decimal,
// amounts to 2.
func (d *LedgerDayRecord) RecomputeTotals() {
	amQty, pmQty := decimal.Zero, decimal.Zero
	amAmt, pmAmt := decimal.Zero, decimal.Zero
	for _, q := range d.Quantities {
		amQty = amQty.Add(decimal.NewFromFloat(q.AM.Qty))
		pmQty = pmQty.Add(decimal.NewFromFloat(q.PM.Qty))
		amAmt = amAmt.Add(decimal.NewFromFloat(q.AM.Amount))
		pmAmt = pmAmt.Add(decimal.NewFromFloat(q.PM.Amount))
	}
	d.DayTotal.AM.Qty = amQty.Round(1).InexactFloat64()
	d.DayTotal.PM.Qty = pmQty.Round(1).InexactFloat64()
	d.DayTotal.AM.Amount = amAmt.Round(2).InexactFloat64()
	d.DayTotal.PM.Amount = pmAmt.Round(2).InexactFloat64()
}

// CustBill is a member's bill for one period.
type CustBill struct {
	CustNo     int     `json:"custNo"`
	TotalQty   float64 `json:"totalQty"`
	Amount     float64 `json:"amount"`
	PrevDueAmt float64 `json:"prevDueAmt"`
	PaidAmt    float64 `json:"paidAmt"`
	DueAmt     float64 `json:"dueAmt"`
	Remarks    string  `json:"remarks,omitempty"`
}

// TenDayLedger is the aggregate for one billing period, keyed by TenDayStart.
// ReceivedAmt and PendingAmt stay nil until bills are first run.
type TenDayLedger struct {
	TenDayStart   time.Time
	Records       []LedgerDayRecord
	CustBills     []CustBill
	TotalAmt      float64
	ReceivableAmt float64
	ReceivedAmt   *float64
	PendingAmt    *float64
	IsBilled      bool
}

// Day returns the record for the calendar day of t, or nil.
func (l *TenDayLedger) Day(t time.Time) *LedgerDayRecord {
	y, m, d := t.Date()
	for i := range l.Records {
		ry, rm, rd := l.Records[i].Day.Date()
		if ry == y && rm == m && rd == d {
			return &l.Records[i]
		}
	}
	return nil
}

// Bill returns the member's bill, or nil when bills were not run for them.
func (l *TenDayLedger) Bill(custNo int) *CustBill {
	for i := range l.CustBills {
		if l.CustBills[i].CustNo == custNo {
			return &l.CustBills[i]
		}
	}
	return nil
}

// RecomputeDayTotals refreshes every day's session sums.
func (l *TenDayLedger) RecomputeDayTotals() {
	for i := range l.Records {
		l.Records[i].RecomputeTotals()
	}
}

// SortRecords orders days chronologically.
func (l *TenDayLedger) SortRecords() {
	sort.SliceStable(l.Records, func(i, j int) bool {
		return l.Records[i].Day.Before(l.Records[j].Day)
	})
}

// LastDay returns the latest recorded day, or TenDayStart for an empty ledger.
func (l *TenDayLedger) LastDay() time.Time {
	last := l.TenDayStart
	for _, r := range l.Records {
		if r.Day.After(last) {
			last = r.Day
		}
	}
	return last
}

// Clone returns a deep copy.
func (l *TenDayLedger) Clone() *TenDayLedger {
	if l == nil {
		return nil
	}
	out := *l
	out.Records = make([]LedgerDayRecord, len(l.Records))
	for i, r := range l.Records {
		r.Quantities = append([]CustDayRecord(nil), r.Quantities...)
		out.Records[i] = r
	}
	out.CustBills = append([]CustBill(nil), l.CustBills...)
	if l.ReceivedAmt != nil {
		v := *l.ReceivedAmt
		out.ReceivedAmt = &v
	}
	if l.PendingAmt != nil {
		v := *l.PendingAmt
		out.PendingAmt = &v
	}
	return &out
}
