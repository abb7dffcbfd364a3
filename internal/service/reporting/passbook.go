package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

// SessionLine is one session of a passbook row, priced at the period rate.
type SessionLine struct {
	Qty    float64 `json:"qty"`
	Fat    float64 `json:"fat"`
	Amount float64 `json:"amt"`
}

// PassbookRow is one day of a member's passbook.
type PassbookRow struct {
	Date   string      `json:"date"`
	AM     SessionLine `json:"AM"`
	PM     SessionLine `json:"PM"`
	DayAmt float64     `json:"dayAmt"`

	day time.Time
}

// PassbookTotals sums the rows.
type PassbookTotals struct {
	AMQty float64 `json:"amQty"`
	AMAmt float64 `json:"amAmt"`
	PMQty float64 `json:"pmQty"`
	PMAmt float64 `json:"pmAmt"`
	Total float64 `json:"total"`
}

// BillSummary is what the member owes for the period.
type BillSummary struct {
	Billed  float64 `json:"billedAmount"`
	PrevDue float64 `json:"prevDueAmount"`
	Paid    float64 `json:"paidAmount"`
	Due     float64 `json:"dueAmount"`
	Remarks string  `json:"remarks,omitempty"`
}

// Passbook is a member's statement for one period.
type Passbook struct {
	Member      models.Member  `json:"member"`
	Period      period.Window  `json:"period"`
	PayRate     float64        `json:"payRate"`
	Rows        []PassbookRow  `json:"rows"`
	Totals      PassbookTotals `json:"totals"`
	Summary     BillSummary    `json:"summary"`
	IsBilled    bool           `json:"isBilled"`
	HasPrevious bool           `json:"hasPrevious"`
	HasNext     bool           `json:"hasNext"`
}

// BuildPassbook prices the member's readings at rate. The due amount is the
// priced total plus the bill's previous due minus what was paid.
func BuildPassbook(l *models.TenDayLedger, member models.Member, rate float64) Passbook {
	pb := Passbook{
		Member:   member,
		Period:   period.WindowFor(l.TenDayStart),
		PayRate:  rate,
		Rows:     []PassbookRow{},
		IsBilled: l.IsBilled,
	}

	amQty, amAmt, pmQty, pmAmt, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for i := range l.Records {
		c := l.Records[i].Customer(member.CustNo)
		if c == nil {
			continue
		}
		row := PassbookRow{
			Date: period.Format(l.Records[i].Day),
			AM:   SessionLine{Qty: c.AM.Qty, Fat: c.AM.Fat, Amount: models.SessionAmount(c.AM, rate)},
			PM:   SessionLine{Qty: c.PM.Qty, Fat: c.PM.Fat, Amount: models.SessionAmount(c.PM, rate)},
			day:  l.Records[i].Day,
		}
		row.DayAmt = models.Round2(row.AM.Amount + row.PM.Amount)
		pb.Rows = append(pb.Rows, row)

		amQty = amQty.Add(decimal.NewFromFloat(row.AM.Qty))
		pmQty = pmQty.Add(decimal.NewFromFloat(row.PM.Qty))
		amAmt = amAmt.Add(decimal.NewFromFloat(row.AM.Amount))
		pmAmt = pmAmt.Add(decimal.NewFromFloat(row.PM.Amount))
		total = total.Add(decimal.NewFromFloat(row.DayAmt))
	}

	pb.Totals = PassbookTotals{
		AMQty: amQty.Round(1).InexactFloat64(),
		AMAmt: amAmt.Round(2).InexactFloat64(),
		PMQty: pmQty.Round(1).InexactFloat64(),
		PMAmt: pmAmt.Round(2).InexactFloat64(),
		Total: total.Round(2).InexactFloat64(),
	}

	pb.Summary.Billed = pb.Totals.Total
	if bill := l.Bill(member.CustNo); bill != nil {
		pb.Summary.PrevDue = bill.PrevDueAmt
		pb.Summary.Paid = bill.PaidAmt
		pb.Summary.Remarks = bill.Remarks
	}
	pb.Summary.Due = total.
		Add(decimal.NewFromFloat(pb.Summary.PrevDue)).
		Sub(decimal.NewFromFloat(pb.Summary.Paid)).
		Round(2).
		InexactFloat64()
	return pb
}

// Passbook builds the member's passbook for the period starting at start.
// HasPrevious is set when the member supplied milk in the previous period;
// HasNext when the next period has already begun.
func (s *Service) Passbook(ctx context.Context, start time.Time, custNo int) (*Passbook, error) {
	member, err := s.members.Get(ctx, custNo)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.ApplicableRate(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("resolve pay rate: %w", err)
	}
	l, err := s.ledgers.Open(ctx, start)
	if err != nil {
		return nil, err
	}
	l.SortRecords()

	pb := BuildPassbook(l, member, rate)
	pb.HasNext = !period.NextStart(l.TenDayStart).After(s.today())
	pb.HasPrevious = s.suppliedIn(ctx, period.PreviousStart(l.TenDayStart), custNo)
	return &pb, nil
}

func (s *Service) suppliedIn(ctx context.Context, start time.Time, custNo int) bool {
	l, err := s.ledgers.Open(ctx, start)
	if err != nil {
		return false
	}
	for i := range l.Records {
		if c := l.Records[i].Customer(custNo); c != nil && c.HasData() {
			return true
		}
	}
	return false
}
