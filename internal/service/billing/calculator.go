// Package billing turns a period's readings into per-member bills and records
// payments against them.
package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

var (
	// ErrAlreadyBilled is returned when bills are re-run without confirmation.
	ErrAlreadyBilled = errors.New("bills were already run for this period")
	// ErrNegativePayment is returned for payments below zero.
	ErrNegativePayment = errors.New("paid amount must not be negative")
	// ErrUnknownMember is returned for payments of a custNo the period has no
	// readings or dues for.
	ErrUnknownMember = errors.New("member has no readings or dues in this period")
)

// RateSource resolves the pay rate of a period.
type RateSource interface {
	ApplicableRate(ctx context.Context, start time.Time) (float64, error)
}

// BillSource reads the stored bills of a period.
type BillSource interface {
	Bills(ctx context.Context, start time.Time) ([]models.CustBill, error)
}

// LedgerUpdater applies a change to a period's ledger and persists it.
type LedgerUpdater interface {
	Update(ctx context.Context, start time.Time, fn func(l *models.TenDayLedger) error) (*models.TenDayLedger, error)
}

// Calculator runs bills and records payments.
type Calculator struct {
	rates            RateSource
	bills            BillSource
	ledgers          LedgerUpdater
	preservePayments bool
	logger           *zap.Logger
}

// NewCalculator wires a bill calculator. With preservePayments set, paid
// amounts and remarks survive a re-run; otherwise every re-run starts the
// period's bills from zero payments.
func NewCalculator(rates RateSource, bills BillSource, ledgers LedgerUpdater, preservePayments bool, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		rates:            rates,
		bills:            bills,
		ledgers:          ledgers,
		preservePayments: preservePayments,
		logger:           logger,
	}
}

func (c *Calculator) previousBills(ctx context.Context, start time.Time) (map[int]models.CustBill, error) {
	prev, err := c.bills.Bills(ctx, period.PreviousStart(start))
	if err != nil {
		return nil, fmt.Errorf("load previous bills: %w", err)
	}
	out := make(map[int]models.CustBill, len(prev))
	for _, b := range prev {
		out[b.CustNo] = b
	}
	return out, nil
}

// RunBills computes and saves the bills of the period starting at start.
// A period already billed is only recomputed when confirm is set.
func (c *Calculator) RunBills(ctx context.Context, start time.Time, confirm bool) (*models.TenDayLedger, error) {
	rate, err := c.rates.ApplicableRate(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("resolve pay rate: %w", err)
	}
	prev, err := c.previousBills(ctx, start)
	if err != nil {
		return nil, err
	}

	l, err := c.ledgers.Update(ctx, start, func(l *models.TenDayLedger) error {
		if l.IsBilled && !confirm {
			return fmt.Errorf("%s: %w", period.Format(start), ErrAlreadyBilled)
		}
		Compute(l, rate, prev, c.preservePayments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("bills generated",
		zap.String("period", period.Format(start)),
		zap.Float64("payRate", rate),
		zap.Int("customers", len(l.CustBills)),
		zap.Float64("totalAmt", l.TotalAmt),
	)
	return l, nil
}

type runningTotal struct {
	amount decimal.Decimal
	qty    decimal.Decimal
}

// Compute fills session amounts, verifies every day and replaces the bills.
// prev maps custNo to the previous period's bill, whose dueAmt is carried
// forward.
func Compute(l *models.TenDayLedger, rate float64, prev map[int]models.CustBill, preservePayments bool) {
	totals := make(map[int]*runningTotal)

	for i := range l.Records {
		day := &l.Records[i]
		for j := range day.Quantities {
			q := &day.Quantities[j]
			q.AM.Amount = models.SessionAmount(q.AM, rate)
			q.PM.Amount = models.SessionAmount(q.PM, rate)

			t, ok := totals[q.CustNo]
			if !ok {
				t = &runningTotal{}
				totals[q.CustNo] = t
			}
			t.amount = t.amount.
				Add(decimal.NewFromFloat(q.AM.Amount)).
				Add(decimal.NewFromFloat(q.PM.Amount)).
				Round(2)
			t.qty = t.qty.
				Add(decimal.NewFromFloat(q.AM.Qty)).
				Add(decimal.NewFromFloat(q.PM.Qty)).
				Round(1)
		}
		day.IsVerified = true
		day.RecomputeTotals()
	}

	existing := make(map[int]models.CustBill, len(l.CustBills))
	for _, b := range l.CustBills {
		existing[b.CustNo] = b
	}
	if preservePayments {
		// Members billed before but gone from the readings keep their bill.
		for custNo := range existing {
			if _, ok := totals[custNo]; !ok {
				totals[custNo] = &runningTotal{}
			}
		}
	}

	custNos := make([]int, 0, len(totals))
	for custNo := range totals {
		custNos = append(custNos, custNo)
	}
	sort.Ints(custNos)

	bills := make([]models.CustBill, 0, len(custNos))
	total := decimal.Zero
	for _, custNo := range custNos {
		t := totals[custNo]
		bill := models.CustBill{
			CustNo:     custNo,
			TotalQty:   t.qty.InexactFloat64(),
			Amount:     t.amount.InexactFloat64(),
			PrevDueAmt: models.Round2(prev[custNo].DueAmt),
		}
		if old, ok := existing[custNo]; ok && preservePayments {
			bill.PaidAmt = old.PaidAmt
			bill.Remarks = old.Remarks
		}
		bill.DueAmt = dueAmount(bill)
		bills = append(bills, bill)
		total = total.Add(t.amount)
	}

	l.CustBills = bills
	l.TotalAmt = total.Round(2).InexactFloat64()

	if l.ReceivedAmt == nil {
		zero := 0.0
		l.ReceivedAmt = &zero
	}
	if l.PendingAmt == nil {
		pending := l.TotalAmt
		l.PendingAmt = &pending
	} else if preservePayments {
		pending := models.Round2(l.TotalAmt - *l.ReceivedAmt)
		l.PendingAmt = &pending
	}
	l.IsBilled = true
}

func dueAmount(b models.CustBill) float64 {
	return decimal.NewFromFloat(b.Amount).
		Add(decimal.NewFromFloat(b.PrevDueAmt)).
		Sub(decimal.NewFromFloat(b.PaidAmt)).
		Round(2).
		InexactFloat64()
}

// RecordPayment sets a member's paid amount for the period. A member without
// a bill gets one built from their readings and the previous period's due. The
// member must be on the ledger or carry a bill from the previous period.
// The ledger's received and pending amounts follow the bills.
func (c *Calculator) RecordPayment(ctx context.Context, start time.Time, custNo int, paid float64, remarks string) (*models.TenDayLedger, error) {
	if paid < 0 {
		return nil, fmt.Errorf("custNo %d: %w", custNo, ErrNegativePayment)
	}

	rate, err := c.rates.ApplicableRate(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("resolve pay rate: %w", err)
	}
	prev, err := c.previousBills(ctx, start)
	if err != nil {
		return nil, err
	}

	l, err := c.ledgers.Update(ctx, start, func(l *models.TenDayLedger) error {
		bill := l.Bill(custNo)
		if bill == nil {
			if _, owes := prev[custNo]; !owes && !onLedger(l, custNo) {
				return fmt.Errorf("custNo %d: %w", custNo, ErrUnknownMember)
			}
			qty, amount := l.CustomerTotals(custNo, rate)
			l.CustBills = append(l.CustBills, models.CustBill{
				CustNo:     custNo,
				TotalQty:   qty,
				Amount:     amount,
				PrevDueAmt: models.Round2(prev[custNo].DueAmt),
			})
			sort.SliceStable(l.CustBills, func(i, j int) bool {
				return l.CustBills[i].CustNo < l.CustBills[j].CustNo
			})
			bill = l.Bill(custNo)
		}

		bill.PaidAmt = models.Round2(paid)
		if remarks != "" {
			bill.Remarks = remarks
		}
		bill.DueAmt = dueAmount(*bill)

		applyReceipts(l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("payment recorded",
		zap.String("period", period.Format(start)),
		zap.Int("custNo", custNo),
		zap.Float64("paidAmt", models.Round2(paid)),
	)
	return l, nil
}

func onLedger(l *models.TenDayLedger, custNo int) bool {
	for i := range l.Records {
		if l.Records[i].Customer(custNo) != nil {
			return true
		}
	}
	return false
}

// applyReceipts refreshes receivedAmt and pendingAmt from the bills. An
// unbilled ledger's total follows its bills as well.
func applyReceipts(l *models.TenDayLedger) {
	received, billed := decimal.Zero, decimal.Zero
	for _, b := range l.CustBills {
		received = received.Add(decimal.NewFromFloat(b.PaidAmt))
		billed = billed.Add(decimal.NewFromFloat(b.Amount))
	}
	if !l.IsBilled {
		l.TotalAmt = billed.Round(2).InexactFloat64()
	}

	r := received.Round(2).InexactFloat64()
	p := decimal.NewFromFloat(l.TotalAmt).Sub(received).Round(2).InexactFloat64()
	l.ReceivedAmt = &r
	l.PendingAmt = &p
}
