package ledger

import (
	"time"

	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// Stored shape of a ledger document. Dates are YYYY-MM-DD strings.

type milkRecord struct {
	Qty    float64 `json:"qty" bson:"qty"`
	Fat    float64 `json:"fat" bson:"fat"`
	Amount float64 `json:"amount,omitempty" bson:"amount,omitempty"`
}

type custDayRecord struct {
	CustNo int        `json:"custNo" bson:"custNo"`
	AM     milkRecord `json:"AM" bson:"AM"`
	PM     milkRecord `json:"PM" bson:"PM"`
}

type dayTotal struct {
	AM milkRecord `json:"AM" bson:"AM"`
	PM milkRecord `json:"PM" bson:"PM"`
}

type dayRecord struct {
	Day        string          `json:"day" bson:"day"`
	Quantities []custDayRecord `json:"quantities" bson:"quantities"`
	IsVerified bool            `json:"isVerified" bson:"isVerified"`
	DayTotal   dayTotal        `json:"dayTotal" bson:"dayTotal"`
}

type custBill struct {
	CustNo     int     `json:"custNo" bson:"custNo"`
	TotalQty   float64 `json:"totalQty" bson:"totalQty"`
	Amount     float64 `json:"amount" bson:"amount"`
	PrevDueAmt float64 `json:"prevDueAmt" bson:"prevDueAmt"`
	PaidAmt    float64 `json:"paidAmt" bson:"paidAmt"`
	DueAmt     float64 `json:"dueAmt" bson:"dueAmt"`
	Remarks    string  `json:"remarks,omitempty" bson:"remarks,omitempty"`
}

type tenDayLedger struct {
	TenDayStart   string      `json:"tenDayStart" bson:"tenDayStart"`
	Records       []dayRecord `json:"records" bson:"records"`
	CustBills     []custBill  `json:"custBills" bson:"custBills"`
	TotalAmt      float64     `json:"totalAmt" bson:"totalAmt"`
	ReceivableAmt float64     `json:"receivableAmt" bson:"receivableAmt"`
	ReceivedAmt   *float64    `json:"receivedAmt,omitempty" bson:"receivedAmt,omitempty"`
	PendingAmt    *float64    `json:"pendingAmt,omitempty" bson:"pendingAmt,omitempty"`
	IsBilled      bool        `json:"isBilled" bson:"isBilled"`
}

type ledgerDocument struct {
	docstore.Meta `bson:",inline"`
	Ledger        tenDayLedger `json:"ledger" bson:"ledger"`
	UpdatedAt     string       `json:"updatedAt" bson:"updatedAt"`
}

func encodeCustDay(c models.CustDayRecord) custDayRecord {
	return custDayRecord{CustNo: c.CustNo, AM: milkRecord(c.AM), PM: milkRecord(c.PM)}
}

func decodeCustDay(c custDayRecord) models.CustDayRecord {
	return models.CustDayRecord{CustNo: c.CustNo, AM: models.MilkRecord(c.AM), PM: models.MilkRecord(c.PM)}
}

func encode(l *models.TenDayLedger) tenDayLedger {
	out := tenDayLedger{
		TenDayStart:   period.Format(l.TenDayStart),
		Records:       make([]dayRecord, 0, len(l.Records)),
		CustBills:     make([]custBill, 0, len(l.CustBills)),
		TotalAmt:      l.TotalAmt,
		ReceivableAmt: l.ReceivableAmt,
		ReceivedAmt:   l.ReceivedAmt,
		PendingAmt:    l.PendingAmt,
		IsBilled:      l.IsBilled,
	}
	for _, r := range l.Records {
		day := dayRecord{
			Day:        period.Format(r.Day),
			Quantities: make([]custDayRecord, 0, len(r.Quantities)),
			IsVerified: r.IsVerified,
			DayTotal:   dayTotal{AM: milkRecord(r.DayTotal.AM), PM: milkRecord(r.DayTotal.PM)},
		}
		for _, q := range r.Quantities {
			day.Quantities = append(day.Quantities, encodeCustDay(q))
		}
		out.Records = append(out.Records, day)
	}
	for _, b := range l.CustBills {
		out.CustBills = append(out.CustBills, custBill(b))
	}
	return out
}

// decode converts a stored ledger. Days with unreadable dates are dropped.
func decode(w tenDayLedger, start time.Time, loc *time.Location, logger *zap.Logger) *models.TenDayLedger {
	out := &models.TenDayLedger{
		TenDayStart:   start,
		TotalAmt:      w.TotalAmt,
		ReceivableAmt: w.ReceivableAmt,
		ReceivedAmt:   w.ReceivedAmt,
		PendingAmt:    w.PendingAmt,
		IsBilled:      w.IsBilled,
		CustBills:     make([]models.CustBill, 0, len(w.CustBills)),
	}
	for _, r := range w.Records {
		day, err := period.Parse(r.Day, loc)
		if err != nil {
			logger.Warn("skip stored day with invalid date", zap.String("value", r.Day), zap.Error(err))
			continue
		}
		rec := models.LedgerDayRecord{
			Day:        day,
			Quantities: make([]models.CustDayRecord, 0, len(r.Quantities)),
			IsVerified: r.IsVerified,
			DayTotal:   models.DayTotal{AM: models.MilkRecord(r.DayTotal.AM), PM: models.MilkRecord(r.DayTotal.PM)},
		}
		for _, q := range r.Quantities {
			rec.Quantities = append(rec.Quantities, decodeCustDay(q))
		}
		out.Records = append(out.Records, rec)
	}
	for _, b := range w.CustBills {
		out.CustBills = append(out.CustBills, models.CustBill(b))
	}
	return out
}
