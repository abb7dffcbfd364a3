package handlers

import (
	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

type dayView struct {
	Day        string                 `json:"day"`
	Quantities []models.CustDayRecord `json:"quantities"`
	IsVerified bool                   `json:"isVerified"`
	DayTotal   models.DayTotal        `json:"dayTotal"`
}

type ledgerView struct {
	Period        period.Window     `json:"period"`
	TenDayStart   string            `json:"tenDayStart"`
	Records       []dayView         `json:"records"`
	CustBills     []models.CustBill `json:"custBills"`
	TotalAmt      float64           `json:"totalAmt"`
	ReceivableAmt float64           `json:"receivableAmt"`
	ReceivedAmt   *float64          `json:"receivedAmt,omitempty"`
	PendingAmt    *float64          `json:"pendingAmt,omitempty"`
	IsBilled      bool              `json:"isBilled"`
	Dirty         bool              `json:"dirty"`
}

func toLedgerView(l *models.TenDayLedger, dirty bool) ledgerView {
	out := ledgerView{
		Period:        period.WindowFor(l.TenDayStart),
		TenDayStart:   period.Format(l.TenDayStart),
		Records:       make([]dayView, 0, len(l.Records)),
		CustBills:     l.CustBills,
		TotalAmt:      l.TotalAmt,
		ReceivableAmt: l.ReceivableAmt,
		ReceivedAmt:   l.ReceivedAmt,
		PendingAmt:    l.PendingAmt,
		IsBilled:      l.IsBilled,
		Dirty:         dirty,
	}
	if out.CustBills == nil {
		out.CustBills = []models.CustBill{}
	}
	for _, r := range l.Records {
		q := r.Quantities
		if q == nil {
			q = []models.CustDayRecord{}
		}
		out.Records = append(out.Records, dayView{
			Day:        period.Format(r.Day),
			Quantities: q,
			IsVerified: r.IsVerified,
			DayTotal:   r.DayTotal,
		})
	}
	return out
}
