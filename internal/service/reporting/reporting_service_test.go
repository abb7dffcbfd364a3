package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

var errUnknownMember = errors.New("unknown member")

type fakeLedgers map[string]*models.TenDayLedger

func (f fakeLedgers) Open(_ context.Context, start time.Time) (*models.TenDayLedger, error) {
	if l, ok := f[period.Format(start)]; ok {
		return l.Clone(), nil
	}
	return &models.TenDayLedger{TenDayStart: start, CustBills: []models.CustBill{}}, nil
}

type fakeMembers []models.Member

func (f fakeMembers) List(context.Context) ([]models.Member, error) {
	return append([]models.Member(nil), f...), nil
}

func (f fakeMembers) Get(_ context.Context, custNo int) (models.Member, error) {
	for _, m := range f {
		if m.CustNo == custNo {
			return m, nil
		}
	}
	return models.Member{}, errUnknownMember
}

type fixedRate float64

func (r fixedRate) ApplicableRate(context.Context, time.Time) (float64, error) {
	return float64(r), nil
}

type fakeSheet struct {
	existing  [][]interface{}
	readRange string
	appended  [][]interface{}
}

func (f *fakeSheet) AppendRows(_ context.Context, _ string, rows [][]interface{}) error {
	f.appended = append(f.appended, rows...)
	return nil
}

func (f *fakeSheet) ReadRange(_ context.Context, sheetRange string) ([][]interface{}, error) {
	f.readRange = sheetRange
	return f.existing, nil
}

func jan(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

var registry = fakeMembers{
	{CustNo: 1, NameEn: "Ravi Kumar", NameTel: "రవి", Village: "Kondapur", MobileNo: "98765 43210", IsActive: true},
	{CustNo: 2, NameEn: "Lakshmi", Village: "Kondapur", IsActive: true},
}

// sampleLedger spans all eleven days of the last January period; only the
// first two carry readings.
func sampleLedger() *models.TenDayLedger {
	l := &models.TenDayLedger{
		TenDayStart: jan(21),
		CustBills: []models.CustBill{
			{CustNo: 1, TotalQty: 8.7, Amount: 328, PrevDueAmt: 50, PaidAmt: 100.5, DueAmt: 277.5},
		},
		IsBilled: true,
	}
	for d := 21; d <= 31; d++ {
		l.Records = append(l.Records, models.LedgerDayRecord{Day: jan(d)})
	}
	l.Records[0].Quantities = []models.CustDayRecord{
		{CustNo: 1, AM: models.MilkRecord{Qty: 5, Fat: 4, Amount: 160}, PM: models.MilkRecord{Qty: 2.5, Fat: 6}},
		{CustNo: 2, AM: models.MilkRecord{Qty: 3, Fat: 5}},
	}
	l.Records[1].Quantities = []models.CustDayRecord{
		{CustNo: 1, AM: models.MilkRecord{Qty: 1.2, Fat: 5}},
	}
	return l
}

func newTestService(sheet *fakeSheet) *Service {
	ledgers := fakeLedgers{
		"2025-01-21": sampleLedger(),
		"2025-01-11": {
			TenDayStart: jan(11),
			Records: []models.LedgerDayRecord{{
				Day:        jan(15),
				Quantities: []models.CustDayRecord{{CustNo: 1, PM: models.MilkRecord{Qty: 2, Fat: 4}}, {CustNo: 2}},
			}},
		},
	}
	opts := Options{SheetRange: "Ledger!A:K", CountryCode: "91", Location: time.UTC}
	if sheet != nil {
		opts.Sheets = sheet
	}
	svc := NewService(ledgers, registry, fixedRate(8), opts, nil)
	svc.now = func() time.Time { return time.Date(2025, 2, 5, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestBuildExport(t *testing.T) {
	l := sampleLedger()
	l.Records = l.Records[:2]
	exp := BuildExport(l, reportMembers(l, registry), models.FilterBoth)

	assert.Equal(t, ExportPeriod{Start: "2025-01-21", End: "2025-01-22"}, exp.BillingPeriod)
	require.Len(t, exp.Data, 2)

	ravi := exp.Data[0]
	assert.Equal(t, "Ravi Kumar", ravi.NameEn)
	require.Len(t, ravi.Records, 2)
	require.NotNil(t, ravi.Records[0].AM)
	assert.Equal(t, 160.0, *ravi.Records[0].AM.Amount)
	assert.Nil(t, ravi.Records[0].PM.Amount)

	lakshmi := exp.Data[1]
	assert.Nil(t, lakshmi.Records[1].AM, "no record for the day")
	assert.Nil(t, lakshmi.Records[0].PM.Qty)
}

func TestBuildExportFiltersSessions(t *testing.T) {
	l := sampleLedger()
	exp := BuildExport(l, reportMembers(l, registry), models.FilterAM)

	body, err := json.Marshal(exp.Data[0].Records[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-01-21","AM":{"qty":5,"fat":4,"amount":160}}`, string(body))
}

func TestExportJSON(t *testing.T) {
	svc := newTestService(nil)

	file, err := svc.ExportJSON(context.Background(), jan(21), models.FilterBoth)
	require.NoError(t, err)
	assert.Equal(t, "ledger_2025-01-21_to_2025-01-31.json", file.Name)
	assert.Equal(t, "application/json", file.MimeType)

	var exp Export
	require.NoError(t, json.Unmarshal(file.Content, &exp))
	assert.Len(t, exp.Data, 2)

	_, err = svc.ExportJSON(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), models.FilterBoth)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLedgerPagesLayout(t *testing.T) {
	l := sampleLedger()
	pages := ledgerPages(l, reportMembers(l, registry), models.FilterBoth)
	require.Len(t, pages, 3, "an 11-day period needs a third page")

	first, last := pages[0], pages[2]
	assert.Equal(t, "Ledger for Billing Period: Jan 21 - Jan 31", first.title)
	assert.Equal(t, "Name", first.rows[0].cells[1].text)
	assert.Equal(t, "Jan 21", first.rows[0].cells[2].text)
	assert.Equal(t, "5.00", first.rows[3].cells[2].text)
	assert.Equal(t, "4.0", first.rows[3].cells[3].text)
	assert.Equal(t, "", first.rows[4].cells[4].text, "blank PM qty")
	assert.Len(t, first.rows, 5, "headers and members, no totals")

	assert.Equal(t, "Billed", last.rows[0].cells[len(last.rows[0].cells)-1].text)
	require.Len(t, last.rows, 6)
	totals := last.rows[5]
	assert.Equal(t, "Totals", totals.cells[0].text)
	assert.Equal(t, "328.00", totals.cells[len(totals.cells)-4].text)
	assert.Equal(t, "277.50", totals.cells[len(totals.cells)-1].text)

	for _, p := range pages {
		for _, r := range p.rows {
			width := 0
			for _, c := range r.cells {
				width += c.span
			}
			assert.LessOrEqual(t, width, ledgerGrid)
		}
	}
}

func TestLedgerPagesSinglePageWithAMOnly(t *testing.T) {
	l := sampleLedger()
	l.Records = l.Records[:2]
	pages := ledgerPages(l, reportMembers(l, registry), models.FilterAM)
	require.Len(t, pages, 1)

	header := pages[0].rows[0]
	assert.Equal(t, "Name", header.cells[1].text)
	assert.Equal(t, "Billed", header.cells[len(header.cells)-1].text)
	assert.Equal(t, "AM", pages[0].rows[1].cells[2].text)
	assert.Equal(t, "Jan 22", header.cells[3].text)
}

func TestExportPDF(t *testing.T) {
	svc := newTestService(nil)

	file, err := svc.ExportPDF(context.Background(), jan(21), models.FilterBoth)
	require.NoError(t, err)
	assert.Equal(t, "ledger_2025-01-21_to_2025-01-31.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, "%PDF", string(file.Content[:4]))
}

func TestBuildPassbook(t *testing.T) {
	pb := BuildPassbook(sampleLedger(), registry[0], 8)

	require.Len(t, pb.Rows, 2)
	assert.Equal(t, 280.0, pb.Rows[0].DayAmt)
	assert.Equal(t, 48.0, pb.Rows[1].AM.Amount)
	assert.Equal(t, PassbookTotals{AMQty: 6.2, AMAmt: 208, PMQty: 2.5, PMAmt: 120, Total: 328}, pb.Totals)
	assert.Equal(t, BillSummary{Billed: 328, PrevDue: 50, Paid: 100.5, Due: 277.5}, pb.Summary)
	assert.True(t, pb.IsBilled)
}

func TestPassbookNavigation(t *testing.T) {
	svc := newTestService(nil)

	pb, err := svc.Passbook(context.Background(), jan(21), 1)
	require.NoError(t, err)
	assert.True(t, pb.HasNext)
	assert.True(t, pb.HasPrevious)
	assert.Equal(t, "2025-01-31", pb.Period.End)

	pb, err = svc.Passbook(context.Background(), jan(21), 2)
	require.NoError(t, err)
	assert.False(t, pb.HasPrevious, "zero-only readings are not supplies")
	assert.Equal(t, 120.0, pb.Summary.Due)

	_, err = svc.Passbook(context.Background(), jan(21), 9)
	assert.ErrorIs(t, err, errUnknownMember)
}

func TestPassbookPDF(t *testing.T) {
	svc := newTestService(nil)

	file, pb, err := svc.PassbookPDF(context.Background(), jan(21), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ravi_Kumar_2025-01-21.pdf", file.Name)
	assert.Equal(t, "%PDF", string(file.Content[:4]))
	assert.Equal(t, 1, pb.Member.CustNo)

	_, _, err = svc.PassbookPDF(context.Background(), jan(11), 9)
	assert.Error(t, err)

	broken := *pb
	broken.Period.End = "31/01/2025"
	_, err = RenderPassbook(&broken)
	assert.ErrorContains(t, err, "passbook period end")
}

func TestStatementMessage(t *testing.T) {
	pb := BuildPassbook(sampleLedger(), registry[0], 8)
	msg := StatementMessage(&pb, jan(21), jan(31))

	assert.Equal(t, "Dear Ravi Kumar,\n\n"+
		"Your milk collection billing statement for the period Jan 21 - Jan 31 is attached.\n\n"+
		"*Summary:*\n"+
		"Total Amount: ₹328.00\n"+
		"Previous Due: ₹50.00\n"+
		"Paid: ₹100.50\n"+
		"Due Amount: ₹277.50\n\n"+
		"Thank you for your business!", msg)
}

func TestShareLinkEncodesSpacesAsPercent20(t *testing.T) {
	assert.Equal(t,
		"https://wa.me/919876543210?text=a%20b%0A%0A%28PDF%20will%20be%20sent%20separately%29",
		ShareLink("919876543210", "a b"))
}

func TestStatement(t *testing.T) {
	svc := newTestService(nil)

	st, err := svc.Statement(context.Background(), jan(21), 1)
	require.NoError(t, err)
	assert.Equal(t, "919876543210", st.Phone)
	assert.Contains(t, st.Link, "https://wa.me/919876543210?text=Dear%20Ravi%20Kumar%2C")
	assert.Contains(t, st.Message, "Due Amount: ₹277.50")
	assert.Equal(t, "Ravi_Kumar_2025-01-21.pdf", st.PDF.Name)

	_, err = svc.Statement(context.Background(), jan(21), 2)
	assert.ErrorIs(t, err, ErrNoMobile)
}

func TestExportToSheets(t *testing.T) {
	sheet := &fakeSheet{existing: [][]interface{}{{"Period"}, {"2025-01-11"}}}
	svc := newTestService(sheet)

	n, err := svc.ExportToSheets(context.Background(), jan(21))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Ledger!A:A", sheet.readRange)
	require.Len(t, sheet.appended, 3)
	assert.Equal(t, []interface{}{"2025-01-21", "2025-01-21", 1, "Ravi Kumar", 5.0, 4.0, 160.0, 2.5, 6.0, 120.0, 280.0}, sheet.appended[0])
	assert.Equal(t, "Lakshmi", sheet.appended[1][3])

	sheet.existing = append(sheet.existing, []interface{}{"2025-01-21"})
	_, err = svc.ExportToSheets(context.Background(), jan(21))
	assert.ErrorIs(t, err, ErrAlreadyExported)
	assert.Len(t, sheet.appended, 3)
}

func TestExportToSheetsDisabled(t *testing.T) {
	_, err := newTestService(nil).ExportToSheets(context.Background(), jan(21))
	assert.ErrorIs(t, err, ErrSheetsDisabled)
}

func TestFirstColumn(t *testing.T) {
	assert.Equal(t, "Ledger!A:A", firstColumn("Ledger!A:K"))
	assert.Equal(t, "Ledger!B:B", firstColumn("Ledger!B2:K"))
	assert.Equal(t, "A:A", firstColumn("A1:K"))
}

func TestDailySummary(t *testing.T) {
	svc := newTestService(nil)

	msg, err := svc.DailySummary(context.Background(), time.Date(2025, 1, 21, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, msg, "Tue, Jan 21")
	assert.Contains(t, msg, "AM: 8.0 L")
	assert.Contains(t, msg, "PM: 2.5 L")
	assert.Contains(t, msg, "Total: 10.5 L from 2 members")

	_, err = svc.DailySummary(context.Background(), time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNoData)
}
