package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

const (
	pdfMimeType = "application/pdf"

	// Ledger grid: every column width below is in units of ledgerGrid.
	ledgerGrid     = 72
	daysPerPage    = 5
	noWidth        = 3
	nameWidth      = 9
	readingWidth   = 2
	billedWidth    = 3
	ledgerRowH     = 5
	ledgerHeaderH  = 4
	passbookGrid   = 24
	passbookColW   = 3
	passbookLineH  = 7
	passbookTableH = 6
)

type cell struct {
	text  string
	span  int
	align align.Type
}

type tableRow struct {
	cells  []cell
	height float64
	bold   bool
}

type tablePage struct {
	title string
	rows  []tableRow
}

func sessionsOf(filter models.SessionFilter) []models.Session {
	var out []models.Session
	if filter.IncludesAM() {
		out = append(out, models.SessionAM)
	}
	if filter.IncludesPM() {
		out = append(out, models.SessionPM)
	}
	return out
}

func chunkDays(records []models.LedgerDayRecord) [][]models.LedgerDayRecord {
	var out [][]models.LedgerDayRecord
	for i := 0; i < len(records); i += daysPerPage {
		end := min(i+daysPerPage, len(records))
		out = append(out, records[i:end])
	}
	return out
}

// ledgerPages lays the period out five days per page. Names appear on the
// first page; billed columns and the totals row on the last.
func ledgerPages(l *models.TenDayLedger, members []models.Member, filter models.SessionFilter) []tablePage {
	sessions := sessionsOf(filter)
	chunks := chunkDays(l.Records)
	title := fmt.Sprintf("Ledger for Billing Period: %s - %s", shortDate(l.TenDayStart), shortDate(l.LastDay()))

	pages := make([]tablePage, 0, len(chunks))
	for i, days := range chunks {
		first, last := i == 0, i == len(chunks)-1
		p := tablePage{title: title}

		dateRow := tableRow{height: ledgerHeaderH, bold: true, cells: []cell{{text: "No", span: noWidth}}}
		sessionRow := tableRow{height: ledgerHeaderH, bold: true, cells: []cell{{span: noWidth}}}
		qfRow := tableRow{height: ledgerHeaderH, bold: true, cells: []cell{{span: noWidth}}}
		if first {
			dateRow.cells = append(dateRow.cells, cell{text: "Name", span: nameWidth})
			sessionRow.cells = append(sessionRow.cells, cell{span: nameWidth})
			qfRow.cells = append(qfRow.cells, cell{span: nameWidth})
		}
		for _, d := range days {
			dateRow.cells = append(dateRow.cells, cell{text: shortDate(d.Day), span: len(sessions) * 2 * readingWidth})
			for _, s := range sessions {
				sessionRow.cells = append(sessionRow.cells, cell{text: string(s), span: 2 * readingWidth})
				qfRow.cells = append(qfRow.cells, cell{text: "Q", span: readingWidth}, cell{text: "F", span: readingWidth})
			}
		}
		if last {
			dateRow.cells = append(dateRow.cells, cell{text: "Billed", span: 5 * billedWidth})
			for _, h := range []string{"Qty", "Amount", "Prev", "Paid", "Due"} {
				sessionRow.cells = append(sessionRow.cells, cell{text: h, span: billedWidth})
				qfRow.cells = append(qfRow.cells, cell{span: billedWidth})
			}
		}
		p.rows = append(p.rows, dateRow, sessionRow, qfRow)

		for _, m := range members {
			r := tableRow{height: ledgerRowH, cells: []cell{{text: fmt.Sprint(m.CustNo), span: noWidth}}}
			if first {
				r.cells = append(r.cells, cell{text: m.NameEn, span: nameWidth, align: align.Left})
			}
			for j := range days {
				c := days[j].Customer(m.CustNo)
				for _, s := range sessions {
					var rec models.MilkRecord
					if c != nil {
						rec = *c.Session(s)
					}
					r.cells = append(r.cells,
						cell{text: formatOrBlank(rec.Qty, 2), span: readingWidth},
						cell{text: formatOrBlank(rec.Fat, 1), span: readingWidth},
					)
				}
			}
			if last {
				r.cells = append(r.cells, billedCells(l.Bill(m.CustNo))...)
			}
			p.rows = append(p.rows, r)
		}

		if last {
			p.rows = append(p.rows, totalsRow(l, days, sessions, first))
		}
		pages = append(pages, p)
	}
	return pages
}

func billedCells(b *models.CustBill) []cell {
	cells := make([]cell, 5)
	for i := range cells {
		cells[i].span = billedWidth
	}
	if b == nil {
		return cells
	}
	cells[0].text = formatOrBlank(b.TotalQty, 2)
	cells[1].text = formatOrBlank(b.Amount, 2)
	cells[2].text = fmt.Sprintf("%.2f", b.PrevDueAmt)
	cells[3].text = formatOrBlank(b.PaidAmt, 2)
	cells[4].text = fmt.Sprintf("%.2f", b.DueAmt)
	return cells
}

func totalsRow(l *models.TenDayLedger, days []models.LedgerDayRecord, sessions []models.Session, withName bool) tableRow {
	r := tableRow{height: ledgerRowH, bold: true, cells: []cell{{text: "Totals", span: noWidth}}}
	if withName {
		r.cells = append(r.cells, cell{span: nameWidth})
	}
	for j := range days {
		for _, s := range sessions {
			var qty float64
			for _, q := range days[j].Quantities {
				qty += q.Session(s).Qty
			}
			r.cells = append(r.cells,
				cell{text: formatOrBlank(models.Round2(qty), 2), span: readingWidth},
				cell{span: readingWidth},
			)
		}
	}

	var qty, amount, prev, paid, due float64
	for _, b := range l.CustBills {
		qty += b.TotalQty
		amount += b.Amount
		prev += b.PrevDueAmt
		paid += b.PaidAmt
		due += b.DueAmt
	}
	r.cells = append(r.cells,
		cell{text: formatOrBlank(models.Round2(qty), 2), span: billedWidth},
		cell{text: formatOrBlank(models.Round2(amount), 2), span: billedWidth},
		cell{text: formatOrBlank(models.Round2(prev), 2), span: billedWidth},
		cell{text: formatOrBlank(models.Round2(paid), 2), span: billedWidth},
		cell{text: formatOrBlank(models.Round2(due), 2), span: billedWidth},
	)
	return r
}

func renderCols(cells []cell, grid int, size float64, bold bool) []core.Col {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}

	cols := make([]core.Col, 0, len(cells)+1)
	used := 0
	for _, c := range cells {
		a := c.align
		if a == "" {
			a = align.Center
		}
		cols = append(cols, text.NewCol(c.span, c.text, props.Text{Size: size, Style: style, Align: a}))
		used += c.span
	}
	if used < grid {
		cols = append(cols, col.New(grid-used))
	}
	return cols
}

func renderPages(pages []tablePage) ([]byte, error) {
	cfg := config.NewBuilder().
		WithMaxGridSize(ledgerGrid).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	for _, p := range pages {
		rows := []core.Row{
			row.New(10).Add(text.NewCol(ledgerGrid, p.title, props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Center})),
		}
		for _, r := range p.rows {
			size := 6.0
			if r.height == ledgerHeaderH {
				size = 5
			}
			rows = append(rows, row.New(r.height).Add(renderCols(r.cells, ledgerGrid, size, r.bold)...))
		}
		m.AddPages(page.New().Add(rows...))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

// ExportPDF renders the period as a tabular PDF.
func (s *Service) ExportPDF(ctx context.Context, start time.Time, filter models.SessionFilter) (File, error) {
	l, members, err := s.loadReport(ctx, start)
	if err != nil {
		return File{}, err
	}

	content, err := renderPages(ledgerPages(l, members, filter))
	if err != nil {
		return File{}, err
	}

	s.logger.Info("ledger exported",
		zap.String("period", period.Format(start)),
		zap.String("format", "pdf"),
		zap.String("session", string(filter)),
	)
	return File{Name: ledgerFileName(l, "pdf"), MimeType: pdfMimeType, Content: content}, nil
}

func dashOrValue(v float64, decimals int) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

func longDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// passbookFileName joins the member's name with underscores.
func passbookFileName(pb *Passbook) string {
	return fmt.Sprintf("%s_%s.pdf", strings.Join(strings.Fields(pb.Member.NameEn), "_"), pb.Period.Start)
}

// RenderPassbook draws the passbook as a one-member statement.
func RenderPassbook(pb *Passbook) ([]byte, error) {
	start, err := parseDate(pb.Period.Start)
	if err != nil {
		return nil, fmt.Errorf("passbook period start: %w", err)
	}
	end, err := parseDate(pb.Period.End)
	if err != nil {
		return nil, fmt.Errorf("passbook period end: %w", err)
	}

	m := maroto.New(config.NewBuilder().WithMaxGridSize(passbookGrid).Build())

	line := func(value string, style fontstyle.Type) {
		m.AddRow(passbookLineH, text.NewCol(passbookGrid, value, props.Text{Size: 11, Style: style}))
	}

	m.AddRow(12, text.NewCol(passbookGrid, "Milk Collection Passbook", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}))
	line("Customer: "+pb.Member.NameEn, fontstyle.Normal)
	line("Village: "+pb.Member.Village, fontstyle.Normal)
	line(fmt.Sprintf("Customer No: %d", pb.Member.CustNo), fontstyle.Normal)

	line(fmt.Sprintf("Period: %s - %s", longDate(start), longDate(end)), fontstyle.Normal)

	w := passbookColW
	m.AddRow(passbookTableH, renderCols([]cell{
		{text: "Date", span: w}, {text: "AM Session", span: 3 * w}, {text: "PM Session", span: 3 * w}, {text: "Day Amt", span: w},
	}, passbookGrid, 9, true)...)
	m.AddRow(passbookTableH, renderCols([]cell{
		{span: w}, {text: "Qty", span: w}, {text: "Fat", span: w}, {text: "Rs.", span: w},
		{text: "Qty", span: w}, {text: "Fat", span: w}, {text: "Rs.", span: w}, {text: "Rs.", span: w},
	}, passbookGrid, 9, true)...)

	for _, r := range pb.Rows {
		m.AddRow(passbookTableH, renderCols([]cell{
			{text: shortDate(r.day), span: w},
			{text: dashOrValue(r.AM.Qty, 1), span: w},
			{text: dashOrValue(r.AM.Fat, 1), span: w},
			{text: dashOrValue(r.AM.Amount, 2), span: w},
			{text: dashOrValue(r.PM.Qty, 1), span: w},
			{text: dashOrValue(r.PM.Fat, 1), span: w},
			{text: dashOrValue(r.PM.Amount, 2), span: w},
			{text: dashOrValue(r.DayAmt, 2), span: w},
		}, passbookGrid, 8, false)...)
	}
	t := pb.Totals
	m.AddRow(passbookTableH, renderCols([]cell{
		{text: "Total", span: w},
		{text: fmt.Sprintf("%.1f", t.AMQty), span: w},
		{text: "-", span: w},
		{text: fmt.Sprintf("%.2f", t.AMAmt), span: w},
		{text: fmt.Sprintf("%.1f", t.PMQty), span: w},
		{text: "-", span: w},
		{text: fmt.Sprintf("%.2f", t.PMAmt), span: w},
		{text: fmt.Sprintf("%.2f", t.Total), span: w},
	}, passbookGrid, 8, true)...)

	m.AddRow(4)
	m.AddRow(8, text.NewCol(passbookGrid, "Payment Summary", props.Text{Size: 12, Style: fontstyle.Bold}))
	line(fmt.Sprintf("Billed Amount: Rs. %.2f", pb.Summary.Billed), fontstyle.Normal)
	line(fmt.Sprintf("Previous Due: Rs. %.2f", pb.Summary.PrevDue), fontstyle.Normal)
	line(fmt.Sprintf("Paid Amount: Rs. %.2f", pb.Summary.Paid), fontstyle.Normal)
	line(fmt.Sprintf("Due Amount: Rs. %.2f", pb.Summary.Due), fontstyle.Bold)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate passbook pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

// PassbookPDF renders the member's passbook for the period.
func (s *Service) PassbookPDF(ctx context.Context, start time.Time, custNo int) (File, *Passbook, error) {
	pb, err := s.Passbook(ctx, start, custNo)
	if err != nil {
		return File{}, nil, err
	}
	if len(pb.Rows) == 0 {
		return File{}, nil, fmt.Errorf("custNo %d %s: %w", custNo, pb.Period.Start, ErrNoData)
	}

	content, err := RenderPassbook(pb)
	if err != nil {
		return File{}, nil, err
	}
	return File{Name: passbookFileName(pb), MimeType: pdfMimeType, Content: content}, pb, nil
}
