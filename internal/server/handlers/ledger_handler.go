package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/service/entry"
	"github.com/mcmanager/milkledger/internal/service/reporting"
)

// LedgerWorkspace holds the per-period edit buffers.
type LedgerWorkspace interface {
	Open(ctx context.Context, start time.Time) (*models.TenDayLedger, error)
	Dirty(start time.Time) bool
	RecordReadings(ctx context.Context, start time.Time, readings []entry.Reading) (*models.TenDayLedger, error)
	ClearReading(ctx context.Context, start, day time.Time, custNo int, session models.Session) (*models.TenDayLedger, error)
	Save(ctx context.Context, start time.Time) (*models.TenDayLedger, error)
	Discard(start time.Time)
}

// BillingService runs bills and records payments.
type BillingService interface {
	RunBills(ctx context.Context, start time.Time, confirm bool) (*models.TenDayLedger, error)
	RecordPayment(ctx context.Context, start time.Time, custNo int, paid float64, remarks string) (*models.TenDayLedger, error)
}

// ReportService renders exports and passbooks.
type ReportService interface {
	ExportJSON(ctx context.Context, start time.Time, filter models.SessionFilter) (reporting.File, error)
	ExportPDF(ctx context.Context, start time.Time, filter models.SessionFilter) (reporting.File, error)
	ExportToSheets(ctx context.Context, start time.Time) (int, error)
	Passbook(ctx context.Context, start time.Time, custNo int) (*reporting.Passbook, error)
	PassbookPDF(ctx context.Context, start time.Time, custNo int) (reporting.File, *reporting.Passbook, error)
}

// StatementSharer sends member statements.
type StatementSharer interface {
	ShareStatement(ctx context.Context, start time.Time, custNo int) (models.ShareResult, error)
}

// LedgerHandler serves periods, ledgers, bills and reports.
type LedgerHandler struct {
	workspace LedgerWorkspace
	billing   BillingService
	reports   ReportService
	sharer    StatementSharer
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerHandler constructs the HTTP handler adapter.
func NewLedgerHandler(workspace LedgerWorkspace, billing BillingService, reports ReportService, sharer StatementSharer, loc *time.Location, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &LedgerHandler{
		workspace: workspace,
		billing:   billing,
		reports:   reports,
		sharer:    sharer,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *LedgerHandler) start(c *gin.Context) (time.Time, bool) {
	start, err := period.ParseStart(c.Param("period"), h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return time.Time{}, false
	}
	return start, true
}

func custNoParam(c *gin.Context) (int, bool) {
	custNo, err := strconv.Atoi(c.Param("custNo"))
	if err != nil || custNo <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "custNo must be a positive number"})
		return 0, false
	}
	return custNo, true
}

func (h *LedgerHandler) respond(c *gin.Context, start time.Time, l *models.TenDayLedger) {
	c.JSON(http.StatusOK, toLedgerView(l, h.workspace.Dirty(start)))
}

// CurrentPeriod describes the period containing today.
func (h *LedgerHandler) CurrentPeriod(c *gin.Context) {
	c.JSON(http.StatusOK, period.WindowFor(period.CurrentStart(h.now().In(h.loc))))
}

// Period describes the period starting at :period.
func (h *LedgerHandler) Period(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, period.WindowFor(start))
}

// Get returns the period's ledger including unsaved edits.
func (h *LedgerHandler) Get(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	l, err := h.workspace.Open(c.Request.Context(), start)
	if err != nil {
		writeError(c, h.logger, "failed to load ledger", err)
		return
	}
	h.respond(c, start, l)
}

type readingRequest struct {
	Date    string  `json:"date" binding:"required"`
	CustNo  int     `json:"custNo" binding:"required"`
	Session string  `json:"session" binding:"required"`
	Qty     float64 `json:"qty"`
	Fat     float64 `json:"fat"`
	Clear   bool    `json:"clear"`
}

type entriesRequest struct {
	Readings []readingRequest `json:"readings" binding:"required,dive"`
}

// RecordEntries applies readings to the period's buffer without saving.
// Entries flagged clear reset their session instead.
func (h *LedgerHandler) RecordEntries(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}

	var req entriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	readings := make([]entry.Reading, 0, len(req.Readings))
	var clears []entry.Reading
	for _, r := range req.Readings {
		day, err := period.Parse(r.Date, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reading := entry.Reading{Day: day, CustNo: r.CustNo, Session: models.Session(r.Session), Qty: r.Qty, Fat: r.Fat}
		if r.Clear {
			clears = append(clears, reading)
			continue
		}
		readings = append(readings, reading)
	}

	ctx := c.Request.Context()
	l, err := h.workspace.RecordReadings(ctx, start, readings)
	for _, r := range clears {
		if err != nil {
			break
		}
		l, err = h.workspace.ClearReading(ctx, start, r.Day, r.CustNo, r.Session)
	}
	if err != nil {
		writeError(c, h.logger, "failed to record readings", err)
		return
	}
	h.respond(c, start, l)
}

// Save persists the period's buffer.
func (h *LedgerHandler) Save(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	l, err := h.workspace.Save(c.Request.Context(), start)
	if err != nil {
		writeError(c, h.logger, "failed to save ledger", err)
		return
	}
	h.respond(c, start, l)
}

// DiscardDraft drops unsaved edits of the period.
func (h *LedgerHandler) DiscardDraft(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	h.workspace.Discard(start)
	c.Status(http.StatusNoContent)
}

// RunBills computes the period's bills. ?confirm=true recomputes a billed
// period.
func (h *LedgerHandler) RunBills(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	l, err := h.billing.RunBills(c.Request.Context(), start, c.Query("confirm") == "true")
	if err != nil {
		writeError(c, h.logger, "failed to run bills", err)
		return
	}
	h.respond(c, start, l)
}

type paymentRequest struct {
	PaidAmt *float64 `json:"paidAmt" binding:"required"`
	Remarks string   `json:"remarks"`
}

// RecordPayment stores what a member paid for the period.
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	custNo, ok := custNoParam(c)
	if !ok {
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paidAmt is required"})
		return
	}

	l, err := h.billing.RecordPayment(c.Request.Context(), start, custNo, *req.PaidAmt, req.Remarks)
	if err != nil {
		writeError(c, h.logger, "failed to record payment", err)
		return
	}
	h.respond(c, start, l)
}

// Export downloads the period as JSON or PDF, filtered by session.
func (h *LedgerHandler) Export(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	filter := models.ParseSessionFilter(c.Query("session"))

	var (
		file reporting.File
		err  error
	)
	switch c.DefaultQuery("format", "json") {
	case "json":
		file, err = h.reports.ExportJSON(c.Request.Context(), start, filter)
	case "pdf":
		file, err = h.reports.ExportPDF(c.Request.Context(), start, filter)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or pdf"})
		return
	}
	if err != nil {
		writeError(c, h.logger, "failed to export ledger", err)
		return
	}
	writeFile(c, file)
}

// ExportSheets appends the period to the configured spreadsheet.
func (h *LedgerHandler) ExportSheets(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	rows, err := h.reports.ExportToSheets(c.Request.Context(), start)
	if err != nil {
		writeError(c, h.logger, "failed to export to sheets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// Passbook returns a member's passbook as JSON or PDF.
func (h *LedgerHandler) Passbook(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	custNo, ok := custNoParam(c)
	if !ok {
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		pb, err := h.reports.Passbook(c.Request.Context(), start, custNo)
		if err != nil {
			writeError(c, h.logger, "failed to build passbook", err)
			return
		}
		c.JSON(http.StatusOK, pb)
	case "pdf":
		file, _, err := h.reports.PassbookPDF(c.Request.Context(), start, custNo)
		if err != nil {
			writeError(c, h.logger, "failed to render passbook", err)
			return
		}
		writeFile(c, file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or pdf"})
	}
}

// ShareStatement sends the member's statement over WhatsApp, or returns the
// share link when delivery is unavailable.
func (h *LedgerHandler) ShareStatement(c *gin.Context) {
	start, ok := h.start(c)
	if !ok {
		return
	}
	custNo, ok := custNoParam(c)
	if !ok {
		return
	}

	res, err := h.sharer.ShareStatement(c.Request.Context(), start, custNo)
	if err != nil {
		writeError(c, h.logger, "failed to share statement", err)
		return
	}
	c.JSON(http.StatusOK, res)
}
