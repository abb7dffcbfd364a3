package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/repository/couchdb"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
	"github.com/mcmanager/milkledger/internal/service/billing"
	"github.com/mcmanager/milkledger/internal/service/entry"
	"github.com/mcmanager/milkledger/internal/service/members"
	"github.com/mcmanager/milkledger/internal/service/ratecard"
	"github.com/mcmanager/milkledger/internal/service/reporting"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, period.ErrInvalidStart),
		errors.Is(err, entry.ErrNegativeValue),
		errors.Is(err, entry.ErrDayOutOfPeriod),
		errors.Is(err, entry.ErrInvalidSession),
		errors.Is(err, billing.ErrNegativePayment),
		errors.Is(err, members.ErrInvalid),
		errors.Is(err, ratecard.ErrInvalidRate),
		errors.Is(err, reporting.ErrNoMobile):
		return http.StatusBadRequest
	case errors.Is(err, couchdb.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, members.ErrNotFound),
		errors.Is(err, billing.ErrUnknownMember),
		errors.Is(err, reporting.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, docstore.ErrConflict),
		errors.Is(err, billing.ErrAlreadyBilled),
		errors.Is(err, reporting.ErrAlreadyExported):
		return http.StatusConflict
	case errors.Is(err, reporting.ErrSheetsDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs err and answers with its mapped status. Internal errors
// are not echoed to the client.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.Warn(msg, zap.Error(err), zap.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeFile(c *gin.Context, file reporting.File) {
	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.MimeType, file.Content)
}
