package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/repository/couchdb"
)

// SessionContextKey is where the authenticated user is kept on the request.
const SessionContextKey = "session"

// Authenticator opens, resolves and closes document store sessions.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (models.UserSession, *http.Cookie, error)
	CurrentSession(ctx context.Context, cookieValue string) (models.UserSession, error)
	Logout(ctx context.Context, cookieValue string) error
}

// SessionHandler relays cookie sessions of the document store. No session
// state is kept on this side.
type SessionHandler struct {
	auth   Authenticator
	logger *zap.Logger
}

// NewSessionHandler constructs the HTTP handler adapter.
func NewSessionHandler(auth Authenticator, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{auth: auth, logger: logger}
}

// Login opens a session and relays its cookie.
func (h *SessionHandler) Login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and password are required"})
		return
	}

	session, cookie, err := h.auth.Login(c.Request.Context(), creds)
	if err != nil {
		writeError(c, h.logger, "login failed", err)
		return
	}

	cookie.Path = "/"
	cookie.HttpOnly = true
	http.SetCookie(c.Writer, cookie)
	h.logger.Info("user logged in", zap.String("name", session.Name))
	c.JSON(http.StatusOK, session)
}

// Current returns the user behind the session cookie.
func (h *SessionHandler) Current(c *gin.Context) {
	cookie, _ := c.Cookie(couchdb.SessionCookie)
	session, err := h.auth.CurrentSession(c.Request.Context(), cookie)
	if err != nil {
		writeError(c, h.logger, "session lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout closes the session and expires the cookie.
func (h *SessionHandler) Logout(c *gin.Context) {
	cookie, _ := c.Cookie(couchdb.SessionCookie)
	if cookie != "" {
		if err := h.auth.Logout(c.Request.Context(), cookie); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
	}
	c.SetCookie(couchdb.SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}
