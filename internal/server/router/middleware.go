package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/repository/couchdb"
	"github.com/mcmanager/milkledger/internal/server/handlers"
)

// requireSession resolves the session cookie against the document store on
// every request.
func requireSession(auth handlers.Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(couchdb.SessionCookie)
		session, err := auth.CurrentSession(c.Request.Context(), cookie)
		if err != nil {
			if errors.Is(err, couchdb.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
				return
			}
			logger.Error("session lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "session lookup failed"})
			return
		}

		c.Set(handlers.SessionContextKey, session)
		c.Next()
	}
}

func isAdmin(session models.UserSession, adminUser string) bool {
	return session.HasRole(models.AdminRole) || (adminUser != "" && session.Name == adminUser)
}

// requireAdminToConfirm lets only admins re-run bills with ?confirm=true.
func requireAdminToConfirm(adminUser string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("confirm") != "true" {
			c.Next()
			return
		}

		value, _ := c.Get(handlers.SessionContextKey)
		session, ok := value.(models.UserSession)
		if !ok || !isAdmin(session, adminUser) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "only admins may re-run bills"})
			return
		}
		c.Next()
	}
}
