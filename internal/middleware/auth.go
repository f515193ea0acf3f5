package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"fitdash/internal/auth"
	"fitdash/internal/database"
	"fitdash/internal/model"
)

const userKey = "user"

// Auth is a middleware to protect routes that require a signed-in dashboard
// user. The user is available to handlers through CurrentUser.
func Auth(store sessions.Store, users database.UserStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := auth.GetSession(store, c.Request)
		if err != nil {
			log.Error("load session", zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		userID := auth.SessionUserID(session)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}

		u, err := users.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			log.Error("load session user", zap.String("user_id", userID), zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

// CurrentUser returns the user set by Auth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok && u != nil
}

// SetCurrentUser stores u the way Auth does.
func SetCurrentUser(c *gin.Context, u *model.User) {
	c.Set(userKey, u)
}
