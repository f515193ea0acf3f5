package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"

	"fitdash/internal/auth"
	"fitdash/internal/config"
	"fitdash/internal/database"
	"fitdash/internal/model"
)

type Handler struct {
	db    database.UserStore
	store sessions.Store
	cfg   *config.Config
	p     goth.Provider
	auth  auth.Authenticator
}

func New(db database.UserStore, store sessions.Store, cfg *config.Config, p goth.Provider, auth auth.Authenticator) *Handler {

	return &Handler{db, store, cfg, p, auth}
}

func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, struct{ Message string }{
		Message: "fitdash golang backend",
	})
}

// SignInWithProvider starts the dashboard login with the configured provider.
func (h *Handler) SignInWithProvider(c *gin.Context) {
	provider := c.Param("provider")
	if provider != h.p.Name() {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	q := c.Request.URL.Query()
	q.Add("provider", provider)
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

func (h *Handler) CallbackHandler(c *gin.Context) {
	provider := c.Param("provider")
	q := c.Request.URL.Query()
	q.Add("provider", provider)
	q.Del("scope")
	c.Request.URL.RawQuery = q.Encode()

	ctx := c.Request.Context()

	gothUser, err := h.auth.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	dbUser, err := h.db.FindUserByEmail(ctx, gothUser.Email)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if dbUser == nil {
		dbUser, err = h.db.CreateUser(ctx, &model.User{
			Email:     gothUser.Email,
			Name:      gothUser.Name,
			AvatarURL: gothUser.AvatarURL,
		})
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	} else if dbUser.Name != gothUser.Name || dbUser.AvatarURL != gothUser.AvatarURL {
		if err := h.db.UpdateUserProfile(ctx, dbUser.ID, gothUser.Name, gothUser.AvatarURL); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	session, err := auth.GetSession(h.store, c.Request)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	session.Values[auth.UserIDKey] = dbUser.ID
	if err := session.Save(c.Request, c.Writer); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.cfg.FrontendURL)
}

func (h *Handler) Success(c *gin.Context) {
	c.Redirect(http.StatusPermanentRedirect, h.cfg.FrontendURL)
}

// Logout ends the dashboard session. Provider connections are kept.
func (h *Handler) Logout(c *gin.Context) {
	// gothic only clears its handshake cookie; a failure there does not
	// keep the user signed in.
	_ = h.auth.Logout(c.Writer, c.Request)

	session, err := auth.GetSession(h.store, c.Request)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	delete(session.Values, auth.UserIDKey)
	session.Options.MaxAge = -1
	if err := session.Save(c.Request, c.Writer); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.cfg.FrontendURL)
}

func (h *Handler) Me(c *gin.Context) {
	session, err := auth.GetSession(h.store, c.Request)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	userID := auth.SessionUserID(session)
	if userID == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	user, err := h.db.FindUserByID(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if user == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, user)
}
