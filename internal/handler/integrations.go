package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitdash/internal/fitness"
	"fitdash/internal/middleware"
	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

// TokenManager is the part of *tokens.Manager the integration routes use.
type TokenManager interface {
	Authorize(ctx context.Context, userID string) (string, error)
	ExchangeCode(ctx context.Context, userID, code, state string) (*model.TokenRecord, error)
	Refresh(ctx context.Context, userID string) (*model.TokenRecord, error)
	Disconnect(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (model.Connection, error)
}

type FitbitReader interface {
	DailyActivity(ctx context.Context, userID string, date time.Time) (*model.DailyActivity, error)
	Sleep(ctx context.Context, userID string, date time.Time) (*model.SleepSummary, error)
}

type StravaReader interface {
	Athlete(ctx context.Context, userID string) (*model.Athlete, error)
	Activities(ctx context.Context, userID string, q fitness.ActivityQuery) ([]model.Activity, error)
	Stats(ctx context.Context, userID string) (*model.AthleteStats, error)
}

// Integrations serves the provider connect flow and dashboard data routes.
type Integrations struct {
	managers    map[model.Provider]TokenManager
	fitbit      FitbitReader
	strava      StravaReader
	frontendURL string
	log         *zap.Logger
	now         func() time.Time
}

func NewIntegrations(managers map[model.Provider]TokenManager, fitbit FitbitReader, strava StravaReader, frontendURL string, log *zap.Logger) *Integrations {
	return &Integrations{
		managers:    managers,
		fitbit:      fitbit,
		strava:      strava,
		frontendURL: frontendURL,
		log:         log,
		now:         time.Now,
	}
}

// Connections lists every provider with the user's connection status.
func (h *Integrations) Connections(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	out := make([]model.Connection, 0, len(h.managers))
	for _, p := range model.Providers {
		m, ok := h.managers[p]
		if !ok {
			continue
		}
		conn, err := m.Status(c.Request.Context(), userID)
		if err != nil {
			h.fail(c, p, err)
			return
		}
		out = append(out, conn)
	}
	c.JSON(http.StatusOK, out)
}

// Connect redirects the browser to the provider consent page.
func (h *Integrations) Connect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	p, m, ok := h.manager(c)
	if !ok {
		return
	}

	authURL, err := m.Authorize(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// ConnectCallback completes the flow started by Connect and sends the browser
// back to the dashboard.
func (h *Integrations) ConnectCallback(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	p, m, ok := h.manager(c)
	if !ok {
		return
	}

	// The user declined on the consent page.
	if reason := c.Query("error"); reason != "" {
		h.log.Info("provider consent declined",
			zap.String("provider", string(p)), zap.String("user_id", userID), zap.String("reason", reason))
		c.Redirect(http.StatusTemporaryRedirect, h.frontend(url.Values{"error": {reason}, "provider": {string(p)}}))
		return
	}

	_, err := m.ExchangeCode(c.Request.Context(), userID, c.Query("code"), c.Query("state"))
	switch {
	case err == nil:
		c.Redirect(http.StatusTemporaryRedirect, h.frontend(url.Values{"connected": {string(p)}}))
	case errors.Is(err, tokens.ErrTokenExchange):
		h.log.Warn("connect failed",
			zap.String("provider", string(p)), zap.String("user_id", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to connect"})
	default:
		h.fail(c, p, err)
	}
}

// RefreshIntegration forces a token refresh and returns the new status.
func (h *Integrations) RefreshIntegration(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	p, m, ok := h.manager(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := m.Refresh(ctx, userID); err != nil {
		h.fail(c, p, err)
		return
	}
	conn, err := m.Status(ctx, userID)
	if err != nil {
		h.fail(c, p, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// Disconnect forgets the user's tokens for a provider.
func (h *Integrations) Disconnect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	p, m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.Disconnect(c.Request.Context(), userID); err != nil {
		h.fail(c, p, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Integrations) FitbitActivity(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	date, ok := h.date(c)
	if !ok {
		return
	}

	out, err := h.fitbit.DailyActivity(c.Request.Context(), userID, date)
	if err != nil {
		h.fail(c, model.ProviderFitbit, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Integrations) FitbitSleep(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	date, ok := h.date(c)
	if !ok {
		return
	}

	out, err := h.fitbit.Sleep(c.Request.Context(), userID, date)
	if err != nil {
		h.fail(c, model.ProviderFitbit, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Integrations) StravaAthlete(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	out, err := h.strava.Athlete(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, model.ProviderStrava, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Integrations) StravaActivities(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var q fitness.ActivityQuery
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		badRequest(c, "invalid page")
		return
	}
	if q.PerPage, err = intQuery(c, "per_page"); err != nil {
		badRequest(c, "invalid per_page")
		return
	}
	if q.After, err = dateQuery(c, "after"); err != nil {
		badRequest(c, "invalid after, want "+fitness.DateLayout)
		return
	}
	if q.Before, err = dateQuery(c, "before"); err != nil {
		badRequest(c, "invalid before, want "+fitness.DateLayout)
		return
	}

	out, err := h.strava.Activities(c.Request.Context(), userID, q)
	if err != nil {
		h.fail(c, model.ProviderStrava, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Integrations) StravaStats(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	out, err := h.strava.Stats(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, model.ProviderStrava, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// fail maps a token lifecycle error onto a response.
func (h *Integrations) fail(c *gin.Context, p model.Provider, err error) {
	log := h.log.With(zap.String("provider", string(p)), zap.String("path", c.FullPath()))

	switch {
	case errors.Is(err, tokens.ErrUnauthenticated), errors.Is(err, tokens.ErrRefresh):
		log.Info("provider authorization required", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "unauthenticated",
			"authorize": "/integrations/" + string(p) + "/connect",
		})
	case errors.Is(err, tokens.ErrConfiguration):
		log.Error("provider not configured", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "provider not configured"})
	case errors.Is(err, tokens.ErrProviderRequest):
		log.Warn("provider request failed", zap.Error(err))
		body := gin.H{"error": "provider request failed"}
		var te *tokens.Error
		if errors.As(err, &te) && te.Status != 0 {
			body["status"] = te.Status
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, body)
	case errors.Is(err, tokens.ErrTokenExchange):
		log.Warn("token exchange failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to connect"})
	default:
		log.Error("integration request failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Integrations) userID(c *gin.Context) (string, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return "", false
	}
	return u.ID, true
}

func (h *Integrations) manager(c *gin.Context) (model.Provider, TokenManager, bool) {
	p, err := model.ParseProvider(c.Param("provider"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return "", nil, false
	}
	m, ok := h.managers[p]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return "", nil, false
	}
	return p, m, true
}

// date reads ?date=yyyy-MM-dd, defaulting to today in UTC.
func (h *Integrations) date(c *gin.Context) (time.Time, bool) {
	d, err := dateQuery(c, "date")
	if err != nil {
		badRequest(c, "invalid date, want "+fitness.DateLayout)
		return time.Time{}, false
	}
	if d.IsZero() {
		y, m, day := h.now().UTC().Date()
		d = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}
	return d, true
}

func (h *Integrations) frontend(q url.Values) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil {
		return h.frontendURL
	}
	merged := u.Query()
	for k, vs := range q {
		merged[k] = vs
	}
	u.RawQuery = merged.Encode()
	return u.String()
}

func intQuery(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("not a non-negative integer")
	}
	return n, nil
}

func dateQuery(c *gin.Context, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(fitness.DateLayout, s)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
