package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/antonlindstrom/pgstore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fitdash/internal/auth"
	"fitdash/internal/config"
	"fitdash/internal/database"
	"fitdash/internal/fitness"
	"fitdash/internal/handler"
	"fitdash/internal/middleware"
	"fitdash/internal/model"
	"fitdash/internal/tokens"
)

type Server struct {
	*gin.Engine
	db    *sql.DB
	store *pgstore.PGStore
}

// Deps are the collaborators New wires into routes.
type Deps struct {
	Users    database.UserStore
	Sessions sessions.Store
	Tokens   tokens.Registry
	Log      *zap.Logger
	// Ping checks the database for /healthz.
	Ping func(ctx context.Context) error
}

func New(cfg *config.Config, db *sql.DB, log *zap.Logger) (*Server, error) {
	store, err := auth.NewStore(cfg.DatabaseURL, cfg.AppEnv != "dev", []byte(cfg.SessionSecret))
	if err != nil {
		return nil, err
	}

	tokenStore := database.NewTokenStore(db)
	client := tokens.NewHTTPClient(cfg.ProviderHTTPTimeout)
	opts := []tokens.Option{
		tokens.WithRefreshMargin(cfg.TokenRefreshMargin),
		tokens.WithHTTPClient(client),
		tokens.WithLogger(log.Named("tokens")),
	}
	registry := tokens.NewRegistry(
		tokens.NewManager(tokens.NewFitbitAdapter(cfg.Fitbit.Tokens(), client), tokenStore, opts...),
		tokens.NewManager(tokens.NewStravaAdapter(cfg.Strava.Tokens(), client), tokenStore, opts...),
	)

	r := NewRouter(cfg, Deps{
		Users:    database.NewUserStore(db),
		Sessions: store,
		Tokens:   registry,
		Log:      log,
		Ping:     db.PingContext,
	})

	return &Server{r, db, store}, nil
}

// NewRouter builds the gin engine and all routes.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	gp := auth.UseGoogle(d.Sessions, cfg.ClientID, cfg.ClientSecret, cfg.ClientCallbackURL)
	h := handler.New(d.Users, d.Sessions, cfg, gp, auth.NewGothicAuthenticator())

	managers := make(map[model.Provider]handler.TokenManager, len(d.Tokens))
	for p, m := range d.Tokens {
		managers[p] = m
	}
	var (
		fitbit handler.FitbitReader
		strava handler.StravaReader
	)
	if m, ok := d.Tokens.Manager(model.ProviderFitbit); ok {
		fitbit = fitness.NewFitbitClient(m)
	}
	if m, ok := d.Tokens.Manager(model.ProviderStrava); ok {
		strava = fitness.NewStravaClient(m)
	}
	ih := handler.NewIntegrations(managers, fitbit, strava, cfg.FrontendURL, d.Log.Named("integrations"))

	r.GET("/", h.Home)
	r.GET("/healthz", healthz(d.Ping))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/auth/:provider", h.SignInWithProvider)
	r.GET("/auth/:provider/callback", h.CallbackHandler)
	r.GET("/logout", h.Logout)
	r.GET("/me", h.Me)

	authorized := r.Group("/")
	authorized.Use(middleware.Auth(d.Sessions, d.Users, d.Log))
	{
		authorized.GET("/success", h.Success)

		integrations := authorized.Group("/integrations")
		integrations.GET("", ih.Connections)
		integrations.GET("/:provider/connect", ih.Connect)
		integrations.GET("/:provider/callback", ih.ConnectCallback)
		integrations.POST("/:provider/refresh", ih.RefreshIntegration)
		integrations.DELETE("/:provider", ih.Disconnect)

		if fitbit != nil {
			integrations.GET("/fitbit/activity", ih.FitbitActivity)
			integrations.GET("/fitbit/sleep", ih.FitbitSleep)
		}
		if strava != nil {
			integrations.GET("/strava/athlete", ih.StravaAthlete)
			integrations.GET("/strava/activities", ih.StravaActivities)
			integrations.GET("/strava/stats", ih.StravaStats)
		}
	}

	return r
}

func healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Close releases the session store and database connection pools.
func (s *Server) Close() error {
	s.store.Close()
	return s.db.Close()
}
