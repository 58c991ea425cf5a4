package http

import (
	"net/http"
	"time"

	"github.com/auth-otp-api/internal/application/auth"
	"github.com/auth-otp-api/internal/config"
	"github.com/auth-otp-api/internal/transport/http/handler"
	appmiddleware "github.com/auth-otp-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Codec)

	// 5 requests/second, burst of 10 — applied to credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	engine := auth.NewEngine(deps.VerificationRepo, time.Duration(cfg.OTPExpiryMinutes)*time.Minute)
	binder := auth.NewBinder(deps.DeviceRepo)
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:   deps.UserRepo,
		TokenRepo:  deps.TokenRepo,
		Codec:      deps.Codec,
		Engine:     engine,
		Binder:     binder,
		Mailer:     deps.Mailer,
		SMSSender:  deps.SMSSender,
		BcryptCost: cfg.BcryptCost,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.Get("/test", healthH.Test)
		r.Post("/test", healthH.Test)

		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/one-time-pin", authH.OneTimePin)
		r.Post("/auth/logout", authH.Logout)
		r.Patch("/auth/refresh_token", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/auth/session", authH.Session)
			r.Get("/auth/devices", authH.Devices)
		})
	})

	return r
}
