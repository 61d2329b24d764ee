// Package api assembles the HTTP surface of the identity server: route
// table, middleware chain, and handler wiring.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/eventleads/server/internal/api/handlers"
	"github.com/eventleads/server/internal/api/middleware"
	"github.com/eventleads/server/internal/auth"
	"github.com/eventleads/server/internal/config"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries the constructed services the router wires into handlers.
type Deps struct {
	Pool       *pgxpool.Pool
	Lifecycle  *identity.Service
	JWTManager *auth.JWTManager
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Lifecycle, cfg.Server.FrontendURL, cfg.Environment)
	invitesHandler := handlers.NewInvitationsHandler(deps.Lifecycle, cfg.Environment)
	healthHandler := handlers.NewHealthHandler(deps.Pool)

	requireSession := middleware.RequireSession(deps.JWTManager, cfg.Environment)
	throttle := middleware.Throttle(cfg.Lifecycle.LoginPerMinute)

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(healthHandler.Healthz))
	mux.Handle("/readyz", http.HandlerFunc(healthHandler.Readyz))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/v1/auth/signup", methodMux(map[string]http.Handler{
		http.MethodPost: throttle(http.HandlerFunc(authHandler.Signup)),
	}))
	mux.Handle("/api/v1/auth/verify", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(authHandler.Verify),
	}))
	mux.Handle("/api/v1/auth/resend", methodMux(map[string]http.Handler{
		http.MethodPost: throttle(http.HandlerFunc(authHandler.Resend)),
	}))
	mux.Handle("/api/v1/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: throttle(http.HandlerFunc(authHandler.Login)),
	}))
	mux.Handle("/api/v1/auth/reset/request", methodMux(map[string]http.Handler{
		http.MethodPost: throttle(http.HandlerFunc(authHandler.ResetRequest)),
	}))
	mux.Handle("/api/v1/auth/reset/confirm", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(authHandler.ResetConfirm),
	}))
	mux.Handle("/api/v1/auth/logout", methodMux(map[string]http.Handler{
		http.MethodPost: requireSession(http.HandlerFunc(authHandler.Logout)),
	}))
	mux.Handle("/api/v1/auth/me", methodMux(map[string]http.Handler{
		http.MethodGet: requireSession(http.HandlerFunc(authHandler.Me)),
	}))

	mux.Handle("/api/v1/invitations", methodMux(map[string]http.Handler{
		http.MethodPost: requireSession(http.HandlerFunc(invitesHandler.Create)),
	}))
	mux.Handle("/api/v1/invitations/{token}/preview", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(invitesHandler.Preview),
	}))
	mux.Handle("/api/v1/invitations/{token}/accept", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(invitesHandler.Accept),
	}))

	var handler http.Handler = mux
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := routes[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(routes))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(routes map[string]http.Handler) string {
	methods := make([]string, 0, len(routes))
	for method := range routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
