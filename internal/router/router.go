package router

import (
	"net/http"

	"github.com/privebank/ledger/internal/auth"
	"github.com/privebank/ledger/internal/dashboard"
	"github.com/privebank/ledger/internal/middleware"
)

// New returns an http.Handler that serves the /api/v1 auth and admin routes.
// Auth routes are rate limited per client IP. Admin routes require a valid
// bearer token with the admin role.
func New(authHandler *auth.Handler, dashHandler *dashboard.Handler, tokens middleware.TokenValidator, limiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.Handle("POST "+base+"/auth/register", limiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST "+base+"/auth/login", limiter.Middleware(http.HandlerFunc(authHandler.Login)))

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Authenticate(tokens)(middleware.RequireAdmin(h))
	}
	mux.Handle("GET "+base+"/admin/accounts", admin(dashHandler.ListAccounts))
	mux.Handle("POST "+base+"/admin/accounts", admin(dashHandler.CreateAccount))
	mux.Handle("POST "+base+"/admin/accounts/{id}/activate", admin(dashHandler.ActivateAccount))
	mux.Handle("POST "+base+"/admin/accounts/{id}/deactivate", admin(dashHandler.DeactivateAccount))
	mux.Handle("GET "+base+"/admin/accounts/{id}/reconcile", admin(dashHandler.ReconcileAccount))
	mux.Handle("GET "+base+"/admin/transactions", admin(dashHandler.ListTransactions))
	mux.Handle("GET "+base+"/admin/audit-logs", admin(dashHandler.ListAuditLogs))
	mux.Handle("GET "+base+"/admin/audit-logs/verify", admin(dashHandler.VerifyAuditChain))

	return mux
}
