package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/privebank/ledger/internal/handlers"
	"github.com/privebank/ledger/internal/middleware"
)

// RegisterWalletRoutes adds the caller-facing /v1 wallet endpoints to mux.
// Middleware chain: Authenticate -> RateLimiter -> handler.
func RegisterWalletRoutes(mux *http.ServeMux, wh *handlers.WalletHandler, tokens middleware.TokenValidator, limiter *middleware.RateLimiter) {
	chain := func(h http.HandlerFunc) http.Handler {
		return middleware.Authenticate(tokens)(limiter.Middleware(h))
	}

	mux.Handle("POST /v1/wallet/deposit", chain(wh.Deposit))
	mux.Handle("POST /v1/wallet/withdraw", chain(wh.Withdraw))
	mux.Handle("POST /v1/wallet/transfers/identity", chain(wh.TransferByIdentity))
	mux.Handle("POST /v1/wallet/transfers/account", chain(wh.TransferByAccountID))

	// ownerId may be "me"
	mux.Handle("GET /v1/owners/{ownerId}/account", chain(wh.GetAccount))
	mux.Handle("GET /v1/accounts/{accountId}/transactions", chain(wh.ListTransactions))
}

// RegisterOpsRoutes adds the unauthenticated health and metrics endpoints.
func RegisterOpsRoutes(mux *http.ServeMux, pool *pgxpool.Pool) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			handlers.WriteError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}
