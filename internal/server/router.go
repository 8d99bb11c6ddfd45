// Package server assembles the gateway HTTP router from its handlers and
// middleware.
package server

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	auditrepo "sessiongate/internal/audit/repository"
	"sessiongate/internal/gateway"
	gatewayhandler "sessiongate/internal/gateway/handler"
	healthhandler "sessiongate/internal/health/handler"
	"sessiongate/internal/security"
	"sessiongate/internal/server/middleware"
	"sessiongate/internal/session/service"
	"sessiongate/internal/telemetry/producer"
)

// Deps holds the service dependencies for the HTTP router.
type Deps struct {
	// ChainID binds operation and grant digests to one chain.
	ChainID *big.Int
	// Gateway runs submitted operations. Required.
	Gateway *gateway.Gateway
	// Registry creates and reads session grants. Required.
	Registry *service.RegistryService
	// Decisions is the decision log repository for the listing endpoint. Optional.
	Decisions auditrepo.Repository
	// Tokens validates relayer bearer tokens. Nil disables auth (dev mode).
	Tokens *security.TokenProvider
	// Producer emits request events. Optional.
	Producer producer.Producer
	// HealthPinger is used for readiness (e.g. *sql.DB). Optional.
	HealthPinger healthhandler.Pinger
}

// publicPaths are exempt from relayer authentication.
var publicPaths = map[string]bool{
	"/healthz": true,
}

// skipTelemetryPaths are not emitted as request events.
var skipTelemetryPaths = map[string]bool{
	"/healthz": true,
}

// NewRouter builds the chi router with telemetry, auth, and all handlers.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ClientIPContext)
	r.Use(middleware.Telemetry(deps.Producer, skipTelemetryPaths))
	r.Use(middleware.Auth(deps.Tokens, publicPaths))

	health := healthhandler.NewServer(deps.HealthPinger)
	r.Get("/healthz", health.HealthCheck)

	api := gatewayhandler.NewServer(deps.ChainID, deps.Gateway, deps.Registry, deps.Decisions)
	api.Routes(r)

	return r
}
