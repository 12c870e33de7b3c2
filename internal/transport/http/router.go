// Package httptransport is the thin HTTP layer over the ledger services. It
// decodes requests, resolves the caller principal placed in context by the
// auth middleware, delegates to the services, and maps coded errors to
// statuses. No business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credentia/internal/audit"
	"credentia/internal/authz"
	"credentia/internal/bologna"
	"credentia/internal/credential"
	"credentia/internal/institution"
	"credentia/internal/jwtauth"
	"credentia/internal/platform/middleware"
	"credentia/internal/policy"
)

// Services bundles the ledger services the transport exposes.
type Services struct {
	Authz        *authz.Service
	Institutions *institution.Service
	Credentials  *credential.Service
	Bologna      *bologna.Service
	Policies     *policy.Service
	Audits       *audit.Service
}

// NewRouter wires the full route tree. Everything under /v1 requires a valid
// bearer token; /healthz and /metrics stay open for probes and scrapers.
func NewRouter(svcs Services, tokens *jwtauth.Service, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens))

		newAuthzHandler(svcs.Authz, logger).register(r)
		newInstitutionHandler(svcs.Institutions, svcs.Policies, svcs.Audits, logger).register(r)
		newCredentialHandler(svcs.Credentials, svcs.Bologna, logger).register(r)
		newPolicyHandler(svcs.Policies, logger).register(r)
		newAuditHandler(svcs.Audits, logger).register(r)
	})

	return r
}
