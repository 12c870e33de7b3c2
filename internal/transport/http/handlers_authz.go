package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credentia/internal/authz"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

type authzHandler struct {
	authz  *authz.Service
	logger *slog.Logger
}

func newAuthzHandler(svc *authz.Service, logger *slog.Logger) *authzHandler {
	return &authzHandler{authz: svc, logger: logger}
}

func (h *authzHandler) register(r chi.Router) {
	r.Post("/authz/issuers", h.handleGrant(authz.RoleIssuer))
	r.Delete("/authz/issuers/{principal}", h.handleRevoke(authz.RoleIssuer))
	r.Post("/authz/auditors", h.handleGrant(authz.RoleAuditor))
	r.Delete("/authz/auditors/{principal}", h.handleRevoke(authz.RoleAuditor))
}

type grantRequest struct {
	Principal string `json:"principal"`
}

func (h *authzHandler) handleGrant(role authz.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caller := requestcontext.Principal(ctx)

		var req grantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		principal, err := id.ParsePrincipal(req.Principal)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		if role == authz.RoleAuditor {
			err = h.authz.AuthorizeAuditor(ctx, caller, principal)
		} else {
			err = h.authz.AuthorizeIssuer(ctx, caller, principal)
		}
		if err != nil {
			h.logger.WarnContext(ctx, "grant failed",
				"role", string(role),
				"error", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *authzHandler) handleRevoke(role authz.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caller := requestcontext.Principal(ctx)

		principal, err := id.ParsePrincipal(pathParam(r, "principal"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}

		if role == authz.RoleAuditor {
			err = h.authz.RevokeAuditor(ctx, caller, principal)
		} else {
			err = h.authz.RevokeIssuer(ctx, caller, principal)
		}
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
