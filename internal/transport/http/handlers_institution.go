package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credentia/internal/audit"
	"credentia/internal/institution"
	"credentia/internal/policy"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

type institutionHandler struct {
	institutions *institution.Service
	policies     *policy.Service
	audits       *audit.Service
	logger       *slog.Logger
}

func newInstitutionHandler(institutions *institution.Service, policies *policy.Service, audits *audit.Service, logger *slog.Logger) *institutionHandler {
	return &institutionHandler{institutions: institutions, policies: policies, audits: audits, logger: logger}
}

func (h *institutionHandler) register(r chi.Router) {
	r.Post("/institutions", h.handleRegister)
	r.Get("/institutions", h.handleList)
	r.Get("/institutions/{name}", h.handleGet)
	r.Post("/institutions/{name}/deactivate", h.handleDeactivate)
	r.Post("/institutions/{name}/reactivate", h.handleReactivate)
	r.Get("/institutions/{name}/policies", h.handlePolicies)
	r.Get("/institutions/{name}/audits", h.handleAuditHistory)
	r.Get("/institutions/{name}/compliance-summary", h.handleSummary)
}

type registerInstitutionRequest struct {
	Name          string   `json:"name"`
	Accreditation string   `json:"accreditation"`
	Admin         string   `json:"admin"`
	Frameworks    []string `json:"frameworks"`
}

type institutionResponse struct {
	Name               string               `json:"name"`
	Accreditation      string               `json:"accreditation"`
	Admin              string               `json:"admin"`
	Frameworks         []id.Framework       `json:"frameworks"`
	Active             bool                 `json:"active"`
	ComplianceStatuses map[string]string    `json:"compliance_statuses,omitempty"`
	LastAuditDates     map[string]time.Time `json:"last_audit_dates,omitempty"`
	NextAuditDates     map[string]time.Time `json:"next_audit_dates,omitempty"`
	AuditHistory       []id.AuditID         `json:"audit_history,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func toInstitutionResponse(inst *institution.Institution) institutionResponse {
	resp := institutionResponse{
		Name:          inst.Name,
		Accreditation: inst.Accreditation,
		Admin:         inst.Admin.String(),
		Frameworks:    inst.Frameworks,
		Active:        inst.Active,
		AuditHistory:  inst.AuditHistory,
		CreatedAt:     inst.CreatedAt,
		UpdatedAt:     inst.UpdatedAt,
	}
	if len(inst.ComplianceStatuses) > 0 {
		resp.ComplianceStatuses = make(map[string]string, len(inst.ComplianceStatuses))
		for fw, status := range inst.ComplianceStatuses {
			resp.ComplianceStatuses[fw.String()] = status.String()
		}
	}
	if len(inst.LastAuditDates) > 0 {
		resp.LastAuditDates = make(map[string]time.Time, len(inst.LastAuditDates))
		for fw, t := range inst.LastAuditDates {
			resp.LastAuditDates[fw.String()] = t
		}
	}
	if len(inst.NextAuditDates) > 0 {
		resp.NextAuditDates = make(map[string]time.Time, len(inst.NextAuditDates))
		for fw, t := range inst.NextAuditDates {
			resp.NextAuditDates[fw.String()] = t
		}
	}
	return resp
}

func (h *institutionHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req registerInstitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	admin, err := id.ParsePrincipal(req.Admin)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frameworks, err := id.ParseFrameworks(req.Frameworks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inst, err := h.institutions.Register(ctx, caller, req.Name, req.Accreditation, admin, frameworks)
	if err != nil {
		h.logger.WarnContext(ctx, "institution registration failed",
			"name", req.Name,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toInstitutionResponse(inst))
}

func (h *institutionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.institutions.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]institutionResponse, 0, len(institutions))
	for _, inst := range institutions {
		out = append(out, toInstitutionResponse(inst))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *institutionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutions.Get(r.Context(), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInstitutionResponse(inst))
}

func (h *institutionHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inst, err := h.institutions.Deactivate(ctx, requestcontext.Principal(ctx), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInstitutionResponse(inst))
}

func (h *institutionHandler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inst, err := h.institutions.Reactivate(ctx, requestcontext.Principal(ctx), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInstitutionResponse(inst))
}

func (h *institutionHandler) handlePolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.ListByInstitution(r.Context(), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *institutionHandler) handleAuditHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.audits.History(r.Context(), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]auditResponse, 0, len(history))
	for _, a := range history {
		out = append(out, toAuditResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *institutionHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.audits.InstitutionSummary(r.Context(), pathParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
