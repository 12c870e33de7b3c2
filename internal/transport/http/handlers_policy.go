package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credentia/internal/policy"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

type policyHandler struct {
	policies *policy.Service
	logger   *slog.Logger
}

func newPolicyHandler(policies *policy.Service, logger *slog.Logger) *policyHandler {
	return &policyHandler{policies: policies, logger: logger}
}

func (h *policyHandler) register(r chi.Router) {
	r.Post("/policies", h.handleCreate)
	r.Get("/policies/{id}", h.handleGet)
	r.Put("/policies/{id}/status", h.handleUpdateStatus)
	r.Post("/policies/{id}/deactivate", h.handleDeactivate)
}

type createPolicyRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	Institution   string    `json:"institution"`
	Frameworks    []string  `json:"frameworks"`
	EffectiveDate time.Time `json:"effective_date"`
	ReviewDate    time.Time `json:"review_date"`
	Document      string    `json:"document,omitempty"`
}

type policyResponse struct {
	ID            id.PolicyID       `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description,omitempty"`
	Type          string            `json:"type"`
	Institution   string            `json:"institution"`
	Frameworks    []id.Framework    `json:"frameworks"`
	EffectiveDate time.Time         `json:"effective_date"`
	ReviewDate    time.Time         `json:"review_date"`
	Creator       string            `json:"creator"`
	Document      string            `json:"document,omitempty"`
	Statuses      map[string]string `json:"statuses"`
	Active        bool              `json:"active"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toPolicyResponse(p *policy.Policy) policyResponse {
	statuses := make(map[string]string, len(p.Statuses))
	for fw, status := range p.Statuses {
		statuses[fw.String()] = status.String()
	}
	return policyResponse{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Type:          p.Type.String(),
		Institution:   p.Institution,
		Frameworks:    p.Frameworks,
		EffectiveDate: p.EffectiveDate,
		ReviewDate:    p.ReviewDate,
		Creator:       p.Creator.String(),
		Document:      p.Document.String(),
		Statuses:      statuses,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (h *policyHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	policyType, err := id.ParsePolicyType(req.Type)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frameworks, err := id.ParseFrameworks(req.Frameworks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ref, err := evidence.ParseRef(req.Document)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.policies.Create(ctx, caller, policy.CreateRequest{
		Title:         req.Title,
		Description:   req.Description,
		Type:          policyType,
		Institution:   req.Institution,
		Frameworks:    frameworks,
		EffectiveDate: req.EffectiveDate,
		ReviewDate:    req.ReviewDate,
		Document:      ref,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "policy creation failed",
			"institution", req.Institution,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPolicyResponse(p))
}

func (h *policyHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	policyID, err := id.ParsePolicyID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.policies.Get(r.Context(), policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(p))
}

type updatePolicyStatusRequest struct {
	Framework string `json:"framework"`
	Status    string `json:"status"`
}

func (h *policyHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updatePolicyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	framework, err := id.ParseFramework(req.Framework)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := id.ParseComplianceStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.policies.UpdateFrameworkStatus(ctx, requestcontext.Principal(ctx), policyID, framework, status); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *policyHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.policies.Deactivate(ctx, requestcontext.Principal(ctx), policyID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
