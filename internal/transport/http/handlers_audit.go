package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"credentia/internal/audit"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

type auditHandler struct {
	audits *audit.Service
	logger *slog.Logger
}

func newAuditHandler(audits *audit.Service, logger *slog.Logger) *auditHandler {
	return &auditHandler{audits: audits, logger: logger}
}

func (h *auditHandler) register(r chi.Router) {
	r.Post("/audits", h.handleCreate)
	r.Get("/audits/upcoming", h.handleUpcoming)
	r.Get("/audits/{id}", h.handleGet)
	r.Put("/audits/{id}/status", h.handleUpdateStatus)
	r.Post("/audits/{id}/deactivate", h.handleDeactivate)
}

type createAuditRequest struct {
	Framework       string    `json:"framework"`
	Institution     string    `json:"institution"`
	PolicyType      string    `json:"policy_type"`
	AuditArea       string    `json:"audit_area"`
	Status          string    `json:"status"`
	NextReviewAt    time.Time `json:"next_review_at"`
	Findings        string    `json:"findings,omitempty"`
	Recommendations string    `json:"recommendations,omitempty"`
	Evidence        string    `json:"evidence,omitempty"`
}

type auditResponse struct {
	ID              id.AuditID `json:"id"`
	Framework       string     `json:"framework"`
	Institution     string     `json:"institution"`
	PolicyType      string     `json:"policy_type"`
	AuditArea       string     `json:"audit_area"`
	Status          string     `json:"status"`
	AuditedAt       time.Time  `json:"audited_at"`
	NextReviewAt    time.Time  `json:"next_review_at"`
	Findings        string     `json:"findings,omitempty"`
	Recommendations string     `json:"recommendations,omitempty"`
	Auditor         string     `json:"auditor"`
	Evidence        string     `json:"evidence,omitempty"`
	Active          bool       `json:"active"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toAuditResponse(a *audit.ComplianceAudit) auditResponse {
	return auditResponse{
		ID:              a.ID,
		Framework:       a.Framework.String(),
		Institution:     a.Institution,
		PolicyType:      a.PolicyType.String(),
		AuditArea:       a.AuditArea,
		Status:          a.Status.String(),
		AuditedAt:       a.AuditedAt,
		NextReviewAt:    a.NextReviewAt,
		Findings:        a.Findings,
		Recommendations: a.Recommendations,
		Auditor:         a.Auditor.String(),
		Evidence:        a.Evidence.String(),
		Active:          a.Active,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (h *auditHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req createAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	framework, err := id.ParseFramework(req.Framework)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policyType, err := id.ParsePolicyType(req.PolicyType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := id.ParseComplianceStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ref, err := evidence.ParseRef(req.Evidence)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.audits.Create(ctx, caller, audit.CreateRequest{
		Framework:       framework,
		Institution:     req.Institution,
		PolicyType:      policyType,
		AuditArea:       req.AuditArea,
		Status:          status,
		NextReviewAt:    req.NextReviewAt,
		Findings:        req.Findings,
		Recommendations: req.Recommendations,
		Evidence:        ref,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "audit creation failed",
			"institution", req.Institution,
			"framework", req.Framework,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAuditResponse(a))
}

func (h *auditHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	auditID, err := id.ParseAuditID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.audits.Get(r.Context(), auditID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditResponse(a))
}

type updateAuditStatusRequest struct {
	Status          string  `json:"status"`
	Findings        *string `json:"findings,omitempty"`
	Recommendations *string `json:"recommendations,omitempty"`
}

func (h *auditHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateAuditStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	status, err := id.ParseComplianceStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	a, err := h.audits.UpdateStatus(ctx, requestcontext.Principal(ctx), auditID, audit.StatusUpdate{
		Status:          status,
		Findings:        req.Findings,
		Recommendations: req.Recommendations,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditResponse(a))
}

func (h *auditHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID, err := id.ParseAuditID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.audits.Deactivate(ctx, requestcontext.Principal(ctx), auditID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *auditHandler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "days must be an integer"))
			return
		}
		days = parsed
	}

	audits, err := h.audits.Upcoming(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]auditResponse, 0, len(audits))
	for _, a := range audits {
		out = append(out, toAuditResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
