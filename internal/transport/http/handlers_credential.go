package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credentia/internal/bologna"
	"credentia/internal/credential"
	id "credentia/pkg/domain"
	dErrors "credentia/pkg/domain-errors"
	"credentia/pkg/evidence"
	"credentia/pkg/platform/httputil"
	"credentia/pkg/requestcontext"
)

type credentialHandler struct {
	credentials *credential.Service
	bologna     *bologna.Service
	logger      *slog.Logger
}

func newCredentialHandler(credentials *credential.Service, bolognaSvc *bologna.Service, logger *slog.Logger) *credentialHandler {
	return &credentialHandler{credentials: credentials, bologna: bolognaSvc, logger: logger}
}

func (h *credentialHandler) register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Get("/credentials/{id}", h.handleGet)
	r.Get("/credentials/{id}/verify", h.handleVerify)
	r.Post("/credentials/{id}/revoke", h.handleRevoke)
	r.Put("/credentials/{id}/compliance", h.handleUpdateCompliance)

	r.Put("/credentials/{id}/bologna", h.handleSetBologna)
	r.Get("/credentials/{id}/bologna", h.handleGetBologna)
	r.Get("/credentials/{id}/bologna/compliance", h.handleCheckBologna)
	r.Put("/credentials/{id}/bologna/ects", h.handleUpdateECTS)

	r.Get("/students/{principal}/credentials", h.handleStudentCredentials)
	r.Get("/students/{principal}/ects", h.handleStudentECTS)
}

type issueCredentialRequest struct {
	Student           string    `json:"student"`
	ExternalStudentID string    `json:"external_student_id"`
	Type              string    `json:"type"`
	Title             string    `json:"title"`
	Institution       string    `json:"institution"`
	Program           string    `json:"program"`
	Grade             string    `json:"grade"`
	Credits           int       `json:"credits"`
	CompletedAt       time.Time `json:"completed_at,omitzero"`
	Evidence          string    `json:"evidence,omitempty"`
	Frameworks        []string  `json:"frameworks"`
}

type credentialResponse struct {
	ID                  id.CredentialID   `json:"id"`
	Student             string            `json:"student"`
	ExternalStudentID   string            `json:"external_student_id"`
	Type                string            `json:"type"`
	Title               string            `json:"title"`
	Institution         string            `json:"institution"`
	Program             string            `json:"program,omitempty"`
	Grade               string            `json:"grade,omitempty"`
	Credits             int               `json:"credits"`
	IssuedAt            time.Time         `json:"issued_at"`
	CompletedAt         time.Time         `json:"completed_at,omitzero"`
	Evidence            string            `json:"evidence,omitempty"`
	Frameworks          []id.Framework    `json:"frameworks"`
	FrameworkCompliance map[string]bool   `json:"framework_compliance"`
	Active              bool              `json:"active"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func toCredentialResponse(c *credential.Credential) credentialResponse {
	compliance := make(map[string]bool, len(c.FrameworkCompliance))
	for fw, ok := range c.FrameworkCompliance {
		compliance[fw.String()] = ok
	}
	return credentialResponse{
		ID:                  c.ID,
		Student:             c.Student.String(),
		ExternalStudentID:   c.ExternalStudentID,
		Type:                c.Type.String(),
		Title:               c.Title,
		Institution:         c.Institution,
		Program:             c.Program,
		Grade:               c.Grade,
		Credits:             c.Credits,
		IssuedAt:            c.IssuedAt,
		CompletedAt:         c.CompletedAt,
		Evidence:            c.Evidence.String(),
		Frameworks:          c.Frameworks,
		FrameworkCompliance: compliance,
		Active:              c.Active,
		UpdatedAt:           c.UpdatedAt,
	}
}

func (h *credentialHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Principal(ctx)

	var req issueCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	student, err := id.ParsePrincipal(req.Student)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	credType, err := id.ParseCredentialType(req.Type)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	frameworks, err := id.ParseFrameworks(req.Frameworks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ref, err := evidence.ParseRef(req.Evidence)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.Issue(ctx, caller, credential.IssueRequest{
		Student:           student,
		ExternalStudentID: req.ExternalStudentID,
		Type:              credType,
		Title:             req.Title,
		Institution:       req.Institution,
		Program:           req.Program,
		Grade:             req.Grade,
		Credits:           req.Credits,
		CompletedAt:       req.CompletedAt,
		Evidence:          ref,
		Frameworks:        frameworks,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"institution", req.Institution,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

func (h *credentialHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cred, err := h.credentials.Get(r.Context(), credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *credentialHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.credentials.Verify(r.Context(), credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *credentialHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.credentials.Revoke(ctx, requestcontext.Principal(ctx), credID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateComplianceRequest struct {
	Framework string `json:"framework"`
	Compliant bool   `json:"compliant"`
}

func (h *credentialHandler) handleUpdateCompliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	framework, err := id.ParseFramework(req.Framework)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.credentials.UpdateFrameworkCompliance(ctx, requestcontext.Principal(ctx), credID, framework, req.Compliant); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setBolognaRequest struct {
	ECTSCredits             int      `json:"ects_credits"`
	EQFLevel                int      `json:"eqf_level"`
	DiplomaSupplementIssued bool     `json:"diploma_supplement_issued"`
	LearningOutcomes        []string `json:"learning_outcomes"`
	QAAgency                string   `json:"qa_agency"`
	JointDegree             bool     `json:"joint_degree"`
	MobilityPartners        []string `json:"mobility_partners"`
}

type bolognaResponse struct {
	CredentialID                 id.CredentialID `json:"credential_id"`
	ECTSCredits                  int             `json:"ects_credits"`
	EQFLevel                     int             `json:"eqf_level"`
	DiplomaSupplementIssued      bool            `json:"diploma_supplement_issued"`
	LearningOutcomes             []string        `json:"learning_outcomes,omitempty"`
	QAAgency                     string          `json:"qa_agency,omitempty"`
	JointDegree                  bool            `json:"joint_degree"`
	MobilityPartners             []string        `json:"mobility_partners,omitempty"`
	AutomaticRecognitionEligible bool            `json:"automatic_recognition_eligible"`
	UpdatedAt                    time.Time       `json:"updated_at"`
}

func toBolognaResponse(d *bologna.Data) bolognaResponse {
	return bolognaResponse{
		CredentialID:                 d.CredentialID,
		ECTSCredits:                  d.ECTSCredits,
		EQFLevel:                     d.EQFLevel,
		DiplomaSupplementIssued:      d.DiplomaSupplementIssued,
		LearningOutcomes:             d.LearningOutcomes,
		QAAgency:                     d.QAAgency,
		JointDegree:                  d.JointDegree,
		MobilityPartners:             d.MobilityPartners,
		AutomaticRecognitionEligible: d.AutomaticRecognitionEligible,
		UpdatedAt:                    d.UpdatedAt,
	}
}

func (h *credentialHandler) handleSetBologna(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req setBolognaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	data, err := h.bologna.SetData(ctx, requestcontext.Principal(ctx), credID, bologna.SetRequest{
		ECTSCredits:             req.ECTSCredits,
		EQFLevel:                req.EQFLevel,
		DiplomaSupplementIssued: req.DiplomaSupplementIssued,
		LearningOutcomes:        req.LearningOutcomes,
		QAAgency:                req.QAAgency,
		JointDegree:             req.JointDegree,
		MobilityPartners:        req.MobilityPartners,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBolognaResponse(data))
}

func (h *credentialHandler) handleGetBologna(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	data, err := h.bologna.Get(r.Context(), credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBolognaResponse(data))
}

func (h *credentialHandler) handleCheckBologna(w http.ResponseWriter, r *http.Request) {
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.bologna.CheckCompliance(r.Context(), credID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

type updateECTSRequest struct {
	Credits int `json:"credits"`
}

func (h *credentialHandler) handleUpdateECTS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credID, err := id.ParseCredentialID(pathParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateECTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	data, err := h.bologna.UpdateECTSCredits(ctx, requestcontext.Principal(ctx), credID, req.Credits)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBolognaResponse(data))
}

func (h *credentialHandler) handleStudentCredentials(w http.ResponseWriter, r *http.Request) {
	student, err := id.ParsePrincipal(pathParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ids, err := h.credentials.StudentCredentials(r.Context(), student)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"credential_ids": ids})
}

func (h *credentialHandler) handleStudentECTS(w http.ResponseWriter, r *http.Request) {
	student, err := id.ParsePrincipal(pathParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	total, err := h.bologna.StudentTotalECTS(r.Context(), student)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"total_ects": total})
}
