package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentia/internal/audit"
	"credentia/internal/authz"
	"credentia/internal/bologna"
	"credentia/internal/credential"
	"credentia/internal/institution"
	"credentia/internal/jwtauth"
	"credentia/internal/notify"
	"credentia/internal/policy"
	id "credentia/pkg/domain"
	"credentia/pkg/platform/tx"
)

const owner = id.Principal("did:web:registry.owner")

type testServer struct {
	srv    *httptest.Server
	tokens *jwtauth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	notifier := notify.NewDirect(notify.NewMemorySink())
	authzSvc := authz.NewService(owner, authz.NewInMemoryStore(), notifier)

	instStore := institution.NewInMemoryStore()
	credStore := credential.NewInMemoryStore()

	svcs := Services{
		Authz:        authzSvc,
		Institutions: institution.NewService(instStore, authzSvc, notifier),
		Credentials:  credential.NewService(credStore, instStore, authzSvc, notifier),
		Bologna:      bologna.NewService(bologna.NewInMemoryStore(), credStore, authzSvc, notifier),
		Policies:     policy.NewService(policy.NewInMemoryStore(), instStore, authzSvc, notifier),
		Audits:       audit.NewService(audit.NewInMemoryStore(), instStore, authzSvc, notifier, tx.NopRunner{}),
	}

	tokens := jwtauth.NewService("test-signing-key", "credentia-test")
	srv := httptest.NewServer(NewRouter(svcs, tokens, logger))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, as id.Principal, method, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if as != "" {
		token, err := ts.tokens.GenerateToken(as, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerInstitution(t *testing.T, ts *testServer, name string, admin id.Principal) {
	t.Helper()
	resp := ts.do(t, owner, http.MethodPost, "/v1/institutions", registerInstitutionRequest{
		Name:          name,
		Accreditation: "regional",
		Admin:         admin.String(),
		Frameworks:    []string{"aacsb", "bologna_process"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRouter_Authentication(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing token gets 401", func(t *testing.T) {
		resp := ts.do(t, "", http.MethodGet, "/v1/institutions", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("healthz stays open", func(t *testing.T) {
		resp := ts.do(t, "", http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRouter_InstitutionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	admin := id.Principal("did:web:registrar.state.edu")

	registerInstitution(t, ts, "State University", admin)

	t.Run("duplicate name maps to 409", func(t *testing.T) {
		resp := ts.do(t, owner, http.MethodPost, "/v1/institutions", registerInstitutionRequest{
			Name:          "state university",
			Accreditation: "regional",
			Admin:         admin.String(),
			Frameworks:    []string{"aacsb"},
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("non-owner registration maps to 401", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodPost, "/v1/institutions", registerInstitutionRequest{
			Name:       "Other College",
			Admin:      admin.String(),
			Frameworks: []string{"aacsb"},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("get handles encoded names", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodGet, "/v1/institutions/"+url.PathEscape("State University"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		inst := decode[institutionResponse](t, resp)
		assert.Equal(t, "State University", inst.Name)
		assert.True(t, inst.Active)
	})

	t.Run("unknown institution maps to 404", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodGet, "/v1/institutions/Ghost%20College", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRouter_CredentialFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := id.Principal("did:web:registrar.state.edu")
	registerInstitution(t, ts, "State University", admin)

	issueBody := issueCredentialRequest{
		Student:           "did:stu:alice",
		ExternalStudentID: "S-1001",
		Type:              "degree",
		Title:             "BSc Computer Science",
		Institution:       "State University",
		Credits:           180,
		Frameworks:        []string{"bologna_process"},
	}

	resp := ts.do(t, admin, http.MethodPost, "/v1/credentials", issueBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cred := decode[credentialResponse](t, resp)
	require.False(t, cred.ID.IsNil())

	t.Run("verify reports valid while both sides are active", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodGet, "/v1/credentials/"+cred.ID.String()+"/verify", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decode[map[string]any](t, resp)
		assert.Equal(t, true, result["valid"])
	})

	t.Run("unauthorized issuer maps to 401", func(t *testing.T) {
		resp := ts.do(t, "did:web:impostor", http.MethodPost, "/v1/credentials", issueBody)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bologna round trip with validation errors mapped", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodPut, "/v1/credentials/"+cred.ID.String()+"/bologna", setBolognaRequest{
			ECTSCredits:      180,
			EQFLevel:         6,
			LearningOutcomes: []string{"software design"},
			QAAgency:         "ENQA",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := decode[bolognaResponse](t, resp)
		assert.True(t, data.AutomaticRecognitionEligible)

		resp = ts.do(t, admin, http.MethodPut, "/v1/credentials/"+cred.ID.String()+"/bologna", setBolognaRequest{
			ECTSCredits: 180,
			EQFLevel:    12,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = ts.do(t, admin, http.MethodGet, "/v1/students/did:stu:alice/ects", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		total := decode[map[string]int](t, resp)
		assert.Equal(t, 180, total["total_ects"])
	})

	t.Run("revoke then verify reports invalid", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodPost, "/v1/credentials/"+cred.ID.String()+"/revoke", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = ts.do(t, admin, http.MethodGet, "/v1/credentials/"+cred.ID.String()+"/verify", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		result := decode[map[string]any](t, resp)
		assert.Equal(t, false, result["valid"])
	})

	t.Run("malformed credential id maps to 400", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodGet, "/v1/credentials/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRouter_AuditFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := id.Principal("did:web:registrar.state.edu")
	auditor := id.Principal("did:web:auditor.enqa.eu")
	registerInstitution(t, ts, "State University", admin)

	resp := ts.do(t, owner, http.MethodPost, "/v1/authz/auditors", grantRequest{Principal: auditor.String()})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, auditor, http.MethodPost, "/v1/audits", createAuditRequest{
		Framework:    "aacsb",
		Institution:  "State University",
		PolicyType:   "academic",
		AuditArea:    "curriculum review",
		Status:       "compliant",
		NextReviewAt: time.Now().AddDate(1, 0, 0),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[auditResponse](t, resp)

	t.Run("summary counts the audited framework", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodGet, "/v1/institutions/"+url.PathEscape("State University")+"/compliance-summary", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		summary := decode[audit.Summary](t, resp)
		assert.Equal(t, 1, summary.TotalAudits)
		assert.GreaterOrEqual(t, summary.CompliantFrameworks, 1)
	})

	t.Run("past review date maps to 400", func(t *testing.T) {
		resp := ts.do(t, auditor, http.MethodPost, "/v1/audits", createAuditRequest{
			Framework:    "aacsb",
			Institution:  "State University",
			PolicyType:   "academic",
			AuditArea:    "curriculum review",
			Status:       "compliant",
			NextReviewAt: time.Now().AddDate(0, 0, -1),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("upcoming filters by window", func(t *testing.T) {
		resp := ts.do(t, auditor, http.MethodGet, "/v1/audits/upcoming?days=400", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		upcoming := decode[[]auditResponse](t, resp)
		require.Len(t, upcoming, 1)
		assert.Equal(t, created.ID, upcoming[0].ID)

		resp = ts.do(t, auditor, http.MethodGet, "/v1/audits/upcoming?days=30", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		upcoming = decode[[]auditResponse](t, resp)
		assert.Empty(t, upcoming)
	})

	t.Run("issuer cannot write audits", func(t *testing.T) {
		resp := ts.do(t, admin, http.MethodPost, "/v1/audits", createAuditRequest{
			Framework:    "aacsb",
			Institution:  "State University",
			PolicyType:   "academic",
			AuditArea:    "curriculum review",
			Status:       "compliant",
			NextReviewAt: time.Now().AddDate(1, 0, 0),
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
