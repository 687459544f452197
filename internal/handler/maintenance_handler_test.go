package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"printhub/internal/apperr"
	"printhub/internal/middleware"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// spyMaintenance records every call that gets past the middleware
type spyMaintenance struct {
	calls   int
	err     error
	created service.CreateMaintenanceRequest
}

func (s *spyMaintenance) result() (*model.MaintenanceRequest, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.MaintenanceRequest{ID: uuid.New(), Status: model.MaintenancePending}, nil
}

func (s *spyMaintenance) Create(_ context.Context, req service.CreateMaintenanceRequest) (*model.MaintenanceRequest, error) {
	s.created = req
	return s.result()
}

func (s *spyMaintenance) AssignTechnician(context.Context, string, service.AssignTechnicianRequest) (*model.MaintenanceRequest, error) {
	return s.result()
}

func (s *spyMaintenance) RecordWork(context.Context, string, service.RecordWorkRequest) (*model.MaintenanceRequest, error) {
	return s.result()
}

func (s *spyMaintenance) Complete(context.Context, string, service.CompleteMaintenanceRequest) (*model.MaintenanceRequest, error) {
	return s.result()
}

func (s *spyMaintenance) Cancel(context.Context, string, service.CancelMaintenanceRequest) (*model.MaintenanceRequest, error) {
	return s.result()
}

func (s *spyMaintenance) Get(context.Context, string) (*model.MaintenanceRequest, error) {
	return s.result()
}

func (s *spyMaintenance) List(context.Context, service.MaintenanceListQuery) ([]model.MaintenanceRequest, int64, error) {
	s.calls++
	return []model.MaintenanceRequest{}, 0, s.err
}

func (s *spyMaintenance) Stats(context.Context) (*service.MaintenanceStats, error) {
	s.calls++
	return &service.MaintenanceStats{}, s.err
}

func (s *spyMaintenance) Export(context.Context, service.MaintenanceListQuery) ([]byte, error) {
	s.calls++
	return []byte("xlsx"), s.err
}

type staticVerifier map[string]*rbac.Identity

func (v staticVerifier) Verify(token string) (*rbac.Identity, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return nil, errors.New("unknown token")
}

type staticRoles map[string]rbac.Set

func (r staticRoles) PermissionsForRole(_ context.Context, role string) (rbac.Set, error) {
	return r[role], nil
}

var (
	clientIdentity = &rbac.Identity{UserID: uuid.New(), Role: "client"}
	techIdentity   = &rbac.Identity{UserID: uuid.New(), Role: "employee"}
	staffIdentity  = &rbac.Identity{UserID: uuid.New(), Role: "manager"}
)

func newMaintenanceRouter(spy *spyMaintenance) *gin.Engine {
	gin.SetMode(gin.TestMode)

	verifier := staticVerifier{"client-token": clientIdentity, "tech-token": techIdentity, "staff-token": staffIdentity}
	gate := rbac.NewGateWith(staticRoles{
		"client":   rbac.NewSet("maintenance:view", "maintenance:create"),
		"employee": rbac.NewSet("maintenance:view", "maintenance:edit", "maintenance:complete"),
		"manager":  rbac.NewSet("maintenance:view", "maintenance:create", "maintenance:edit"),
	})
	authz := middleware.NewAuthorizerWith(verifier, gate, zap.NewNop())

	r := gin.New()
	NewMaintenanceHandler(spy, authz, zap.NewNop()).RegisterRoutes(r.Group(""))
	return r
}

func serve(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestMaintenanceRoutesAuthorization(t *testing.T) {
	completePath := "/api/maintenance/" + uuid.NewString() + "/complete"

	tests := []struct {
		name      string
		token     string
		svcErr    error
		wantCode  int
		wantKind  apperr.Kind
		wantCalls int
	}{
		{name: "anonymous never reaches the service", wantCode: http.StatusUnauthorized, wantKind: apperr.KindUnauthenticated},
		{name: "forged token", token: "forged", wantCode: http.StatusUnauthorized, wantKind: apperr.KindUnauthenticated},
		{name: "client lacks complete", token: "client-token", wantCode: http.StatusForbidden, wantKind: apperr.KindForbidden},
		{name: "technician completes", token: "tech-token", wantCode: http.StatusOK, wantCalls: 1},
		{
			name:      "already completed",
			token:     "tech-token",
			svcErr:    apperr.Conflict("maintenance request is already completed"),
			wantCode:  http.StatusConflict,
			wantKind:  apperr.KindConflict,
			wantCalls: 1,
		},
		{
			name:      "stock shortfall",
			token:     "tech-token",
			svcErr:    apperr.InsufficientStock("insufficient stock for ink-1"),
			wantCode:  http.StatusUnprocessableEntity,
			wantKind:  apperr.KindInsufficientStock,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyMaintenance{err: tt.svcErr}
			rec := serve(newMaintenanceRouter(spy), http.MethodPost, completePath, tt.token, `{}`)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if spy.calls != tt.wantCalls {
				t.Errorf("service calls = %d, want %d", spy.calls, tt.wantCalls)
			}
			if tt.wantKind != "" {
				if res := decodeResponse(t, rec); res.Code != tt.wantKind {
					t.Errorf("code = %s, want %s", res.Code, tt.wantKind)
				}
			}
		})
	}
}

func TestCreateRequestDefaultsClientToCaller(t *testing.T) {
	spy := &spyMaintenance{}
	r := newMaintenanceRouter(spy)

	rec := serve(r, http.MethodPost, "/api/maintenance", "client-token",
		`{"printer_id":"`+uuid.NewString()+`","issue":"jam"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	if spy.created.ClientID != clientIdentity.UserID.String() {
		t.Errorf("client_id = %q, want caller %s", spy.created.ClientID, clientIdentity.UserID)
	}

	rec = serve(r, http.MethodPost, "/api/maintenance", "client-token", `{"issue":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}
	if spy.calls != 1 {
		t.Errorf("service calls = %d, want 1", spy.calls)
	}
}

func TestCreateRequestClientOverride(t *testing.T) {
	someoneElse := uuid.NewString()
	body := `{"printer_id":"` + uuid.NewString() + `","client_id":"` + someoneElse + `","issue":"jam"}`

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "client cannot file for another user", token: "client-token", want: clientIdentity.UserID.String()},
		{name: "staff files on behalf of a client", token: "staff-token", want: someoneElse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyMaintenance{}
			rec := serve(newMaintenanceRouter(spy), http.MethodPost, "/api/maintenance", tt.token, body)
			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
			}
			if spy.created.ClientID != tt.want {
				t.Errorf("client_id = %q, want %q", spy.created.ClientID, tt.want)
			}
		})
	}
}

func TestInternalErrorsStayOpaque(t *testing.T) {
	spy := &spyMaintenance{err: apperr.Internal(errors.New("pq: connection refused"), "load failed")}
	rec := serve(newMaintenanceRouter(spy), http.MethodGet, "/api/maintenance/stats", "tech-token", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	res := decodeResponse(t, rec)
	if res.Error != "internal server error" || strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("body leaks detail: %s", rec.Body.String())
	}
}

func TestExportSendsAttachment(t *testing.T) {
	spy := &spyMaintenance{}
	rec := serve(newMaintenanceRouter(spy), http.MethodGet, "/api/maintenance/export?status=pending", "tech-token", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="maintenance_`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "xlsx" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestListWrapsPage(t *testing.T) {
	spy := &spyMaintenance{}
	rec := serve(newMaintenanceRouter(spy), http.MethodGet, "/api/maintenance?page=2&limit=500", "client-token", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Page != 2 || body.Data.Limit != 100 {
		t.Errorf("page = %+v, want page 2 limit 100", body.Data)
	}
}
