package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"printhub/internal/apperr"
	"printhub/internal/rbac"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	tokens map[string]*rbac.Identity
}

func (f fakeVerifier) Verify(token string) (*rbac.Identity, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return nil, errors.New("bad token")
}

type fakeRoles map[string]rbac.Set

func (f fakeRoles) PermissionsForRole(_ context.Context, role string) (rbac.Set, error) {
	return f[role], nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier := fakeVerifier{tokens: map[string]*rbac.Identity{
		"tech-token":   {UserID: uuid.New(), Role: "employee"},
		"client-token": {UserID: uuid.New(), Role: "client"},
	}}
	gate := rbac.NewGateWith(fakeRoles{
		"employee": rbac.NewSet("maintenance:view", "maintenance:edit"),
		"client":   rbac.NewSet("maintenance:view"),
	})
	authz := NewAuthorizerWith(verifier, gate, zap.NewNop())

	calls := 0
	r := gin.New()
	r.POST("/maintenance/:id/assign", authz.Require(rbac.MaintenanceEdit), func(c *gin.Context) {
		calls++
		if CurrentIdentity(c) == nil {
			t.Error("identity missing in handler")
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", authz.Authenticate(), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, c.GetString("userRole"))
	})
	return r, &calls
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantCode   apperr.Kind
		wantCalls  int
	}{
		{
			name:       "no credentials",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.KindUnauthenticated,
		},
		{
			name:       "malformed header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Token abc") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.KindUnauthenticated,
		},
		{
			name:       "invalid token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperr.KindUnauthenticated,
		},
		{
			name:       "missing permission",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer client-token") },
			wantStatus: http.StatusForbidden,
			wantCode:   apperr.KindForbidden,
		},
		{
			name:       "granted via header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer tech-token") },
			wantStatus: http.StatusNoContent,
			wantCalls:  1,
		},
		{
			name: "granted via cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "tech-token"})
			},
			wantStatus: http.StatusNoContent,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, calls := newTestRouter(t)
			req := httptest.NewRequest(http.MethodPost, "/maintenance/42/assign", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if *calls != tt.wantCalls {
				t.Fatalf("handler calls = %d, want %d", *calls, tt.wantCalls)
			}
			if tt.wantCode != "" {
				if res := decode(t, rec); res.Code != tt.wantCode || res.Status != "error" {
					t.Fatalf("envelope = %+v, want code %s", res, tt.wantCode)
				}
			}
		})
	}
}

func TestAuthenticateOnly(t *testing.T) {
	router, calls := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer client-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "client" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if *calls != 1 {
		t.Fatalf("handler calls = %d, want 1", *calls)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized || *calls != 1 {
		t.Fatalf("anonymous /me: status %d, calls %d", rec.Code, *calls)
	}
}
