package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"planora_backend/internal/model"
	"planora_backend/internal/util"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubVerifier struct {
	tokens map[string]*util.Claims
	err    error
}

func (s stubVerifier) VerifyAccess(token string) (*util.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, util.ErrTokenInvalid
}

func newRouter(v AccessVerifier, roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(v)}
	if len(roles) > 0 {
		handlers = append(handlers, RoleMiddleware(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		util.Success(c, gin.H{"userId": util.GetUserFromContext(c).UserID})
	})
	r.GET("/protected", handlers...)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) util.Response {
	t.Helper()
	var resp util.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	v := stubVerifier{tokens: map[string]*util.Claims{"good": {UserID: 7, Role: model.RoleUser}}}
	r := newRouter(v)

	cases := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{name: "bearer header", setup: func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }},
		{name: "cookie", setup: func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: util.AccessCookieName, Value: "good"})
		}},
		{name: "query", setup: func(req *http.Request) { req.URL.RawQuery = "token=good" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	cases := []struct {
		name     string
		verifier stubVerifier
		header   string
		wantCode string
	}{
		{name: "missing token", verifier: stubVerifier{}, wantCode: util.CodeUnauthorized},
		{name: "invalid token", verifier: stubVerifier{}, header: "Bearer nope", wantCode: util.CodeUnauthorized},
		{name: "expired token", verifier: stubVerifier{err: util.ErrTokenExpired}, header: "Bearer old", wantCode: util.CodeTokenExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(tc.verifier)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", rec.Code)
			}
			if resp := decode(t, rec); resp.ErrorCode != tc.wantCode {
				t.Fatalf("expected error code %s got %s", tc.wantCode, resp.ErrorCode)
			}
		})
	}
}

func TestRoleMiddleware(t *testing.T) {
	v := stubVerifier{tokens: map[string]*util.Claims{
		"user":  {UserID: 1, Role: model.RoleUser},
		"admin": {UserID: 2, Role: model.RoleAdmin},
	}}
	r := newRouter(v, model.RoleAdmin)

	for token, want := range map[string]int{"user": http.StatusForbidden, "admin": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: expected %d got %d", token, want, rec.Code)
		}
	}
}
