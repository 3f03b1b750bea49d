package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"photobooth/core"
	"photobooth/handlers/api/composite"
	"photobooth/handlers/auth"
	"photobooth/stores/memory"
)

func newTestRouter(t *testing.T) (http.Handler, func(role string) string) {
	t.Helper()
	t.Setenv("OIDC_ISSUER_URL", "")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("JWT_SECRET", "router-secret")

	store := memory.NewStore()
	assets := memory.NewAssetStore("/assets")
	auth.InitAuth(store)
	builder := composite.NewBuilder(store, composite.NewAssetOpener(assets, "/assets"), nil)
	r := setupRouter(store, assets, builder, config{maxUploadBytes: 1 << 20})

	token := func(role string) string {
		user := &core.User{Email: role + "@example.com", Name: role, Role: role}
		if err := store.CreateUser(context.Background(), user); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		s, err := auth.CreateJWT(user)
		if err != nil {
			t.Fatalf("CreateJWT: %v", err)
		}
		return s
	}
	return r, token
}

func TestRouterAccessControl(t *testing.T) {
	r, token := newTestRouter(t)
	userToken := token(core.RoleUser)
	adminToken := token(core.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"public catalog", http.MethodGet, "/api/frames", "", "", http.StatusOK},
		{"images need auth", http.MethodGet, "/api/images", "", "", http.StatusUnauthorized},
		{"images for user", http.MethodGet, "/api/images", userToken, "", http.StatusOK},
		{"catalog write needs admin", http.MethodPost, "/api/categories", userToken, `{"name":"X"}`, http.StatusForbidden},
		{"catalog write as admin", http.MethodPost, "/api/categories", adminToken, `{"name":"X"}`, http.StatusCreated},
		{"stats needs admin", http.MethodGet, "/api/admin/stats", userToken, "", http.StatusForbidden},
		{"stats as admin", http.MethodGet, "/api/admin/stats", adminToken, "", http.StatusOK},
		{"missing asset", http.MethodGet, "/assets/uploads/none.png", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRouterRegisterThenLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"name":"Kim","email":"kim@example.com","password":"pw123456"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(body)))
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected %d, got %d", http.StatusCreated, w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"kim@example.com","password":"pw123456"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login returned no token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected the issued token to authorize, got %d", w.Code)
	}
}

func TestMaxUploadBytes(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "")
	if got := maxUploadBytes(); got != 10<<20 {
		t.Errorf("Expected default, got %d", got)
	}
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	if got := maxUploadBytes(); got != 2048 {
		t.Errorf("Expected 2048, got %d", got)
	}
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	if got := maxUploadBytes(); got != 10<<20 {
		t.Errorf("Expected default for garbage, got %d", got)
	}
}
