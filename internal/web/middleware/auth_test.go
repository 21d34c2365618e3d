package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		header     string
		value      string
		wantStatus int
	}{
		{"disabled", "", "", "", http.StatusOK},
		{"disabled ignores header", "", "Authorization", "Bearer whatever", http.StatusOK},
		{"bearer ok", "secret", "Authorization", "Bearer secret", http.StatusOK},
		{"kiosk header ok", "secret", TokenHeader, "secret", http.StatusOK},
		{"missing", "secret", "", "", http.StatusUnauthorized},
		{"wrong bearer", "secret", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "secret", "Authorization", "Basic secret", http.StatusUnauthorized},
		{"prefix only", "secret", TokenHeader, "secre", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/kiosk/identify", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			RequireToken(tt.token)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCORS_AllowedOrigins(t *testing.T) {
	tests := []struct {
		origin    string
		wantAllow bool
	}{
		{"https://kiosk.example.edu", true},
		{"https://office.example.edu", true},
		{"http://localhost:5173", true},
		{"https://evil.example.com", false},
		{"http://localhost.evil.example.com", false},
		{"https://localhost", true},
		{"", false},
	}

	handler := CORS([]string{"https://kiosk.example.edu", "https://office.example.edu"})(okHandler())
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/kiosk/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllow && got != tt.origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.wantAllow && got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	nextCalled := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/kiosk/identify", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if nextCalled {
		t.Error("preflight should not reach the next handler")
	}
	if h := rec.Header().Get("Access-Control-Allow-Headers"); h == "" {
		t.Error("missing Access-Control-Allow-Headers")
	}
}
