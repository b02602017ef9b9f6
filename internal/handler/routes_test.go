package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"lemmy-auth-proxy/internal/config"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	target := upstreamTarget(upstream)
	proxy := newTestHandler(target)
	health := NewHealthHandler(&config.Config{
		Upstream: config.UpstreamConfig{Target: target},
	}, "test")

	e := echo.New()
	RegisterRoutes(e, proxy, health)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz served locally", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /proxy/status served locally", http.MethodGet, "/proxy/status", http.StatusOK},
		{"GET / forwarded", http.MethodGet, "/", http.StatusOK},
		{"GET arbitrary path forwarded", http.MethodGet, "/api/v3/post/list?page=1", http.StatusOK},
		{"POST forwarded", http.MethodPost, "/api/v3/comment", http.StatusOK},
		{"DELETE forwarded", http.MethodDelete, "/api/v3/post", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
