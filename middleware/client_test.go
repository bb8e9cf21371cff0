package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "203.0.113.7:5123", want: "203.0.113.7"},
		{name: "forwarded ignored without trust", remoteAddr: "10.0.0.2:80", forwarded: "198.51.100.4", want: "10.0.0.2"},
		{name: "forwarded first hop", remoteAddr: "10.0.0.2:80", forwarded: "198.51.100.4, 10.0.0.9", trustProxy: true, want: "198.51.100.4"},
		{name: "forwarded garbage", remoteAddr: "10.0.0.2:80", forwarded: "not-an-ip", trustProxy: true, want: "10.0.0.2"},
		{name: "remote addr without port", remoteAddr: "unix", want: "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Fatalf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientInfoPassesThrough(t *testing.T) {
	called := false
	h := ClientInfo(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("handler not reached: called=%v code=%d", called, rec.Code)
	}
}
