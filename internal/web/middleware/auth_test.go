package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adboard/marketplace/internal/core"
)

func TestResolveActor(t *testing.T) {
	keys := map[string]string{
		"key-alice": "alice",
		"key-bob":   "bob",
	}

	tests := []struct {
		name      string
		key       string
		wantActor string
		wantOK    bool
	}{
		{name: "first key", key: "key-alice", wantActor: "alice", wantOK: true},
		{name: "second key", key: "key-bob", wantActor: "bob", wantOK: true},
		{name: "unknown key", key: "key-mallory", wantOK: false},
		{name: "empty key", key: "", wantOK: false},
		{name: "prefix of a key", key: "key-ali", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, ok := resolveActor(tt.key, keys)
			if ok != tt.wantOK {
				t.Fatalf("resolveActor(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if ok && actor != tt.wantActor {
				t.Errorf("resolveActor(%q) = %q, want %q", tt.key, actor, tt.wantActor)
			}
		})
	}
}

func TestActorAuth(t *testing.T) {
	keys := map[string]string{"key-alice": "alice"}

	var gotActor string
	handler := ActorAuth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = core.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid key passes with actor", func(t *testing.T) {
		gotActor = ""
		req := httptest.NewRequest(http.MethodGet, "/api/edits/pending", nil)
		req.Header.Set("X-API-Key", "key-alice")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotActor != "alice" {
			t.Errorf("actor = %q, want alice", gotActor)
		}
	})

	t.Run("missing key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/edits/pending", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/edits/pending", nil)
		req.Header.Set("X-API-Key", "key-mallory")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{
			name:       "trusted proxy with x-real-ip",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:54321",
			realIP:     "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy with forwarded chain",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:443",
			forwarded:  "198.51.100.7, 10.1.2.3",
			want:       "198.51.100.7",
		},
		{
			name:       "untrusted client headers ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.9:1234",
			realIP:     "10.9.9.9",
			want:       "203.0.113.9:1234",
		},
		{
			name:       "no trusted proxies configured",
			trusted:    nil,
			remoteAddr: "127.0.0.1:54321",
			realIP:     "203.0.113.9",
			want:       "127.0.0.1:54321",
		},
		{
			name:       "invalid header value ignored",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:54321",
			realIP:     "not-an-ip",
			want:       "127.0.0.1:54321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
