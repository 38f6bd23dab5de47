package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFetchRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	body, err := Fetch(context.Background(), srv.Client(), req, Spotify, testLogger())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantNF    bool
		wantCalls int32
	}{
		{"not found", http.StatusNotFound, true, 1},
		{"unauthorized", http.StatusUnauthorized, false, 1},
		{"forbidden", http.StatusForbidden, false, 1},
		{"server error", http.StatusInternalServerError, false, 2},
		{"rate limited", http.StatusTooManyRequests, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/artist/1", nil)
			_, err := Fetch(context.Background(), srv.Client(), req, Tidal, testLogger())

			var notFound *ErrNotFound
			var unavailable *ErrPlatformUnavailable
			if tt.wantNF {
				if !errors.As(err, &notFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				if notFound.Platform != Tidal {
					t.Errorf("platform = %q", notFound.Platform)
				}
			} else if !errors.As(err, &unavailable) {
				t.Fatalf("err = %v, want ErrPlatformUnavailable", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestCacheKeyNormalizesQuery(t *testing.T) {
	if CacheKey(Spotify, " Test  Artist ") != CacheKey(Spotify, "test artist") {
		t.Error("expected whitespace/case-insensitive cache keys")
	}
	if CacheKey(Spotify, "a") == CacheKey(Tidal, "a") {
		t.Error("expected platform to be part of the key")
	}
}

func TestHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/artist/x", nil)
	_, err := Fetch(context.Background(), srv.Client(), req, Spotify, testLogger())
	if code, ok := HTTPStatus(err); !ok || code != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, %v; want 400, true", code, ok)
	}
	if _, ok := HTTPStatus(errors.New("network down")); ok {
		t.Error("plain error should carry no status")
	}
}
