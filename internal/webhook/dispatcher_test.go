package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinygems/tinygems/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func finalizedEvent() event.Event {
	return event.Event{
		Type:      event.ProfileFinalized,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"session_id":          "s1",
			"profile_id":          "p1",
			"name":                "Test Artist",
			"combined_popularity": 0.42,
		},
	}
}

// capture records the decoded JSON body of every request it receives.
func capture(t *testing.T) (*httptest.Server, func() []map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "tinyGems/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return got
	}
}

func TestDispatcher_GenericWebhook(t *testing.T) {
	srv, received := capture(t)

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "test", URL: srv.URL, Type: TypeGeneric}}, srv.Client(), testLogger())
	d.HandleEvent(finalizedEvent())
	d.Wait()

	got := received()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0]["event"] != "profile.finalized" {
		t.Errorf("event = %v, want profile.finalized", got[0]["event"])
	}
	data, _ := got[0]["data"].(map[string]any)
	if data["profile_id"] != "p1" {
		t.Errorf("data.profile_id = %v, want p1", data["profile_id"])
	}
}

func TestDispatcher_DiscordFormat(t *testing.T) {
	srv, received := capture(t)

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "discord", URL: srv.URL, Type: TypeDiscord}}, srv.Client(), testLogger())
	d.HandleEvent(finalizedEvent())
	d.Wait()

	got := received()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	embeds, ok := got[0]["embeds"].([]any)
	if !ok || len(embeds) == 0 {
		t.Fatal("expected discord embeds array")
	}
	embed := embeds[0].(map[string]any)
	want := `Artist profile "Test Artist" saved (popularity 0.42, id p1)`
	if embed["description"] != want {
		t.Errorf("description = %v, want %q", embed["description"], want)
	}
	if embed["title"] != "tinyGems: profile.finalized" {
		t.Errorf("title = %v", embed["title"])
	}
}

func TestDispatcher_EventFilter(t *testing.T) {
	srv, received := capture(t)

	hooks := []Webhook{
		{Name: "default", URL: srv.URL},
		{Name: "connects", URL: srv.URL, Type: TypeSlack, Events: []string{"platform.connected"}},
	}
	d := NewDispatcherWithHTTPClient(hooks, srv.Client(), testLogger())
	d.HandleEvent(event.Event{
		Type: event.PlatformConnected,
		Data: map[string]any{"session_id": "s1", "platform": "spotify"},
	})
	d.HandleEvent(event.Event{Type: event.PlatformSearched, Data: map[string]any{"session_id": "s1"}})
	d.Wait()

	got := received()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(got))
	}
	if got[0]["text"] != "*tinyGems: platform.connected*\nConnected spotify in session s1" {
		t.Errorf("text = %v", got[0]["text"])
	}
}

func TestDispatcher_RetryOn500(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "retry-test", URL: srv.URL}}, srv.Client(), testLogger())
	d.retryDelay = 10 * time.Millisecond
	d.HandleEvent(finalizedEvent())
	d.Wait()

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestDispatcher_MaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "maxretry-test", URL: srv.URL}}, srv.Client(), testLogger())
	d.retryDelay = 10 * time.Millisecond
	d.HandleEvent(finalizedEvent())
	d.Wait()

	if got := attempts.Load(); got != maxAttempts {
		t.Errorf("attempts = %d, want %d", got, maxAttempts)
	}
}

func TestWebhook_Validate(t *testing.T) {
	tests := []struct {
		name    string
		hook    Webhook
		wantErr bool
	}{
		{"valid", Webhook{Name: "a", URL: "https://example.com/hook", Type: TypeGotify}, false},
		{"default type", Webhook{Name: "a", URL: "http://localhost:9000"}, false},
		{"missing name", Webhook{URL: "https://example.com"}, true},
		{"relative url", Webhook{Name: "a", URL: "/hook"}, true},
		{"bad scheme", Webhook{Name: "a", URL: "ftp://example.com"}, true},
		{"bad type", Webhook{Name: "a", URL: "https://example.com", Type: "teams"}, true},
		{"bad event", Webhook{Name: "a", URL: "https://example.com", Events: []string{"scan.completed"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hook.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatcher_DropsAfterWait(t *testing.T) {
	srv, received := capture(t)

	d := NewDispatcherWithHTTPClient([]Webhook{{Name: "late", URL: srv.URL}}, srv.Client(), testLogger())
	d.Wait()
	d.HandleEvent(finalizedEvent())
	d.Wait()

	if got := received(); len(got) != 0 {
		t.Errorf("deliveries = %d, want 0 after Wait", len(got))
	}
}
