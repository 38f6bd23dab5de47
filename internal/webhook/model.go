package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/tinygems/tinygems/internal/event"
)

// Webhook is an outbound endpoint notified about session lifecycle events.
type Webhook struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	Type string `yaml:"type" json:"type"`
	// Events lists the event types delivered. Empty means profile.finalized only.
	Events []string `yaml:"events" json:"events"`
}

// Webhook types.
const (
	TypeGeneric = "generic"
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeGotify  = "gotify"
)

var validTypes = []string{TypeGeneric, TypeDiscord, TypeSlack, TypeGotify}

var knownEvents = []event.Type{
	event.SessionCreated,
	event.SessionAbandoned,
	event.PlatformSearched,
	event.PlatformConnected,
	event.PlatformDisconnected,
	event.ProfileFinalized,
}

// Validate checks the endpoint URL, type and event names.
func (w Webhook) Validate() error {
	if w.Name == "" {
		return errors.New("webhook name is required")
	}
	u, err := url.Parse(w.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook %q: url must be an absolute http(s) URL", w.Name)
	}
	if w.Type != "" && !slices.Contains(validTypes, w.Type) {
		return fmt.Errorf("webhook %q: unknown type %q", w.Name, w.Type)
	}
	for _, e := range w.Events {
		if !slices.Contains(knownEvents, event.Type(e)) {
			return fmt.Errorf("webhook %q: unknown event %q", w.Name, e)
		}
	}
	return nil
}

// Matches reports whether the webhook subscribes to t.
func (w Webhook) Matches(t event.Type) bool {
	if len(w.Events) == 0 {
		return t == event.ProfileFinalized
	}
	return slices.Contains(w.Events, string(t))
}
