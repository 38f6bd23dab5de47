package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/tinygems/tinygems/internal/event"
)

// formatPayload returns the request body and content-type for a webhook delivery.
func formatPayload(w *Webhook, e event.Event) ([]byte, string) {
	switch w.Type {
	case TypeDiscord:
		return formatDiscord(e)
	case TypeSlack:
		return formatSlack(e)
	case TypeGotify:
		return formatGotify(e)
	default:
		return formatGeneric(e)
	}
}

func formatGeneric(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"event":     string(e.Type),
		"timestamp": e.Timestamp,
		"data":      e.Data,
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatDiscord(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       title(e),
				"description": describe(e),
				"color":       0x1DB954,
				"timestamp":   e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			},
		},
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatSlack(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s", title(e), describe(e)),
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func formatGotify(e event.Event) ([]byte, string) {
	payload := map[string]any{
		"title":   title(e),
		"message": describe(e),
	}
	body, _ := json.Marshal(payload)
	return body, "application/json"
}

func title(e event.Event) string {
	return "tinyGems: " + string(e.Type)
}

// describe renders a one-line human summary of the event.
func describe(e event.Event) string {
	str := func(k string) string {
		v, _ := e.Data[k].(string)
		return v
	}
	switch e.Type {
	case event.ProfileFinalized:
		pop, _ := e.Data["combined_popularity"].(float64)
		return fmt.Sprintf("Artist profile %q saved (popularity %.2f, id %s)", str("name"), pop, str("profile_id"))
	case event.SessionCreated:
		return fmt.Sprintf("Resolution started for %q", str("seed"))
	case event.PlatformConnected:
		return fmt.Sprintf("Connected %s in session %s", str("platform"), e.SessionID())
	case event.PlatformDisconnected:
		return fmt.Sprintf("Disconnected %s in session %s", str("platform"), e.SessionID())
	case event.SessionAbandoned:
		return fmt.Sprintf("Session %s abandoned", e.SessionID())
	}
	if len(e.Data) == 0 {
		return string(e.Type)
	}
	b, _ := json.Marshal(e.Data)
	return string(b)
}
