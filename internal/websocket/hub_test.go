package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

func testHub(cfg *config.WebSocketConfig) *Hub {
	return NewHub(cfg, zap.NewNop())
}

func TestShouldBroadcastEvent(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.WebSocketConfig
		eventType EventType
		want      bool
	}{
		{"disabled hub drops everything", config.WebSocketConfig{Enabled: false, BroadcastResults: true}, EventTypeAnalysisResult, false},
		{"results toggle on", config.WebSocketConfig{Enabled: true, BroadcastResults: true}, EventTypeAnalysisResult, true},
		{"results toggle off", config.WebSocketConfig{Enabled: true, BroadcastResults: false}, EventTypeAnalysisResult, false},
		{"batch follows results toggle", config.WebSocketConfig{Enabled: true, BroadcastResults: true}, EventTypeBatchCompleted, true},
		{"system toggle", config.WebSocketConfig{Enabled: true, BroadcastSystem: true}, EventTypeSystemStatus, true},
		{"connections always on when enabled", config.WebSocketConfig{Enabled: true}, EventTypeConnection, true},
		{"unknown type dropped", config.WebSocketConfig{Enabled: true, BroadcastResults: true, BroadcastSystem: true}, EventType("mystery"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHub(&tt.cfg)
			if got := h.shouldBroadcastEvent(tt.eventType); got != tt.want {
				t.Errorf("shouldBroadcastEvent(%q) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestClientWantsEvent(t *testing.T) {
	unfiltered := &Client{}
	if !unfiltered.wantsEvent(EventTypeAnalysisResult) {
		t.Error("client without a subscription must receive everything")
	}

	filtered := &Client{Subscription: &SubscriptionRequest{
		Events: []EventType{EventTypeSystemStatus},
	}}
	if filtered.wantsEvent(EventTypeAnalysisResult) {
		t.Error("unsubscribed event type must be filtered out")
	}
	if !filtered.wantsEvent(EventTypeSystemStatus) {
		t.Error("subscribed event type must pass")
	}
}

func TestCheckOrigin(t *testing.T) {
	newRequest := func(origin string) *http.Request {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("empty allow-list allows all", func(t *testing.T) {
		h := testHub(&config.WebSocketConfig{})
		if !h.checkOrigin(newRequest("https://evil.example")) {
			t.Error("expected allow")
		}
	})

	t.Run("wildcard allows all", func(t *testing.T) {
		h := testHub(&config.WebSocketConfig{AllowedOrigins: []string{"*"}})
		if !h.checkOrigin(newRequest("https://anything.example")) {
			t.Error("expected allow")
		}
	})

	t.Run("exact match only", func(t *testing.T) {
		h := testHub(&config.WebSocketConfig{AllowedOrigins: []string{"https://dash.example"}})
		if !h.checkOrigin(newRequest("https://dash.example")) {
			t.Error("expected listed origin to pass")
		}
		if h.checkOrigin(newRequest("https://other.example")) {
			t.Error("expected unlisted origin to be rejected")
		}
	})
}

func TestBroadcastEventDoesNotBlock(t *testing.T) {
	h := testHub(&config.WebSocketConfig{Enabled: true, BroadcastResults: true})

	// Nothing drains h.broadcast; filling past its buffer must not hang.
	for i := 0; i < 300; i++ {
		h.BroadcastEvent(Event{Type: EventTypeAnalysisResult})
	}
}
