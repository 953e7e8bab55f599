package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeAnalysisResult is emitted after each completed analysis
	EventTypeAnalysisResult EventType = "analysis_result"
	// EventTypeBatchCompleted is emitted after a batch request finishes
	EventTypeBatchCompleted EventType = "batch_completed"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// AnalysisResultEvent summarizes one completed analysis for the live
// dashboard. It deliberately carries the verdict, not the image bytes.
type AnalysisResultEvent struct {
	AnalysisID  string  `json:"analysis_id"`
	Filename    string  `json:"filename"`
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Similarity  float64 `json:"similarity"`
	Reasoning   string  `json:"reasoning"`
	DurationMS  float64 `json:"duration_ms"`
	LayersCount int     `json:"layers_count"`
}

// BatchCompletedEvent summarizes one finished batch request.
type BatchCompletedEvent struct {
	TotalProcessed   int     `json:"total_processed"`
	AIGeneratedCount int     `json:"ai_generated_count"`
	LikelyRealCount  int     `json:"likely_real_count"`
	UncertainCount   int     `json:"uncertain_count"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalAnalyses    int64  `json:"total_analyses"`
	CorpusEntries    int    `json:"corpus_entries"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
