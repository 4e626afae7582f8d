// Package agent is a websocket client for the upstream realtime agent that
// interprets utterances. It sends the ordering session configuration and
// user text, and surfaces tool calls and streamed response text to the
// relay bridge.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultRealtimeURL  = "wss://api.openai.com/v1/realtime?model=%s"
	defaultModel        = "gpt-4o-realtime-preview-2024-10-01"
	handshakeTimeout    = 10 * time.Second
	eventBufferCapacity = 64
)

// Config configures the upstream client.
type Config struct {
	APIKey string
	// Model selects the realtime model. Defaults to the reference model.
	Model string
	// URL overrides the endpoint (used by tests). When empty the default
	// realtime endpoint for Model is used.
	URL string
}

// Tool describes a function tool exposed to the agent.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Event is an upstream event relevant to the bridge.
type Event interface {
	agentEventType() string
}

// ToolCall is a completed function call from the agent.
type ToolCall struct {
	CallID string
	Name   string
	Args   json.RawMessage
}

func (ToolCall) agentEventType() string { return "tool_call" }

// TextDelta is a streamed fragment of the agent's textual response.
type TextDelta struct {
	Delta string
}

func (TextDelta) agentEventType() string { return "text_delta" }

// TextDone marks the end of a streamed response.
type TextDone struct{}

func (TextDone) agentEventType() string { return "text_done" }

// Client is one upstream session. Safe for concurrent sends.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	events    chan Event
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewClient constructs an unconnected upstream client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Client{
		cfg:    cfg,
		events: make(chan Event, eventBufferCapacity),
		stopCh: make(chan struct{}),
	}
}

// Events yields upstream events in arrival order. Closed when the session
// ends.
func (c *Client) Events() <-chan Event { return c.events }

type sessionUpdate struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
	Tools        []Tool   `json:"tools"`
}

type itemCreate struct {
	Type string         `json:"type"`
	Item map[string]any `json:"item"`
}

// Connect dials the upstream endpoint and sends the session configuration.
func (c *Client) Connect(ctx context.Context, instructions string, tools []Tool) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("agent: api key missing")
	}
	endpoint := c.cfg.URL
	if endpoint == "" {
		endpoint = fmt.Sprintf(defaultRealtimeURL, c.cfg.Model)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("agent: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("agent: dial failed: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	update := sessionUpdate{
		Type: "session.update",
		Session: sessionPayload{
			Modalities:   []string{"text"},
			Instructions: instructions,
			Tools:        tools,
		},
	}
	if err := c.writeJSON(update); err != nil {
		_ = conn.Close()
		return fmt.Errorf("agent: send session config: %w", err)
	}
	go c.readLoop()
	return nil
}

// SendUserText forwards a recognized utterance as a complete user turn.
func (c *Client) SendUserText(text string) error {
	return c.writeJSON(itemCreate{
		Type: "conversation.item.create",
		Item: map[string]any{
			"type":        "text",
			"text":        text,
			"end_of_turn": true,
		},
	})
}

// SendToolResult reports a tool call's output back to the agent.
func (c *Client) SendToolResult(callID string, result any) error {
	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("agent: marshal tool result: %w", err)
	}
	return c.writeJSON(itemCreate{
		Type: "conversation.item.create",
		Item: map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  string(out),
		},
	})
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("agent: not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

type upstreamFrame struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
	Delta     string `json:"delta"`
}

func (c *Client) readLoop() {
	defer close(c.events)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("agent: read failed: %v", err)
				}
			}
			return
		}
		var frame upstreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("agent: malformed frame: %v", err)
			continue
		}
		var ev Event
		switch frame.Type {
		case "response.function_call_arguments.done":
			args := frame.Arguments
			if args == "" {
				args = "{}"
			}
			ev = ToolCall{CallID: frame.CallID, Name: frame.Name, Args: json.RawMessage(args)}
		case "response.text.delta":
			if frame.Delta == "" {
				continue
			}
			ev = TextDelta{Delta: frame.Delta}
		case "response.text.done":
			ev = TextDone{}
		default:
			// Session bookkeeping frames the bridge does not care about.
			continue
		}
		select {
		case c.events <- ev:
		case <-c.stopCh:
			return
		}
	}
}

// Close ends the upstream session.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
		}
	})
}
