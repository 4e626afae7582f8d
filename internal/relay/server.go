// Package relay is the backend the client session layer connects to: it
// serves the menu over HTTP and bridges each /ws/voice connection to the
// upstream realtime agent, executing the agent's ordering tool calls
// against per-connection cart and carousel state.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/agent"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/config"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production.
		return true
	},
}

// upstream is the slice of agent.Client the bridge needs; tests substitute
// a scripted implementation.
type upstream interface {
	Events() <-chan agent.Event
	SendUserText(text string) error
	SendToolResult(callID string, result any) error
	Close()
}

// connectUpstream dials a new upstream agent session.
type connectUpstream func(ctx context.Context, instructions string, tools []agent.Tool) (upstream, error)

// Server bundles the HTTP router and its dependencies.
type Server struct {
	Router  http.Handler
	catalog *menu.Catalog
	connect connectUpstream
}

// New constructs the relay server with routes.
func New(cfg config.Config, catalog *menu.Catalog) *Server {
	s := &Server{catalog: catalog}
	s.connect = func(ctx context.Context, instructions string, tools []agent.Tool) (upstream, error) {
		c := agent.NewClient(agent.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.RealtimeModel,
			URL:    cfg.AgentURL,
		})
		if err := c.Connect(ctx, instructions, tools); err != nil {
			return nil, err
		}
		return c, nil
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/api/menu", s.handleMenu)
	e.GET("/ws/voice", s.handleVoice)

	s.Router = e
	return s
}

// handleMenu returns all orderable items keyed by item key.
func (s *Server) handleMenu(c echo.Context) error {
	items := make(map[string]menu.Item, s.catalog.Len())
	for _, it := range s.catalog.Items() {
		items[it.Key] = it
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// outEnvelope is the frame pushed down to the ordering client.
type outEnvelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
}

// inboundText is the sole client->relay message kind.
type inboundText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// handleVoice upgrades the connection and runs the bridge until either
// side drops.
func (s *Server) handleVoice(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("relay: ws upgrade error: %v", err)
		return nil
	}
	defer func() { _ = ws.Close() }()

	sessionID := uuid.NewString()[:8]
	log.Printf("[%s] voice session opened", sessionID)
	defer log.Printf("[%s] voice session closed", sessionID)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	up, err := s.connect(ctx, buildInstructions(s.catalog), orderTools())
	if err != nil {
		log.Printf("[%s] upstream connect failed: %v", sessionID, err)
		_ = ws.WriteJSON(outEnvelope{Type: "error", Error: "agent unavailable"})
		return nil
	}
	defer up.Close()

	// Forward client utterances upstream until the client disconnects.
	go func() {
		defer cancel()
		for {
			_, data, rerr := ws.ReadMessage()
			if rerr != nil {
				return
			}
			var m inboundText
			if jerr := json.Unmarshal(data, &m); jerr != nil || m.Type != "text" || m.Text == "" {
				continue
			}
			log.Printf("[%s] utterance: %s", sessionID, m.Text)
			if serr := up.SendUserText(m.Text); serr != nil {
				log.Printf("[%s] upstream send failed: %v", sessionID, serr)
				return
			}
		}
	}()

	ord := newOrders(s.catalog)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-up.Events():
			if !ok {
				return nil
			}
			if werr := s.dispatch(sessionID, ws, up, ord, ev); werr != nil {
				return nil
			}
		}
	}
}

// dispatch applies one upstream event: tool calls mutate the connection
// state and push the resulting envelope; text events pass straight through.
func (s *Server) dispatch(sessionID string, ws *websocket.Conn, up upstream, ord *orders, ev agent.Event) error {
	switch e := ev.(type) {
	case agent.ToolCall:
		log.Printf("[%s] tool call: %s %s", sessionID, e.Name, string(e.Args))
		envType, result := ord.execute(e.Name, e.Args)
		if result == nil {
			return nil
		}
		if err := ws.WriteJSON(outEnvelope{Type: envType, Data: result}); err != nil {
			return err
		}
		if err := up.SendToolResult(e.CallID, result); err != nil {
			log.Printf("[%s] tool result send failed: %v", sessionID, err)
		}
		return nil
	case agent.TextDelta:
		return ws.WriteJSON(outEnvelope{Type: "response.text.delta", Delta: e.Delta})
	case agent.TextDone:
		return ws.WriteJSON(outEnvelope{Type: "response.text.done"})
	default:
		return nil
	}
}
