package control

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mbproxy/internal/logging"
)

// ControlPath is the HTTP path of the WebSocket control endpoint.
const ControlPath = "/control"

// maxRequestSize bounds one control message.
const maxRequestSize = 4096

// Request is one control message sent by a WebSocket client.
type Request struct {
	Command string `json:"command"`
}

// Reply answers one Request.
type Reply struct {
	OK      bool    `json:"ok"`
	Command string  `json:"command,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// WebSocketHandler serves the control commands over WebSocket. Each text
// message is a JSON Request and gets exactly one JSON Reply.
type WebSocketHandler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader

	// OnQuit runs when a client sends quit. When nil, quit is refused.
	OnQuit func()
}

// NewWebSocketHandler creates a handler bound to d.
func NewWebSocketHandler(d *Dispatcher) *WebSocketHandler {
	return &WebSocketHandler{
		dispatcher: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // operator tool, not a browser-facing service
			},
		},
	}
}

// ServeHTTP upgrades the connection and runs the request loop until the
// client disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxRequestSize)
	logging.Info("Control client connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("Control client read error", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			}
			logging.Info("Control client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, quit := h.handle(data)
		if err := conn.WriteJSON(reply); err != nil {
			logging.Warn("Control reply failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
			return
		}
		if quit {
			h.OnQuit()
			return
		}
	}
}

func (h *WebSocketHandler) handle(data []byte) (Reply, bool) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Reply{Error: "invalid request: " + err.Error()}, false
	}

	res, err := h.dispatcher.Execute(req.Command)
	reply := Reply{
		Command: res.Command,
		Message: res.Message,
		Status:  res.Status,
	}
	if err != nil {
		reply.Error = err.Error()
		return reply, false
	}
	if res.Command == "" {
		reply.Error = "empty command"
		return reply, false
	}
	if res.Quit && h.OnQuit == nil {
		reply.Message = ""
		reply.Error = "quit is not permitted on this endpoint"
		return reply, false
	}

	reply.OK = true
	if res.Help {
		reply.Message = helpText()
	}
	return reply, res.Quit
}

func helpText() string {
	lines := make([]string, 0, len(Commands))
	for _, cmd := range Commands {
		lines = append(lines, cmd.Usage+" - "+cmd.Help)
	}
	return strings.Join(lines, "\n")
}

// NewHTTPServer returns an HTTP server exposing the WebSocket endpoint at
// ControlPath and a read-only JSON snapshot at /status.
func NewHTTPServer(addr string, ws *WebSocketHandler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(ControlPath, ws)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ws.dispatcher.Status()); err != nil {
			logging.Warn("Status encode failed", zap.Error(err))
		}
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// IsServerClosed reports the error http.Server returns after Shutdown.
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
