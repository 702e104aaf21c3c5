package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/monitoring"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The editor webview origin is opaque, so origin checking happens at
	// the CORS layer instead.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is a server-to-client message.
type Frame struct {
	Type        string `json:"type"`
	Terminal    string `json:"terminal"`
	Text        string `json:"text,omitempty"`
	CommandLine string `json:"command_line,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
}

// clientFrame is a client-to-server message.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Handler upgrades HTTP requests and bridges monitors to WebSocket clients.
type Handler struct {
	reg     *terminal.Registry
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(reg *terminal.Registry, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{reg: reg, metrics: metrics, log: log}
}

// Stream handles GET /ws/terminals/:name.
func (h *Handler) Stream(c *gin.Context) {
	name := c.Param("name")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	m := h.reg.Monitor(name)
	if err := m.EnsureTerminal(c.Request.Context()); err != nil {
		h.writeFrame(conn, &sync.Mutex{}, Frame{Type: "error", Terminal: name, Text: err.Error()})
		conn.Close()
		return
	}

	// A single mutex serializes all writers: the event callbacks, the ping
	// loop, and the error path above.
	var wmu sync.Mutex

	textID := m.AddTextCallback(func(chunk string) {
		h.writeFrame(conn, &wmu, Frame{Type: "output", Terminal: name, Text: chunk})
	})
	startID := m.AddListener(terminal.KindExecStart, func(ev terminal.Event) {
		h.writeFrame(conn, &wmu, Frame{Type: "exec-start", Terminal: name, CommandLine: ev.CommandLine})
	})
	endID := m.AddListener(terminal.KindExecEnd, func(ev terminal.Event) {
		h.writeFrame(conn, &wmu, Frame{Type: "exec-end", Terminal: name, CommandLine: ev.CommandLine, ExitCode: ev.ExitCode})
	})
	closedID := m.AddListener(terminal.KindClosed, func(ev terminal.Event) {
		h.writeFrame(conn, &wmu, Frame{Type: "closed", Terminal: name})
	})

	done := make(chan struct{})
	go h.pingLoop(conn, &wmu, done)

	h.readLoop(conn, m, name)

	close(done)
	m.RemoveTextCallback(textID)
	m.RemoveListener(terminal.KindExecStart, startID)
	m.RemoveListener(terminal.KindExecEnd, endID)
	m.RemoveListener(terminal.KindClosed, closedID)
	conn.Close()
}

// readLoop consumes client frames until the connection drops.
func (h *Handler) readLoop(conn *websocket.Conn, m *terminal.Monitor, name string) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", zap.String("terminal", name), zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.log.Debug("malformed client frame", zap.String("terminal", name), zap.Error(err))
			continue
		}

		switch frame.Type {
		case "run":
			go func(cmd string) {
				_, err := m.Run(context.Background(), cmd, terminal.RunOptions{Nonblocking: true})
				if err != nil {
					h.log.Warn("websocket run failed", zap.String("terminal", name), zap.Error(err))
				}
			}(frame.Text)
		case "interrupt":
			m.Interrupt()
		default:
			h.log.Debug("unknown frame type", zap.String("type", frame.Type))
		}
	}
}

func (h *Handler) pingLoop(conn *websocket.Conn, wmu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			wmu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			wmu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) writeFrame(conn *websocket.Conn, wmu *sync.Mutex, frame Frame) {
	wmu.Lock()
	defer wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.log.Debug("websocket write failed", zap.Error(err))
	}
}
