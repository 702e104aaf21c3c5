package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/host"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/monitoring"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
)

func newTestStream(t *testing.T) (*httptest.Server, *host.Stub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := host.NewStub()
	reg := terminal.NewRegistry(stub, logging.NewNop(), terminal.Options{SettleDelay: time.Millisecond})
	h := NewHandler(reg, monitoring.NewMetrics(prometheus.NewRegistry()), logging.NewNop())

	r := gin.New()
	r.GET("/ws/terminals/:name", h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, stub
}

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/terminals/" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamForwardsOutput(t *testing.T) {
	srv, stub := newTestStream(t)
	conn := dial(t, srv, "sitl")

	// Emissions race connection setup, so repeat until one lands after the
	// callbacks are registered.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				stub.EmitOutput("sitl", "Ready to FLY\n")
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "output", frame.Type)
	assert.Equal(t, "sitl", frame.Terminal)
	assert.Contains(t, frame.Text, "Ready to FLY")
}

func TestStreamInterruptFrame(t *testing.T) {
	srv, stub := newTestStream(t)
	conn := dial(t, srv, "sitl")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "interrupt"}))

	assert.Eventually(t, func() bool {
		term := stub.Terminal("sitl")
		return term != nil && term.Interrupts() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRunFrame(t *testing.T) {
	srv, stub := newTestStream(t)
	conn := dial(t, srv, "sitl")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "run", "text": "ls"}))

	assert.Eventually(t, func() bool {
		term := stub.Terminal("sitl")
		if term == nil {
			return false
		}
		for _, sent := range term.Sent() {
			if sent == "ls" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
