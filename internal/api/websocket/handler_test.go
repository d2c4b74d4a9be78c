package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dockhand/dockhand-backend/internal/api/middleware"
	"github.com/dockhand/dockhand-backend/internal/models"
)

// The console route sits behind the same middleware chain main wires up, and
// the logging wrapper must keep the response hijackable or the upgrade fails.
func TestConsoleUpgradeThroughMiddlewareChain(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.oracle.allow("c-1", models.ContainerPermReadConsole)

	router := mux.NewRouter()
	router.HandleFunc("/ws/console", fx.handler.ServeConsole).Methods("GET")
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Recover)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/console?containerId=c-1&token=good-token"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial through middleware chain: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	fx.runtime.logStream.emit("booted")
	msg := readFrame(t, conn)
	if msg.Type != msgTypeLogs || msg.Log != "booted" {
		t.Errorf("frame = %+v, want relayed log line", msg)
	}
}
