package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dockhand/dockhand-backend/internal/models"
	"github.com/dockhand/dockhand-backend/internal/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Stream is the chunk sequence the session relays: the channel closes on
// termination and Err then reports the terminal error. Satisfied by
// *docker.Stream.
type Stream interface {
	Chunks() <-chan []byte
	Err() error
	Close() error
}

// Runtime is the workload surface the session needs from the container
// engine.
type Runtime interface {
	TailLogs(ctx context.Context, id string) (Stream, error)
	Exec(ctx context.Context, id, command string) (Stream, error)
	WriteStdin(ctx context.Context, id, input string) error
}

// PermissionChecker gates console access. Any error from a check is treated
// as deny.
type PermissionChecker interface {
	HasContainerPermission(ctx context.Context, user *models.User, containerID, name string) (bool, error)
}

// Session owns one authenticated console connection: the log-tail relay, the
// inbound command dispatch with per-message write_console checks, and cleanup
// of the upstream stream on transport close. The user is the identity resolved
// during authentication; permission checks never fall back to token fields.
type Session struct {
	id          string
	user        *models.User
	containerID string

	conn     *websocket.Conn
	runtime  Runtime
	oracle   PermissionChecker
	registry *StreamRegistry
	log      *slog.Logger

	send   chan outMessage
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(ctx context.Context, id string, user *models.User, containerID string, conn *websocket.Conn, runtime Runtime, oracle PermissionChecker, registry *StreamRegistry, log *slog.Logger) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	return &Session{
		id:          id,
		user:        user,
		containerID: containerID,
		conn:        conn,
		runtime:     runtime,
		oracle:      oracle,
		registry:    registry,
		log:         log.With("session", id, "user", user.Email, "container", containerID),
		send:        make(chan outMessage, 256),
		ctx:         sessCtx,
		cancel:      cancel,
	}
}

// Run drives the session until the transport closes. The caller's goroutine
// becomes the inbound reader; the outbound writer and the stream relays run
// as children. Teardown always releases the log-tail handle.
func (s *Session) Run() {
	metrics.ConsoleSessionsActive.Inc()
	defer metrics.ConsoleSessionsActive.Dec()

	go s.writePump()
	s.openLogStream()
	s.readPump()

	// Transport is gone: release the upstream handle and stop every relay.
	// In-flight exec commands keep running host-side; their output is simply
	// no longer observed.
	s.cancel()
	s.registry.Release(s.id)
	_ = s.conn.Close()
	s.log.Info("console session closed")
}

// openLogStream opens the session's single log-tail stream and starts its
// relay. A prior stream, if any, is released first: at most one per session.
// Failure to open is reported to the client but does not end the session.
func (s *Session) openLogStream() {
	stream, err := s.runtime.TailLogs(s.ctx, s.containerID)
	if err != nil {
		s.log.Warn("failed to open log stream", "error", err)
		s.enqueue(outMessage{Type: msgTypeError, Message: "error setting up log streaming"})
		return
	}
	s.registry.Register(s.id, s.containerID, stream)

	go func() {
		for chunk := range stream.Chunks() {
			s.enqueue(outMessage{Type: msgTypeLogs, ContainerID: s.containerID, Log: string(chunk)})
		}
		if err := stream.Err(); err != nil {
			s.log.Warn("log stream error", "error", err)
			s.enqueue(outMessage{Type: msgTypeError, Message: "error streaming logs"})
			return
		}
		s.enqueue(outMessage{Type: msgTypeLogs, ContainerID: s.containerID, Log: "Log stream ended"})
	}()
}

// readPump reads inbound messages until the transport closes.
func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.enqueue(outMessage{Type: msgTypeError, Message: "invalid message"})
			continue
		}
		s.handleMessage(msg)
	}
}

// handleMessage dispatches one inbound message. write_console is re-checked
// for every message: write is a stronger, separately revocable permission
// than the read_console that admitted the session, so it is never cached.
func (s *Session) handleMessage(msg inMessage) {
	// The session is bound to one container at connect time. A frame naming
	// another container is an error, never a redirect.
	if msg.ContainerID != "" && msg.ContainerID != s.containerID {
		s.enqueue(outMessage{Type: msgTypeError, Message: "container id does not match session"})
		return
	}

	switch msg.Type {
	case msgTypeCommand:
		if msg.Command == "" {
			s.enqueue(outMessage{Type: msgTypeError, Message: "command is required"})
			return
		}
		if !s.authorizeWrite() {
			metrics.ExecCommandsTotal.WithLabelValues("denied").Inc()
			s.enqueue(outMessage{Type: msgTypeError, Message: "not authorized to execute commands"})
			return
		}
		go s.runCommand(msg.Command)

	case msgTypeStdin:
		if msg.Input == "" {
			s.enqueue(outMessage{Type: msgTypeError, Message: "input is required"})
			return
		}
		if !s.authorizeWrite() {
			s.enqueue(outMessage{Type: msgTypeError, Message: "not authorized to write to console"})
			return
		}
		if err := s.runtime.WriteStdin(s.ctx, s.containerID, msg.Input); err != nil {
			s.log.Warn("stdin write failed", "error", err)
			s.enqueue(outMessage{Type: msgTypeError, Message: "error writing to container"})
		}

	default:
		s.enqueue(outMessage{Type: msgTypeError, Message: "unknown message type"})
	}
}

// authorizeWrite checks write_console for the session user. A store failure
// counts as deny.
func (s *Session) authorizeWrite() bool {
	ok, err := s.oracle.HasContainerPermission(s.ctx, s.user, s.containerID, models.ContainerPermWriteConsole)
	if err != nil {
		s.log.Error("write_console check failed, denying", "error", err)
		return false
	}
	if !ok {
		s.log.Info("command rejected: missing write_console")
	}
	return ok
}

// runCommand executes one command and relays its output. Each invocation has
// its own relay goroutine; output from concurrent invocations may interleave
// on the wire, disambiguated by the per-message container tag.
func (s *Session) runCommand(command string) {
	stream, err := s.runtime.Exec(s.ctx, s.containerID, command)
	if err != nil {
		metrics.ExecCommandsTotal.WithLabelValues("error").Inc()
		s.log.Warn("exec failed", "error", err)
		s.enqueue(outMessage{Type: msgTypeError, Message: "error processing command"})
		return
	}
	metrics.ExecCommandsTotal.WithLabelValues("ok").Inc()
	defer stream.Close()

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				if err := stream.Err(); err != nil {
					s.enqueue(outMessage{Type: msgTypeError, Message: "error streaming command output"})
				}
				return
			}
			s.enqueue(outMessage{Type: msgTypeCommandOutput, ContainerID: s.containerID, Output: string(chunk)})
		case <-s.ctx.Done():
			return
		}
	}
}

// enqueue hands a frame to the writer. Drops the frame once the session is
// closing rather than blocking a relay goroutine forever.
func (s *Session) enqueue(msg outMessage) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

// writePump is the session's single transport writer: every outbound frame
// from the log relay and the exec relays fans in through s.send, so frames
// never interleave mid-message.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.send:
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.cancel()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		}
	}
}
