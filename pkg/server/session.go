package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/statesync/pkg/statesync"
)

// session is one connected page running one Synchronizer.
type session struct {
	id       string
	clientID string
	def      Definition

	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once

	sync    *statesync.Synchronizer
	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
}

func newSessionID() string {
	return uuid.NewString()[:8]
}

// write sends frame as a JSON text message.
func (s *session) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.metrics.wsErrors.WithLabelValues("write").Inc()
		return err
	}
	s.metrics.framesTotal.WithLabelValues("out", string(frame.Type)).Inc()
	return nil
}

func (s *session) writeError(msg string) error {
	return s.write(Frame{Type: FrameError, Error: msg})
}

// sendState sends the current state and its shareable URL.
func (s *session) sendState() error {
	state := s.sync.State()
	return s.write(Frame{
		Type:         FrameState,
		Status:       s.sync.Status(),
		State:        state,
		ShareableURL: s.sync.ShareableURL(state),
	})
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

// run hydrates and then serves client frames until the connection ends.
func (s *session) run(ctx context.Context) {
	s.sync.Hydrate(ctx)
	if err := s.sendState(); err != nil {
		s.logger.Debug("initial state write failed", "error", err)
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.metrics.wsErrors.WithLabelValues("read").Inc()
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if err := s.handle(ctx, data); err != nil {
			s.logger.Debug("frame write failed", "error", err)
			return
		}
	}
}

// handle applies one client frame and answers it. Only write errors are
// returned; malformed frames are answered with an error frame.
func (s *session) handle(ctx context.Context, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.metrics.framesTotal.WithLabelValues("in", "invalid").Inc()
		return s.writeError("invalid frame: " + err.Error())
	}

	ctx, span := s.tracer.Start(ctx, "statesync.server.frame", trace.WithAttributes(
		attribute.String("statesync.consumer", s.def.Name),
		attribute.String("statesync.frame", string(frame.Type)),
	))
	defer span.End()

	switch frame.Type {
	case FrameUpdate:
		s.metrics.framesTotal.WithLabelValues("in", string(frame.Type)).Inc()
		if frame.Partial == nil {
			return s.writeError("update frame needs a partial object")
		}
		s.sync.Update(ctx, frame.Partial)
	case FrameReset:
		s.metrics.framesTotal.WithLabelValues("in", string(frame.Type)).Inc()
		s.sync.Reset(ctx)
	default:
		s.metrics.framesTotal.WithLabelValues("in", "unknown").Inc()
		return s.writeError("unknown frame type " + string(frame.Type))
	}
	return s.sendState()
}
