package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/notification"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

var errStreamClosed = errors.New("event stream closed")

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The admin token gates access, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsStream queues notifications for one websocket client.
type wsStream struct {
	mu      sync.Mutex
	closed  bool
	pending chan *notification.Notification
}

func newWSStream() *wsStream {
	return &wsStream{pending: make(chan *notification.Notification, eventBuffer)}
}

// Send implements notification.Stream. A slow client loses events rather than stalling
// the broadcaster.
func (w *wsStream) Send(n *notification.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errStreamClosed
	}
	select {
	case w.pending <- n:
		return nil
	default:
		return errors.Newf("event dropped for slow client: type=%s", n.Type)
	}
}

func (w *wsStream) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.pending)
	}
}

// streamEvents upgrades to a websocket, sends the current state, then relays every
// notification until the client goes away or the server shuts down.
func (s *Server) streamEvents(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		zlog.Warn().Msgf("websocket upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	st := s.session.Status()
	initial := &notification.Notification{
		Type:        notification.TypeInitialState,
		Time:        time.Now(),
		State:       st.State.String(),
		Track:       notification.NewTrackInfo(st.Current),
		Tracks:      notification.NewTrackInfos(s.session.Queue()),
		QueueLength: st.QueueLength,
	}
	if err := writeEvent(conn, initial); err != nil {
		return nil
	}

	stream := newWSStream()
	id := s.notifier.Subscribe(stream)
	defer func() {
		s.notifier.Unsubscribe(id)
		stream.close()
	}()
	zlog.Info().Msgf("event stream connected: subscription=%s remote=%s", id, c.RealIP())

	// Reads only detect the close; clients have nothing to say.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			zlog.Info().Msgf("event stream disconnected: subscription=%s", id)
			return nil
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeTimeout))
			return nil
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return nil
			}
		case n, ok := <-stream.pending:
			if !ok {
				return nil
			}
			if err := writeEvent(conn, n); err != nil {
				zlog.Debug().Msgf("event stream write failed: subscription=%s error=%v", id, err)
				return nil
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, n *notification.Notification) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(n)
}
