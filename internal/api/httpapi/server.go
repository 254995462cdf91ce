// Package httpapi provides the admin control API: JSON endpoints over the session and a
// websocket stream of playback notifications.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/session"
	"github.com/osa030/radiobox/internal/domain/listener"
	"github.com/osa030/radiobox/internal/domain/track"
	"github.com/osa030/radiobox/internal/infra/config"
	"github.com/osa030/radiobox/internal/infra/history"
)

// AdminTokenHeader is the header carrying the admin token.
const AdminTokenHeader = "X-Admin-Token"

// Session is the part of the session manager the API drives.
type Session interface {
	Request(ctx context.Context, req session.Requester, input string) (*session.RequestResult, error)
	Play() error
	Pause() error
	Resume() error
	Skip() error
	Stop() error
	Remove(position int) (track.QueuedTrack, error)
	Move(from, to int) (track.QueuedTrack, error)
	Shuffle() error
	Clear() int
	SetRadio(enabled bool)
	Status() session.Status
	Queue() []track.QueuedTrack
	History(ctx context.Context, limit int) ([]history.Entry, error)
	Listeners() []listener.Session
}

// Notifier hands out notification subscriptions.
type Notifier interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
}

// Server is the control API server.
type Server struct {
	cfg      *config.Config
	session  Session
	notifier Notifier
	echo     *echo.Echo
	http     *http.Server
	done     chan struct{}
}

// New builds the router. Nothing listens until Start.
func New(cfg *config.Config, s Session, n Notifier) *Server {
	srv := &Server{
		cfg:      cfg,
		session:  s,
		notifier: n,
		echo:     echo.New(),
		done:     make(chan struct{}),
	}
	srv.echo.HideBanner = true
	srv.echo.HidePort = true
	srv.echo.HTTPErrorHandler = srv.handleError
	srv.echo.Use(middleware.Recover())
	srv.echo.Use(requestLogger())
	srv.routes()

	srv.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (s *Server) routes() {
	api := s.echo.Group("/api", s.adminAuth)

	api.GET("/status", s.getStatus)
	api.GET("/queue", s.getQueue)
	api.DELETE("/queue", s.clearQueue)
	api.DELETE("/queue/:position", s.removeTrack)
	api.POST("/queue/move", s.moveTrack)
	api.POST("/request", s.request)

	api.POST("/play", s.control(Session.Play, "Playback started"))
	api.POST("/pause", s.control(Session.Pause, "Playback paused"))
	api.POST("/resume", s.control(Session.Resume, "Playback resumed"))
	api.POST("/skip", s.control(Session.Skip, "Track skipped"))
	api.POST("/stop", s.control(Session.Stop, "Playback stopped"))
	api.POST("/shuffle", s.control(Session.Shuffle, "Queue shuffled"))

	api.PUT("/radio", s.setRadio)
	api.GET("/history", s.getHistory)
	api.GET("/listeners", s.getListeners)
	api.GET("/events", s.streamEvents)
}

// Handler returns the router wrapped for HTTP/2 cleartext.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.echo, &http2.Server{})
}

// Start serves until Shutdown. Listen errors are sent to errCh.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		zlog.Info().Msgf("starting control API: addr=%s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "control API listen failed")
		}
	}()
}

// Shutdown closes event streams and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	return s.http.Shutdown(ctx)
}

// adminAuth rejects requests without the configured admin token. Websocket clients that
// cannot set headers may pass it as the token query parameter.
func (s *Server) adminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(AdminTokenHeader)
		if token == "" {
			token = c.QueryParam("token")
		}
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Admin.Token)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
		}
		return next(c)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zlog.Debug().Msgf("api request: method=%s uri=%s status=%d latency=%s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	})
}
