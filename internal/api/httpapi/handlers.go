package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/app/notification"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/queue"
	"github.com/osa030/radiobox/internal/app/session"
)

// adminRequesterID is the requester ID used for tracks queued through the API.
const adminRequesterID = "admin"

const defaultHistoryLimit = 20

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State            string                  `json:"state"`
	Current          *notification.TrackInfo `json:"current,omitempty"`
	QueueLength      int                     `json:"queue_length"`
	QueueDurationSec int                     `json:"queue_duration_sec"`
	Radio            bool                    `json:"radio"`
	ListenerCount    int                     `json:"listener_count"`
}

// QueueResponse is the body of GET /api/queue.
type QueueResponse struct {
	Current *notification.TrackInfo  `json:"current,omitempty"`
	Tracks  []notification.TrackInfo `json:"tracks"`
}

// MessageResponse acknowledges a control command.
type MessageResponse struct {
	Message string `json:"message"`
}

// TrackResponse reports the track a queue edit touched.
type TrackResponse struct {
	Message string                  `json:"message"`
	Track   *notification.TrackInfo `json:"track"`
}

// RequestBody is the body of POST /api/request.
type RequestBody struct {
	Query       string `json:"query"`
	RequestedBy string `json:"requested_by"`
}

// RequestResponse reports the outcome of POST /api/request.
type RequestResponse struct {
	Accepted bool                    `json:"accepted"`
	Code     string                  `json:"code,omitempty"`
	Message  string                  `json:"message"`
	Position int                     `json:"position,omitempty"`
	Track    *notification.TrackInfo `json:"track,omitempty"`
	Added    int                     `json:"added,omitempty"`
	Rejected int                     `json:"rejected,omitempty"`
}

// MoveBody is the body of POST /api/queue/move.
type MoveBody struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// RadioBody is the body of PUT /api/radio.
type RadioBody struct {
	Enabled bool `json:"enabled"`
}

// ListenerResponse describes one requester.
type ListenerResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	PendingTracks int    `json:"pending_tracks"`
	TotalRequests int    `json:"total_requests"`
	DJ            bool   `json:"dj"`
	FirstSeenAt   string `json:"first_seen_at"`
}

func statusResponse(st session.Status) StatusResponse {
	return StatusResponse{
		State:            st.State.String(),
		Current:          notification.NewTrackInfo(st.Current),
		QueueLength:      st.QueueLength,
		QueueDurationSec: int(st.QueueDuration / time.Second),
		Radio:            st.Radio,
		ListenerCount:    st.ListenerCount,
	}
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse(s.session.Status()))
}

func (s *Server) getQueue(c echo.Context) error {
	st := s.session.Status()
	return c.JSON(http.StatusOK, QueueResponse{
		Current: notification.NewTrackInfo(st.Current),
		Tracks:  notification.NewTrackInfos(s.session.Queue()),
	})
}

func (s *Server) request(c echo.Context) error {
	var body RequestBody
	if err := c.Bind(&body); err != nil || body.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	name := body.RequestedBy
	if name == "" {
		name = adminRequesterID
	}

	res, err := s.session.Request(c.Request().Context(), session.Requester{
		UserID:      adminRequesterID,
		DisplayName: name,
	}, body.Query)
	if err != nil {
		return err
	}

	resp := RequestResponse{
		Accepted: res.Accepted,
		Code:     res.Code,
		Position: res.Position,
		Track:    notification.NewTrackInfo(res.Track),
	}
	if res.Accepted {
		resp.Message = s.cfg.GetMessage("success")
	} else {
		resp.Message = s.cfg.GetMessage(res.Code)
	}
	if res.Playlist != nil {
		resp.Added = res.Playlist.Added
		resp.Rejected = res.Playlist.Rejected
	}
	return c.JSON(http.StatusOK, resp)
}

// control adapts a no-argument session command to a handler.
func (s *Server) control(fn func(Session) error, message string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := fn(s.session); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, MessageResponse{Message: message})
	}
}

func (s *Server) removeTrack(c echo.Context) error {
	pos, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "position must be a number")
	}
	qt, err := s.session.Remove(pos)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TrackResponse{Message: "Track removed", Track: notification.NewTrackInfo(&qt)})
}

func (s *Server) moveTrack(c echo.Context) error {
	var body MoveBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}
	qt, err := s.session.Move(body.From, body.To)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TrackResponse{Message: "Track moved", Track: notification.NewTrackInfo(&qt)})
}

func (s *Server) clearQueue(c echo.Context) error {
	n := s.session.Clear()
	return c.JSON(http.StatusOK, MessageResponse{Message: "Removed " + strconv.Itoa(n) + " tracks"})
}

func (s *Server) setRadio(c echo.Context) error {
	var body RadioBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "enabled is required")
	}
	s.session.SetRadio(body.Enabled)
	return c.JSON(http.StatusOK, statusResponse(s.session.Status()))
}

func (s *Server) getHistory(c echo.Context) error {
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive number")
		}
		limit = n
	}
	entries, err := s.session.History(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) getListeners(c echo.Context) error {
	listeners := s.session.Listeners()
	out := make([]ListenerResponse, len(listeners))
	for i, l := range listeners {
		out[i] = ListenerResponse{
			ID:            l.ID,
			DisplayName:   l.DisplayName,
			PendingTracks: l.PendingTracks,
			TotalRequests: l.TotalRequests,
			DJ:            l.DJ,
			FirstSeenAt:   l.FirstSeenAt.Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, out)
}

// handleError maps session errors to status codes.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := s.cfg.Messages.DefaultError

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		message = http.StatusText(code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
	case errors.Is(err, queue.ErrOutOfRange), errors.Is(err, queue.ErrEmptyQueue):
		code, message = http.StatusNotFound, err.Error()
	case errors.Is(err, queue.ErrInsufficientSize), errors.Is(err, session.ErrEmptyRequest):
		code, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, playback.ErrNotPlaying), errors.Is(err, playback.ErrNotPaused),
		errors.Is(err, playback.ErrNothingToPlay):
		code, message = http.StatusConflict, err.Error()
	default:
		zlog.Error().Msgf("api error: method=%s uri=%s error=%v", c.Request().Method, c.Request().RequestURI, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, MessageResponse{Message: message})
	}
	if err != nil {
		zlog.Warn().Msgf("failed to write error response: %v", err)
	}
}
