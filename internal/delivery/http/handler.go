package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vogiaan1904/trafficroom/internal/models"
	"github.com/vogiaan1904/trafficroom/internal/render"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
	"github.com/vogiaan1904/trafficroom/pkg/response"
)

const (
	msgHitAccepted     = "request accepted"
	msgNoActiveSession = "no active session"
	msgInvalidPath     = "invalid path"
)

type HTTPHandler struct {
	coord     service.SessionCoordinator
	l         logger.Logger
	validator *validator.Validate
	rankLimit int
}

func NewHTTPHandler(coord service.SessionCoordinator, rankLimit int, l logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		coord:     coord,
		l:         l,
		validator: validator.New(),
		rankLimit: rankLimit,
	}
}

// HealthCheck reports whether the last durable write succeeded.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !h.coord.Healthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	response.JSON(w, code, map[string]any{
		"status":  status,
		"service": "traffic-coordinator",
	})
}

// Hit counts any path against the active session. The path is taken as
// sent, percent-escapes included.
func (h *HTTPHandler) Hit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	switch h.coord.RecordHit(r.Context(), r.URL.EscapedPath()) {
	case service.HitAccepted:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(msgHitAccepted))
	case service.HitRejectedNoSession:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(msgNoActiveSession))
	default:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(msgInvalidPath))
	}
}

type statusResponse struct {
	Status           string    `json:"status"`
	SessionID        string    `json:"session_id,omitempty"`
	OwnerID          int64     `json:"owner_id,omitempty"`
	DisplayName      string    `json:"display_name,omitempty"`
	Path             string    `json:"path,omitempty"`
	TargetURL        string    `json:"target_url,omitempty"`
	RequestCount     int64     `json:"request_count"`
	StartTime        time.Time `json:"start_time,omitzero"`
	DurationSeconds  int64     `json:"duration_seconds,omitempty"`
	RemainingSeconds int64     `json:"remaining_seconds"`
	QueueLength      int       `json:"queue_length"`
}

func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.coord.Status()
	if !ok {
		response.JSON(w, http.StatusOK, map[string]string{"status": msgNoActiveSession})
		return
	}

	response.JSON(w, http.StatusOK, statusResponse{
		Status:           string(models.SessionStatusActive),
		SessionID:        snap.SessionID,
		OwnerID:          snap.OwnerID,
		DisplayName:      snap.DisplayName,
		Path:             snap.SecretPath,
		TargetURL:        snap.TargetURL,
		RequestCount:     snap.RequestCount,
		StartTime:        snap.StartTime,
		DurationSeconds:  int64(snap.Duration / time.Second),
		RemainingSeconds: int64(snap.Remaining.Round(time.Second) / time.Second),
		QueueLength:      snap.QueueLength,
	})
}

type sessionData struct {
	SessionID       string `json:"session_id"`
	OwnerID         int64  `json:"owner_id"`
	TargetURL       string `json:"target_url"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func newSessionData(ss *models.Session) *sessionData {
	if ss == nil {
		return nil
	}

	return &sessionData{
		SessionID:       ss.ID,
		OwnerID:         ss.OwnerID,
		TargetURL:       ss.TargetURL(),
		DurationSeconds: int64(ss.Duration / time.Second),
	}
}

type startData struct {
	Kind     service.StartKind `json:"kind"`
	Session  *sessionData      `json:"session,omitempty"`
	Position int               `json:"position,omitempty"`
	Degraded bool              `json:"degraded"`
}

func (h *HTTPHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized)
		return
	}

	res, err := h.coord.Start(r.Context(), service.StartInput{
		RequesterID: claims.UserID,
		DisplayName: claims.Username,
		ChatID:      claims.ChatID,
	})
	if err != nil {
		h.l.Errorf(r.Context(), "delivery.http.HTTPHandler.StartSession: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	var msg string
	switch res.Kind {
	case service.StartKindStarted:
		msg = render.SessionStarted(*res.Session)
	default:
		msg = render.Queued(res.Position)
	}

	response.OK(w, render.WithWarning(msg, res.Degraded), startData{
		Kind:     res.Kind,
		Session:  newSessionData(res.Session),
		Position: res.Position,
		Degraded: res.Degraded,
	})
}

type endData struct {
	Kind          service.EndKind      `json:"kind"`
	RejectReason  service.RejectReason `json:"reject_reason,omitempty"`
	TotalRequests int64                `json:"total_requests"`
	Promoted      *sessionData         `json:"promoted,omitempty"`
	Degraded      bool                 `json:"degraded"`
}

func (h *HTTPHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized)
		return
	}

	res := h.coord.End(r.Context(), claims.UserID)
	data := endData{
		Kind:         res.Kind,
		RejectReason: res.RejectReason,
		Promoted:     newSessionData(res.Promoted),
		Degraded:     res.Degraded,
	}

	switch {
	case res.Kind == service.EndKindEnded:
		data.TotalRequests = res.Summary.TotalRequests
		response.OK(w, render.WithWarning(render.TrafficOverview(*res.Summary), res.Degraded), data)
	case res.RejectReason == service.RejectReasonNotOwner:
		response.JSON(w, http.StatusForbidden, response.Resp{Message: render.NotOwner, Data: data})
	default:
		response.JSON(w, http.StatusConflict, response.Resp{Message: render.NoActiveSession, Data: data})
	}
}

type queueData struct {
	Position int `json:"position"`
	Queued   bool `json:"queued"`
}

func (h *HTTPHandler) QueuePosition(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		response.Error(w, errUnauthorized)
		return
	}

	pos := h.coord.QueuePosition(claims.UserID)
	response.OK(w, render.QueuePosition(pos), queueData{Position: pos, Queued: pos > 0})
}

type rankRequest struct {
	Limit int `validate:"gte=0,lte=100"`
}

func (h *HTTPHandler) Rank(w http.ResponseWriter, r *http.Request) {
	req := rankRequest{Limit: h.rankLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(w, errInvalidLimit)
			return
		}
		req.Limit = limit
	}

	if err := h.validator.Struct(req); err != nil {
		response.Error(w, errInvalidLimit)
		return
	}

	recs, err := h.coord.Rank(r.Context(), req.Limit)
	if err != nil {
		h.l.Errorf(r.Context(), "delivery.http.HTTPHandler.Rank: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	response.OK(w, render.Ranking(recs), recs)
}
