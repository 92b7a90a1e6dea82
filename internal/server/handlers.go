package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/wyrmgate/internal/ctxutil"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/orchestrator"
	"github.com/ashita-ai/wyrmgate/internal/storage"
	"github.com/ashita-ai/wyrmgate/internal/validate"
)

// Pinger reports the health of the backing store.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	svc                 *orchestrator.Service
	validator           *validate.Validator
	broker              *Broker
	store               Pinger
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	requestTimeout      time.Duration
	streamChunkRunes    int
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker.
type HandlersDeps struct {
	Service             *orchestrator.Service
	Validator           *validate.Validator
	Broker              *Broker
	Store               Pinger
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	RequestTimeout      time.Duration
	StreamChunkRunes    int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		svc:                 d.Service,
		validator:           d.Validator,
		broker:              d.Broker,
		store:               d.Store,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		requestTimeout:      d.RequestTimeout,
		streamChunkRunes:    d.StreamChunkRunes,
	}
}

// HandleChat handles POST /v1/chat.
func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.handleRun(w, r, orchestrator.ModeChat)
}

// HandleGameChat handles POST /v1/game/chat.
func (h *Handlers) HandleGameChat(w http.ResponseWriter, r *http.Request) {
	h.handleRun(w, r, orchestrator.ModeGame)
}

func (h *Handlers) handleRun(w http.ResponseWriter, r *http.Request, mode orchestrator.Mode) {
	req, ok := h.decodeChat(w, r, mode)
	if !ok {
		return
	}

	ctx, cancel := h.runContext(r.Context())
	defer cancel()

	res, err := h.svc.Run(ctx, req, nil)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.ChatResponse{
		SessionID: res.SessionID,
		Message:   res.Message,
		Outcome:   string(res.Outcome),
		Rounds:    res.Rounds,
		Events:    nonNilEvents(res.Events),
		State:     res.State,
	})
}

// HandleGameChatStream handles POST /v1/game/chat/stream. Input errors are
// reported as plain JSON before the stream starts; anything after that is
// an SSE error event.
func (h *Handlers) HandleGameChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChat(w, r, orchestrator.ModeGame)
	if !ok {
		return
	}

	// Long generations must not be cut by the server's WriteTimeout; the
	// request deadline bounds the run instead.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	em, err := NewStreamEmitter(w, h.streamChunkRunes, h.logger)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	ctx, cancel := h.runContext(r.Context())
	defer cancel()

	res, err := h.svc.Run(ctx, req, em)
	if err != nil {
		status, detail := h.classifyRunError(r, err)
		if status == http.StatusInternalServerError {
			h.logger.Error("stream run failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		}
		if res.Message.Content != nil {
			em.Text(res.Message.Text())
		}
		em.Error(detail.Code, detail.Message, detail.Retryable)
		em.Done(res.SessionID, string(res.Outcome))
		return
	}

	em.Text(res.Message.Text())
	if res.State != nil {
		em.State(*res.State)
	}
	em.Done(res.SessionID, string(res.Outcome))
}

// decodeChat decodes and validates a chat request, writing the error
// response itself when it returns false.
func (h *Handlers) decodeChat(w http.ResponseWriter, r *http.Request, mode orchestrator.Mode) (orchestrator.Request, bool) {
	var body model.ChatRequest
	if err := decodeJSON(w, r, &body, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return orchestrator.Request{}, false
	}
	if len(body.SessionID) > model.MaxSessionIDLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "session_id is too long")
		return orchestrator.Request{}, false
	}

	msgs, err := h.validator.Validate(body.Messages, body.Tools)
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeErrorDetail(w, r, http.StatusBadRequest, model.ErrorDetail{
				Code:    model.ErrCodeInvalidInput,
				Message: verr.Message,
				Details: map[string]string{"reason": string(verr.Code)},
			})
			return orchestrator.Request{}, false
		}
		writeInternalError(w, r, h.logger, "validate messages", err)
		return orchestrator.Request{}, false
	}

	return orchestrator.Request{
		UserID:    ctxutil.UserIDFromContext(r.Context()),
		SessionID: body.SessionID,
		Mode:      mode,
		Messages:  msgs,
	}, true
}

// runContext derives the single request deadline threaded through the run.
func (h *Handlers) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.requestTimeout)
}

func (h *Handlers) classifyRunError(r *http.Request, err error) (int, model.ErrorDetail) {
	switch {
	case errors.Is(err, orchestrator.ErrSessionForbidden):
		return http.StatusForbidden, model.ErrorDetail{Code: model.ErrCodeForbidden, Message: "session belongs to another user"}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, model.ErrorDetail{Code: model.ErrCodeNotFound, Message: "session not found"}
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, model.ErrorDetail{
			Code:      model.ErrCodeConflict,
			Message:   "game state changed during this turn, please retry",
			Retryable: true,
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, model.ErrorDetail{
			Code:      model.ErrCodeInternalError,
			Message:   "request timed out",
			Retryable: true,
		}
	}
	return http.StatusInternalServerError, model.ErrorDetail{Code: model.ErrCodeInternalError, Message: "internal server error"}
}

func (h *Handlers) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := h.classifyRunError(r, err)
	if status == http.StatusInternalServerError {
		writeInternalError(w, r, h.logger, "run failed", err)
		return
	}
	writeErrorDetail(w, r, status, detail)
}

// HandleTools handles GET /v1/tools. ?mode=chat lists the read-only subset.
func (h *Handlers) HandleTools(w http.ResponseWriter, r *http.Request) {
	mode := orchestrator.ModeGame
	if r.URL.Query().Get("mode") == string(orchestrator.ModeChat) {
		mode = orchestrator.ModeChat
	}
	writeJSON(w, r, http.StatusOK, h.svc.Tools(mode).List())
}

// HandleSessionMessages handles GET /v1/sessions/{session_id}/messages.
func (h *Handlers) HandleSessionMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.Transcript(r.Context(), ctxutil.UserIDFromContext(r.Context()), r.PathValue("session_id"))
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, r, http.StatusOK, msgs)
}

// HandleSubscribe handles GET /v1/subscribe (SSE of the caller's game events).
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Idle subscriptions outlive WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	userID := ctxutil.UserIDFromContext(r.Context())
	ch := h.broker.Subscribe(userID)
	defer h.broker.Unsubscribe(userID, ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health: store ping failed", "store", h.store.Name(), "error", err)
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := model.HealthResponse{
		Status:  status,
		Version: h.version,
		Store:   h.store.Name(),
		Model:   h.svc.ModelName(),
		Uptime:  int64(time.Since(h.startedAt).Seconds()),
	}
	if h.broker != nil {
		resp.SSEBroker = "local"
		if h.broker.Distributed() {
			resp.SSEBroker = "postgres"
		}
	}
	writeJSON(w, r, httpStatus, resp)
}

func nonNilEvents(evs []model.GameEvent) []model.GameEvent {
	if evs == nil {
		return []model.GameEvent{}
	}
	return evs
}
