// Package orchestrator runs the bounded model/tool loop behind the chat and
// game endpoints.
//
// A run alternates between asking the model for a reply and executing the
// tool calls it requests. Every tool result is folded into the player state
// through the game reducer, announced to the observer as it happens, and
// handed back to the model in serialized form. The loop ends when the model
// answers without tool calls, when the round budget is exhausted, or when
// the model fails or the request deadline passes. In every case the state is
// saved, so progress made by earlier tool calls is never lost.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/wyrmgate/internal/filter"
	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/llm"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
	"github.com/ashita-ai/wyrmgate/internal/telemetry"
	"github.com/ashita-ai/wyrmgate/internal/tools"
)

// ErrSessionForbidden is returned when a supplied session belongs to another user.
var ErrSessionForbidden = errors.New("orchestrator: session belongs to another user")

// StateStore loads and persists player state. Save must reject a state whose
// version no longer matches the stored one with storage.ErrConflict.
type StateStore interface {
	LoadOrCreate(ctx context.Context, userID string) (model.PlayerState, error)
	Save(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error)
	Replace(ctx context.Context, userID string, state model.PlayerState) (model.PlayerState, error)
}

// ConversationStore keeps per-session transcripts and the event audit trail.
type ConversationStore interface {
	CreateSession(ctx context.Context, userID string) (string, error)
	GetOwner(ctx context.Context, sessionID string) (string, error)
	AppendMessages(ctx context.Context, sessionID string, msgs []model.Message) error
	Messages(ctx context.Context, sessionID string) ([]model.Message, error)
	RecordEvents(ctx context.Context, userID, sessionID string, events []model.GameEvent) error
}

// Publisher fans game events out to the user's live subscribers.
type Publisher interface {
	Publish(ctx context.Context, userID string, events []model.GameEvent)
}

// Observer is notified of each game event as soon as it is produced.
type Observer interface {
	OnEvent(ev model.GameEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev model.GameEvent)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ev model.GameEvent) { f(ev) }

// Request is one validated conversation turn.
type Request struct {
	UserID    string
	SessionID string // empty starts a new session
	Mode      Mode
	Messages  []model.Message
}

// Result is the outcome of a run.
type Result struct {
	SessionID string
	Message   model.Message
	Outcome   Outcome
	Rounds    int
	Events    []model.GameEvent
	State     *model.PlayerState // game mode only
}

// Deps are the collaborators of a Service. Conversations and Publisher may be nil.
type Deps struct {
	Model         llm.Model
	Catalog       *tools.Catalog
	States        StateStore
	Conversations ConversationStore
	Publisher     Publisher
	Logger        *slog.Logger
}

// Service runs conversations against the model and the tool catalog.
type Service struct {
	model       llm.Model
	gameTools   *tools.Catalog
	chatTools   *tools.Catalog
	states      StateStore
	convos      ConversationStore
	publisher   Publisher
	cfg         Config
	logger      *slog.Logger
	tracer      trace.Tracer
	roundsCtr   metric.Int64Counter
	dispatchCtr metric.Int64Counter
	failedCtr   metric.Int64Counter
	conflictCtr metric.Int64Counter
}

// New creates a Service.
func New(deps Deps, cfg Config) *Service {
	meter := telemetry.Meter("wyrmgate/orchestrator")
	rounds, _ := meter.Int64Counter("wyrmgate.orchestrator.rounds",
		metric.WithDescription("Model rounds executed"),
	)
	dispatched, _ := meter.Int64Counter("wyrmgate.tools.dispatched",
		metric.WithDescription("Tool calls dispatched"),
	)
	failed, _ := meter.Int64Counter("wyrmgate.tools.failed",
		metric.WithDescription("Tool calls that returned an error"),
	)
	conflicts, _ := meter.Int64Counter("wyrmgate.state.conflicts",
		metric.WithDescription("State saves rejected on a stale version"),
	)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		model:       deps.Model,
		gameTools:   deps.Catalog,
		chatTools:   deps.Catalog.ReadOnly(),
		states:      deps.States,
		convos:      deps.Conversations,
		publisher:   deps.Publisher,
		cfg:         cfg,
		logger:      logger,
		tracer:      telemetry.Tracer("wyrmgate/orchestrator"),
		roundsCtr:   rounds,
		dispatchCtr: dispatched,
		failedCtr:   failed,
		conflictCtr: conflicts,
	}
}

// Tools returns the catalog advertised for mode.
func (s *Service) Tools(mode Mode) *tools.Catalog {
	if mode == ModeGame {
		return s.gameTools
	}
	return s.chatTools
}

// ModelName reports the configured model backend.
func (s *Service) ModelName() string { return s.model.Name() }

// Run executes one turn. ctx carries the request deadline; persistence runs
// on a detached context so a timed-out or abandoned run still saves. A save
// conflict is returned as an error wrapping storage.ErrConflict together with
// the otherwise complete Result.
func (s *Service) Run(ctx context.Context, req Request, obs Observer) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("wyrmgate.mode", string(req.Mode)),
		attribute.String("wyrmgate.user_id", req.UserID),
	))
	defer span.End()

	sessionID, err := s.resolveSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return Result{}, err
	}

	var state *model.PlayerState
	if req.Mode == ModeGame {
		st, err := s.states.LoadOrCreate(ctx, req.UserID)
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: load state: %w", err)
		}
		state = &st
	}

	catalog := s.Tools(req.Mode)
	schemas := catalog.List()
	convo := make([]model.Message, 0, len(req.Messages)+1)
	convo = append(convo, model.TextMessage(model.RoleSystem, systemPrompt(req.Mode, state)))
	convo = append(convo, model.CloneMessages(req.Messages)...)

	var (
		produced []model.Message
		events   []model.GameEvent
		text     string
		outcome  = OutcomeLimitReached
		rounds   int
	)
	emit := func(evs []model.GameEvent) {
		events = append(events, evs...)
		if obs == nil {
			return
		}
		for _, ev := range evs {
			obs.OnEvent(ev)
		}
	}

	maxRounds := s.cfg.rounds(req.Mode)
	for rounds < maxRounds {
		if ctx.Err() != nil {
			outcome = OutcomeTimeout
			break
		}
		rounds++
		s.roundsCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(req.Mode))))

		reply, err := s.respond(ctx, rounds, convo, schemas)
		if err != nil {
			outcome = OutcomeModelError
			if ctx.Err() != nil {
				outcome = OutcomeTimeout
			}
			s.logger.Warn("orchestrator: model call failed",
				"user_id", req.UserID, "round", rounds, "outcome", outcome, "error", err)
			break
		}
		if !reply.HasToolCalls() {
			text = reply.Text()
			outcome = OutcomeComplete
			break
		}

		convo = append(convo, reply)
		produced = append(produced, reply)
		for _, call := range reply.ToolCalls {
			out := s.dispatch(ctx, req, catalog, call, state)
			convo = append(convo, out.forModel)
			produced = append(produced, out.forTranscript)
			emit(out.events)
		}
	}

	switch outcome {
	case OutcomeLimitReached, OutcomeModelError:
		text = LimitReachedMessage
	case OutcomeTimeout:
		text = TimeoutMessage
	}
	if state != nil {
		swept, evs := game.Sweep(*state)
		state = &swept
		emit(evs)
	}

	final := model.TextMessage(model.RoleAssistant, filter.Filter(text))
	produced = append(produced, final)
	res := Result{
		SessionID: sessionID,
		Message:   final,
		Outcome:   outcome,
		Rounds:    rounds,
		Events:    events,
	}

	saveErr := s.persist(ctx, req, sessionID, produced, &res, state)
	span.SetAttributes(
		attribute.Int("wyrmgate.rounds", rounds),
		attribute.String("wyrmgate.outcome", string(outcome)),
	)
	if saveErr != nil {
		span.SetStatus(codes.Error, saveErr.Error())
		return res, saveErr
	}

	s.logger.Info("orchestrator: run finished",
		"user_id", req.UserID,
		"session_id", sessionID,
		"mode", req.Mode,
		"rounds", rounds,
		"outcome", outcome,
		"events", len(events),
	)
	return res, nil
}

func (s *Service) respond(ctx context.Context, round int, convo []model.Message, schemas []model.ToolSchema) (model.Message, error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.round", trace.WithAttributes(
		attribute.Int("wyrmgate.round", round),
		attribute.String("wyrmgate.model", s.model.Name()),
	))
	defer span.End()

	reply, err := s.model.Respond(ctx, convo, schemas)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return model.Message{}, err
	}
	span.SetAttributes(attribute.Int("wyrmgate.tool_calls", len(reply.ToolCalls)))
	return reply, nil
}

// dispatched is the outcome of one tool call. forModel may carry
// server-only fields such as an NPC secret; forTranscript is the client-safe
// projection that gets stored and served back.
type dispatched struct {
	forModel      model.Message
	forTranscript model.Message
	events        []model.GameEvent
}

// dispatch executes one tool call. In game mode state is updated in place; a
// failed call leaves it untouched.
func (s *Service) dispatch(ctx context.Context, req Request, catalog *tools.Catalog, call model.ToolCallRequest, state *model.PlayerState) dispatched {
	s.dispatchCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Name)))

	toolMsg := func(content string) model.Message {
		m := model.TextMessage(model.RoleTool, truncateRunes(content, s.cfg.MaxToolResultChars))
		m.ToolCallID = call.ID
		return m
	}
	failed := func(msg string, err error) dispatched {
		s.failedCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Name)))
		s.logger.Warn(msg, "user_id", req.UserID, "tool", call.Name, "error", err)
		m := toolMsg(ToolFailedMessage)
		return dispatched{forModel: m, forTranscript: m}
	}

	res, err := catalog.Dispatch(ctx, call.Name, call.Arguments)
	if err != nil {
		return failed("orchestrator: tool failed", err)
	}
	payload, err := game.ModelPayload(res)
	if err != nil {
		return failed("orchestrator: encode tool result", err)
	}
	public, err := game.ClientPayload(res)
	if err != nil {
		return failed("orchestrator: encode tool result", err)
	}

	var evs []model.GameEvent
	if state != nil {
		*state, _, evs = game.Apply(*state, res)
	} else if res != nil {
		evs = []model.GameEvent{game.NewEvent(res.Type(), game.View(res))}
	}
	return dispatched{forModel: toolMsg(payload), forTranscript: toolMsg(public), events: evs}
}

// persist saves state, then appends the transcript and records and publishes
// events. Only a state save failure is returned; the rest are logged.
func (s *Service) persist(ctx context.Context, req Request, sessionID string, produced []model.Message, res *Result, state *model.PlayerState) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout())
	defer cancel()

	// A turn whose state did not commit is not recorded or announced: the
	// caller retries it whole, and subscribers must not hear of changes that
	// never happened.
	if state != nil {
		saved, err := s.states.Save(saveCtx, req.UserID, *state)
		switch {
		case errors.Is(err, storage.ErrConflict):
			s.conflictCtr.Add(saveCtx, 1)
			s.logger.Warn("orchestrator: state conflict", "user_id", req.UserID, "version", state.Version)
			return fmt.Errorf("orchestrator: save state: %w", err)
		case err != nil:
			s.logger.Error("orchestrator: save state", "user_id", req.UserID, "error", err)
			return fmt.Errorf("orchestrator: save state: %w", err)
		}
		res.State = &saved
	}

	if s.convos != nil && sessionID != "" {
		msgs := append(lastUserTurn(req.Messages), produced...)
		if err := s.convos.AppendMessages(saveCtx, sessionID, msgs); err != nil {
			s.logger.Warn("orchestrator: append transcript", "session_id", sessionID, "error", err)
		}
		if len(res.Events) > 0 {
			if err := s.convos.RecordEvents(saveCtx, req.UserID, sessionID, res.Events); err != nil {
				s.logger.Warn("orchestrator: record events", "session_id", sessionID, "error", err)
			}
		}
	}
	if s.publisher != nil && len(res.Events) > 0 {
		s.publisher.Publish(saveCtx, req.UserID, res.Events)
	}
	return nil
}

func (s *Service) saveTimeout() time.Duration {
	if s.cfg.SaveTimeout <= 0 {
		return DefaultConfig().SaveTimeout
	}
	return s.cfg.SaveTimeout
}

// resolveSession returns the session to record into, creating one when none
// was supplied.
func (s *Service) resolveSession(ctx context.Context, userID, sessionID string) (string, error) {
	if s.convos == nil {
		return sessionID, nil
	}
	if sessionID == "" {
		id, err := s.convos.CreateSession(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("orchestrator: create session: %w", err)
		}
		return id, nil
	}
	owner, err := s.convos.GetOwner(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("orchestrator: session %s: %w", sessionID, err)
	}
	if owner != userID {
		return "", ErrSessionForbidden
	}
	return sessionID, nil
}

// lastUserTurn returns the trailing user messages of a request. The client
// resends the whole history each turn, so only the new input is stored.
func lastUserTurn(msgs []model.Message) []model.Message {
	i := len(msgs)
	for i > 0 && msgs[i-1].Role == model.RoleUser {
		i--
	}
	return model.CloneMessages(msgs[i:])
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
