package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/ashita-ai/wyrmgate/internal/model"
)

// SSE event names.
const (
	eventTextDelta  = "text-delta"
	eventToolResult = "tool-result"
	eventState      = "state"
	eventError      = "error"
	eventDone       = "done"
)

// DefaultStreamChunkRunes is the text-delta size when none is configured.
const DefaultStreamChunkRunes = 48

// formatSSE formats one Server-Sent Events frame.
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}

func sseFrame(eventType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return formatSSE(eventType, string(data)), nil
}

type textDelta struct {
	Text string `json:"text"`
}

type streamError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type streamDone struct {
	SessionID string `json:"session_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

// StreamEmitter writes a run to the client as SSE. Tool results go out as
// they happen; the final text, already filtered, follows in small chunks.
// After the first failed write the client is considered gone and every
// further write is dropped, so the run and its persistence carry on.
type StreamEmitter struct {
	w          http.ResponseWriter
	rc         *http.ResponseController
	chunkRunes int
	logger     *slog.Logger

	mu   sync.Mutex
	gone bool
}

// NewStreamEmitter sends the SSE response headers and returns an emitter.
func NewStreamEmitter(w http.ResponseWriter, chunkRunes int, logger *slog.Logger) (*StreamEmitter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errors.New("server: streaming not supported")
	}
	if chunkRunes <= 0 {
		chunkRunes = DefaultStreamChunkRunes
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	e := &StreamEmitter{w: w, rc: http.NewResponseController(w), chunkRunes: chunkRunes, logger: logger}
	if err := e.rc.Flush(); err != nil {
		e.gone = true
	}
	return e, nil
}

// Gone reports whether the client stopped accepting writes.
func (e *StreamEmitter) Gone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gone
}

// OnEvent emits a tool-result event. It implements orchestrator.Observer.
func (e *StreamEmitter) OnEvent(ev model.GameEvent) {
	e.send(eventToolResult, ev)
}

// Text emits text as a sequence of text-delta events of at most chunkRunes
// runes each. Chunks never split a rune.
func (e *StreamEmitter) Text(text string) {
	for _, chunk := range chunkText(text, e.chunkRunes) {
		e.send(eventTextDelta, textDelta{Text: chunk})
	}
}

// State emits the saved player state.
func (e *StreamEmitter) State(st model.PlayerState) {
	e.send(eventState, st)
}

// Error emits an error event.
func (e *StreamEmitter) Error(code, message string, retryable bool) {
	e.send(eventError, streamError{Error: message, Code: code, Retryable: retryable})
}

// Done emits the terminal event.
func (e *StreamEmitter) Done(sessionID, outcome string) {
	e.send(eventDone, streamDone{SessionID: sessionID, Outcome: outcome})
}

func (e *StreamEmitter) send(event string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return
	}
	frame, err := sseFrame(event, v)
	if err != nil {
		e.logger.Warn("stream: encode event", "event", event, "error", err)
		return
	}
	if _, err := e.w.Write(frame); err != nil {
		e.markGone(err)
		return
	}
	if err := e.rc.Flush(); err != nil {
		e.markGone(err)
	}
}

func (e *StreamEmitter) markGone(err error) {
	e.gone = true
	e.logger.Debug("stream: client gone", "error", err)
}

// chunkText splits s into pieces of at most n runes.
func chunkText(s string, n int) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > 0 {
		i, count := 0, 0
		for i < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			count++
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	return out
}
