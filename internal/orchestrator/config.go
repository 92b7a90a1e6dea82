package orchestrator

import "time"

// Fixed replies used when a run ends without a model-authored answer.
const (
	LimitReachedMessage = "The tale pauses here. The narrator needs a moment to gather their thoughts, so please try again."
	TimeoutMessage      = "The narrator took too long to answer. Your progress has been saved, so please try again."
	ToolFailedMessage   = "Tool execution failed."
)

// Mode selects the tool set and round budget of a run.
type Mode string

const (
	// ModeChat is general conversation with read-only tools and no state.
	ModeChat Mode = "chat"
	// ModeGame runs the full tool catalog against the caller's player state.
	ModeGame Mode = "game"
)

// Outcome describes how a run terminated.
type Outcome string

const (
	OutcomeComplete     Outcome = "complete"
	OutcomeLimitReached Outcome = "limit_reached"
	OutcomeModelError   Outcome = "model_error"
	OutcomeTimeout      Outcome = "timeout"
)

// Config bounds a run.
type Config struct {
	MaxChatRounds      int
	MaxGameRounds      int
	MaxToolResultChars int
	SaveTimeout        time.Duration
}

// DefaultConfig returns the stock bounds.
func DefaultConfig() Config {
	return Config{
		MaxChatRounds:      3,
		MaxGameRounds:      8,
		MaxToolResultChars: 2000,
		SaveTimeout:        5 * time.Second,
	}
}

func (c Config) rounds(m Mode) int {
	if m == ModeGame {
		return max(c.MaxGameRounds, 1)
	}
	return max(c.MaxChatRounds, 1)
}
