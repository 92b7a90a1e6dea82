package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
	"github.com/ashita-ai/wyrmgate/internal/storage"
)

// State returns the caller's player state, creating it on first access.
func (s *Service) State(ctx context.Context, userID string) (model.PlayerState, error) {
	st, err := s.states.LoadOrCreate(ctx, userID)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("orchestrator: load state: %w", err)
	}
	return st, nil
}

// NewGame replaces the caller's character with a fresh one. Unknown classes
// fall back to the default class.
func (s *Service) NewGame(ctx context.Context, userID string, req model.NewGameRequest) (model.PlayerState, error) {
	fresh := game.NewPlayer(userID, strings.TrimSpace(req.Name), req.Class)
	st, err := s.states.Replace(ctx, userID, fresh)
	if err != nil {
		return model.PlayerState{}, fmt.Errorf("orchestrator: new game: %w", err)
	}
	s.logger.Info("orchestrator: new game", "user_id", userID, "class", st.Class)
	return st, nil
}

// Achievements returns the achievement catalog annotated with the caller's progress.
func (s *Service) Achievements(ctx context.Context, userID string) ([]model.AchievementStatus, error) {
	st, err := s.State(ctx, userID)
	if err != nil {
		return nil, err
	}
	return game.AchievementStatuses(st), nil
}

// Transcript returns the stored messages of a session the caller owns.
func (s *Service) Transcript(ctx context.Context, userID, sessionID string) ([]model.Message, error) {
	if s.convos == nil || sessionID == "" {
		return nil, fmt.Errorf("orchestrator: transcript: %w", storage.ErrNotFound)
	}
	if _, err := s.resolveSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.convos.Messages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: transcript: %w", err)
	}
	return msgs, nil
}
