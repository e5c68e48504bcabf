// Package negotiation manages short-lived trade negotiation sessions: a
// transcript between two teams plus a staged draft deal. Drafts are stored in
// canonical form but not rule-validated until they are committed.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/trade-engine/internal/league"
	"github.com/courtside/trade-engine/internal/model"
)

// Service persists negotiation sessions through the league store.
type Service struct {
	store league.Store
	now   func() time.Time
}

// NewService wires session persistence over a store.
func NewService(store league.Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock, for deterministic timestamps in tests.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// Create starts a session between two teams.
func (s *Service) Create(ctx context.Context, userTeamID, otherTeamID string) (*model.Session, error) {
	userTeamID = strings.ToUpper(strings.TrimSpace(userTeamID))
	otherTeamID = strings.ToUpper(strings.TrimSpace(otherTeamID))
	if userTeamID == "" || otherTeamID == "" || userTeamID == otherTeamID {
		return nil, model.NewTradeError(model.CodeInvalidTeam, "session requires two distinct teams",
			map[string]any{"user_team_id": userTeamID, "other_team_id": otherTeamID})
	}

	now := s.now()
	sess := &model.Session{
		SessionID:   uuid.NewString(),
		UserTeamID:  userTeamID,
		OtherTeamID: otherTeamID,
		Messages:    []model.SessionMessage{},
		Status:      "ACTIVE",
		Phase:       "OPEN",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Get returns one session or NEGOTIATION_NOT_FOUND.
func (s *Service) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, league.ErrNotFound) {
		return nil, model.NewTradeError(model.CodeNegotiationNotFound, "negotiation session not found",
			map[string]any{"session_id": sessionID})
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return sess, nil
}

// AppendMessage adds one transcript entry.
func (s *Service) AppendMessage(ctx context.Context, sessionID, speaker, text string) (*model.Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess.Messages = append(sess.Messages, model.SessionMessage{Speaker: speaker, Text: text, At: now})
	sess.UpdatedAt = now
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// SetDraft parses and canonicalizes a deal payload and stages it on the
// session. Structural errors surface immediately; league legality is checked
// only at commit time.
func (s *Service) SetDraft(ctx context.Context, sessionID string, payload []byte) (*model.Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	deal, err := model.ParseDeal(payload)
	if err != nil {
		return nil, err
	}
	serialized, err := model.SerializeDeal(model.CanonicalizeDeal(deal))
	if err != nil {
		return nil, fmt.Errorf("serialize draft deal: %w", err)
	}
	sess.DraftDeal = serialized
	sess.Phase = "DRAFTED"
	sess.UpdatedAt = s.now()
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// SetCommitted records the committed deal id produced from the session's
// draft and closes the negotiation.
func (s *Service) SetCommitted(ctx context.Context, sessionID, dealID string) (*model.Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.CommittedDealID = dealID
	sess.Status = "COMMITTED"
	sess.Phase = "COMMITTED"
	sess.UpdatedAt = s.now()
	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}
