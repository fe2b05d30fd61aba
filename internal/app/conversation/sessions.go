package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// NewSession opens a fresh thread at the top of the list and activates it.
func (s *Service) NewSession(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.newSession(newSessionTitle, newGreeting)
	s.sessions = append([]*domain.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	if err := s.saveSessionsLocked(ctx); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info("session created", zap.String("session_id", string(sess.ID)))
	return sess.Clone(), nil
}

// DeleteSession removes a thread. Deleting the last remaining thread resets
// the whole workspace, credential included, to a single fresh session.
func (s *Service) DeleteSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(id)))

	idx, sess := s.findLocked(id)
	if sess == nil {
		return fmt.Errorf("conversation: %w: %s", domain.ErrSessionNotFound, id)
	}

	if len(s.sessions) == 1 {
		log.Info("last session deleted, resetting workspace")
		return s.resetLocked(ctx)
	}

	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = s.sessions[0].ID
	}
	log.Info("session deleted")
	return s.saveSessionsLocked(ctx)
}

func (s *Service) resetLocked(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("conversation: clear store: %w", err)
	}
	s.abandonLocked()

	s.generation++
	s.persona = domain.UserPersona{}
	s.awakened = false
	s.fastMode = false
	s.credential = ""
	s.authNotice = ""
	s.pending = nil

	s.sessions = []*domain.Session{s.newSession(firstSessionTitle, firstGreeting)}
	s.activeID = s.sessions[0].ID
	return s.saveSessionsLocked(ctx)
}

// SwitchSession changes the active thread. A running chain keeps writing into
// the thread it started in.
func (s *Service) SwitchSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, sess := s.findLocked(id); sess == nil {
		return fmt.Errorf("conversation: %w: %s", domain.ErrSessionNotFound, id)
	}
	s.activeID = id
	return nil
}

// SessionSummary is one entry of the thread list.
type SessionSummary struct {
	ID           domain.SessionID `json:"id"`
	Title        string           `json:"title"`
	MessageCount int              `json:"messageCount"`
	UpdatedAt    domain.Timestamp `json:"lastUpdated"`
	Active       bool             `json:"active"`
}

func (s *Service) Sessions() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, SessionSummary{
			ID:           sess.ID,
			Title:        sess.Title,
			MessageCount: len(sess.Messages),
			UpdatedAt:    sess.UpdatedAt,
			Active:       sess.ID == s.activeID,
		})
	}
	return out
}

// ActiveSession returns a copy of the active thread.
func (s *Service) ActiveSession() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sess := s.findLocked(s.activeID)
	return sess.Clone()
}

func (s *Service) Session(id domain.SessionID) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sess := s.findLocked(id)
	if sess == nil {
		return nil, fmt.Errorf("conversation: %w: %s", domain.ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// Timeline returns the messages of a thread in order.
func (s *Service) Timeline(id domain.SessionID) ([]*domain.Message, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}
