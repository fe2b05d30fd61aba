package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

const minCredentialLen = 10

// Settings is a snapshot of the workspace flags and run state.
type Settings struct {
	Awakened        bool             `json:"awakened"`
	FastMode        bool             `json:"fastMode"`
	Busy            bool             `json:"busy"`
	State           agentflow.State  `json:"state"`
	ActiveSessionID domain.SessionID `json:"activeSessionId"`
}

func (s *Service) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Settings{
		Awakened:        s.awakened,
		FastMode:        s.fastMode,
		Busy:            s.token != nil,
		State:           s.state,
		ActiveSessionID: s.activeID,
	}
}

// SetFastMode toggles the shortened pipeline. It applies from the next submission.
func (s *Service) SetFastMode(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fastMode = on
	return s.saveFlag(ctx, KeyFastMode, on)
}

func (s *Service) SetAwakened(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awakened = on
	return s.saveFlag(ctx, KeyAwakened, on)
}

func (s *Service) Persona() domain.UserPersona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

// CredentialStatus never carries the key itself.
type CredentialStatus struct {
	Present bool   `json:"present"`
	Notice  string `json:"notice,omitempty"`
}

func (s *Service) Credential() CredentialStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CredentialStatus{Present: s.credential != "", Notice: s.authNotice}
}

// SetCredential stores the trimmed key; keys of 10 characters or fewer are
// rejected.
func (s *Service) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if len(key) <= minCredentialLen {
		return domain.ErrInvalidCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeCredentialLocked(ctx, key)
}

func (s *Service) storeCredentialLocked(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := s.kv.Save(ctx, KeyCredential, []byte(key)); err != nil {
		return fmt.Errorf("conversation: save credential: %w", err)
	}
	s.credential = key
	s.authNotice = ""
	return nil
}

func (s *Service) ClearCredential(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, KeyCredential); err != nil {
		return fmt.Errorf("conversation: delete credential: %w", err)
	}
	s.credential = ""
	s.authNotice = ""
	return nil
}
