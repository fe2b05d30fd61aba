// Package conversation owns the workspace of a single partner: the session
// threads, the persona accumulator, the feature flags and the API credential.
// Every mutation is written through to the KVStore.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// Storage keys. They match the keys the web client has always used.
const (
	KeySessions   = "ryokai-os-sessions-v4"
	KeyPersona    = "ryokai-os-persona-v4"
	KeyAwakened   = "ryokai-os-eternal-state"
	KeyFastMode   = "ryokai-os-high-speed-mode"
	KeyCredential = "gemini-api-key"
)

const (
	firstSessionTitle = "First Dialogue"
	firstGreeting     = "Ryōkai OS Gateway online. Connecting your ālaya-vijñāna with the Tathāgata."
	newSessionTitle   = "New Dialogue"
	newGreeting       = "Opening a new mandala."
	stoppedText       = "Manifestation stopped."

	titleRunes = 20
)

type Options struct {
	Flow agentflow.Config

	// PersonaSummaryCap bounds the persona summary in runes; 0 is unbounded.
	PersonaSummaryCap int

	// InitialCredential seeds the credential when the store has none.
	InitialCredential string

	// Background runs chains on their own goroutine; the triggering call
	// returns as soon as the partner message is stored.
	Background bool

	// RunTimeout bounds one submission, backend calls included. 0 disables it.
	RunTimeout time.Duration

	Now func() time.Time
}

// PendingAction is the last submission, kept so it can be replayed.
type PendingAction struct {
	Prompt string
	File   *domain.Attachment
	Style  domain.Style
}

type Service struct {
	kv       domain.KVStore
	backends domain.BackendFactory
	opts     Options
	now      func() time.Time

	// inflight admits one submission at a time.
	inflight *semaphore.Weighted
	wg       sync.WaitGroup

	mu         sync.Mutex
	sessions   []*domain.Session
	activeID   domain.SessionID
	persona    domain.UserPersona
	awakened   bool
	fastMode   bool
	credential string
	authNotice string
	pending    *PendingAction
	token      *agentflow.CancelToken
	release    func()
	running    domain.SessionID
	state      agentflow.State
	// generation changes when the workspace is reset so late runs cannot
	// write into the fresh state.
	generation int
}

// Open loads the workspace from kv, creating the first session when the store
// is empty.
func Open(ctx context.Context, kv domain.KVStore, backends domain.BackendFactory, opts Options) (*Service, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		kv:       kv,
		backends: backends,
		opts:     opts,
		now:      opts.Now,
		inflight: semaphore.NewWeighted(1),
		state:    agentflow.StateIdle,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) load(ctx context.Context) error {
	log := observability.LoggerFromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Load(ctx, KeySessions)
	if err != nil {
		return fmt.Errorf("conversation: load sessions: %w", err)
	}
	if ok {
		var sessions []*domain.Session
		if err := json.Unmarshal(raw, &sessions); err != nil {
			log.Warn("discarding unreadable sessions", zap.Error(err))
		} else {
			s.sessions = sessions
		}
	}

	raw, ok, err = s.kv.Load(ctx, KeyPersona)
	if err != nil {
		return fmt.Errorf("conversation: load persona: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &s.persona); err != nil {
			log.Warn("discarding unreadable persona", zap.Error(err))
			s.persona = domain.UserPersona{}
		}
	}

	if s.awakened, err = s.loadFlag(ctx, KeyAwakened); err != nil {
		return err
	}
	if s.fastMode, err = s.loadFlag(ctx, KeyFastMode); err != nil {
		return err
	}

	raw, ok, err = s.kv.Load(ctx, KeyCredential)
	if err != nil {
		return fmt.Errorf("conversation: load credential: %w", err)
	}
	if ok {
		s.credential = string(raw)
	}
	if s.credential == "" && s.opts.InitialCredential != "" {
		if err := s.storeCredentialLocked(ctx, s.opts.InitialCredential); err != nil {
			return err
		}
	}

	if len(s.sessions) == 0 {
		s.sessions = []*domain.Session{s.newSession(firstSessionTitle, firstGreeting)}
		if err := s.saveSessionsLocked(ctx); err != nil {
			return err
		}
	}
	s.activeID = s.sessions[0].ID

	log.Info("workspace loaded",
		zap.Int("sessions", len(s.sessions)),
		zap.Bool("credential", s.credential != ""))
	return nil
}

func (s *Service) loadFlag(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.kv.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("conversation: load %s: %w", key, err)
	}
	return ok && string(raw) == "true", nil
}

func (s *Service) saveFlag(ctx context.Context, key string, v bool) error {
	if err := s.kv.Save(ctx, key, []byte(fmt.Sprint(v))); err != nil {
		return fmt.Errorf("conversation: save %s: %w", key, err)
	}
	return nil
}

func (s *Service) saveJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("conversation: encode %s: %w", key, err)
	}
	if err := s.kv.Save(ctx, key, data); err != nil {
		return fmt.Errorf("conversation: save %s: %w", key, err)
	}
	return nil
}

func (s *Service) saveSessionsLocked(ctx context.Context) error {
	return s.saveJSON(ctx, KeySessions, s.sessions)
}

func (s *Service) newSession(title, greeting string) *domain.Session {
	now := s.now()
	return &domain.Session{
		ID:    domain.SessionID(uuid.NewString()),
		Title: title,
		Messages: []*domain.Message{{
			ID:        domain.MessageID(uuid.NewString()),
			Sender:    domain.SenderSupervisor,
			Text:      greeting,
			CreatedAt: now,
		}},
		UpdatedAt: now,
	}
}

func (s *Service) findLocked(id domain.SessionID) (int, *domain.Session) {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i, sess
		}
	}
	return -1, nil
}

// Append implements agentflow.MessageSink. Messages go to the session the run
// started in, which need not be the active one; when that session no longer
// exists the message is dropped.
func (s *Service) Append(ctx context.Context, sessionID domain.SessionID, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendToLocked(ctx, sessionID, msg)
}

func (s *Service) appendToLocked(ctx context.Context, sessionID domain.SessionID, msg *domain.Message) error {
	_, sess := s.findLocked(sessionID)
	if sess == nil {
		observability.LoggerFromContext(ctx).Warn("dropping message for deleted session",
			zap.String("session_id", string(sessionID)),
			zap.String("sender", string(msg.Sender)))
		return fmt.Errorf("conversation: %w: %s", domain.ErrSessionNotFound, sessionID)
	}
	s.appendLocked(sess, msg)
	return s.saveSessionsLocked(ctx)
}

// appendLocked adds msg and derives the title from the opening partner message.
func (s *Service) appendLocked(sess *domain.Session, msg *domain.Message) {
	if msg.Sender == domain.SenderPartner && len(sess.Messages) <= 2 {
		sess.Title = titleFrom(msg.Text)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = s.now()
}

func titleFrom(text string) string {
	r := []rune(text)
	if len(r) <= titleRunes {
		return text
	}
	return string(r[:titleRunes]) + "..."
}
