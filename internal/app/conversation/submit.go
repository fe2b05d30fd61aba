package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

type SubmitInput struct {
	Prompt string
	File   *domain.Attachment
	Style  domain.Style
}

// Result describes a started run. Outcome is nil when the run continues in
// the background.
type Result struct {
	SessionID domain.SessionID
	Message   *domain.Message
	Outcome   *agentflow.Outcome
}

// run is a prepared submission. It holds the in-flight slot until it finishes
// or is stopped, whichever comes first.
type run struct {
	sub        agentflow.Submission
	token      *agentflow.CancelToken
	release    func()
	credential string
	generation int
}

// Submit appends the partner message to the active session and runs the
// pipeline for it.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if !s.inflight.TryAcquire(1) {
		return nil, domain.ErrBusy
	}

	s.mu.Lock()
	if s.credential == "" {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrNoCredential
	}

	style := domain.ParseStyle(string(in.Style))
	s.pending = &PendingAction{Prompt: prompt, File: in.File, Style: style}

	_, sess := s.findLocked(s.activeID)
	msg := &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Sender:    domain.SenderPartner,
		Text:      prompt,
		CreatedAt: s.now(),
	}
	if in.File != nil {
		msg.AttachmentName = in.File.Name
	}
	s.appendLocked(sess, msg)
	if err := s.saveSessionsLocked(ctx); err != nil {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, err
	}

	r := s.startLocked(sess.ID, prompt, in.File, style)
	s.mu.Unlock()

	return s.launch(ctx, r, msg), nil
}

// Retry replays the last submission verbatim.
func (s *Service) Retry(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil, domain.ErrNothingToRetry
	}
	return s.Submit(ctx, SubmitInput{Prompt: pending.Prompt, File: pending.File, Style: pending.Style})
}

// Stop cancels the in-flight submission and records one notice. It reports
// whether anything was running.
func (s *Service) Stop(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return false, nil
	}
	running := s.running
	s.abandonLocked()

	observability.LoggerFromContext(ctx).Info("submission stopped", zap.String("session_id", string(running)))

	_, sess := s.findLocked(running)
	if sess == nil {
		return true, nil
	}
	s.appendLocked(sess, newNotice(stoppedText, s.now()))
	return true, s.saveSessionsLocked(ctx)
}

// EditMessage rewrites a message of the active session. With regenerate the
// timeline is cut after it and the pipeline reruns with the new text.
func (s *Service) EditMessage(ctx context.Context, id domain.MessageID, text string, regenerate bool) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if !s.inflight.TryAcquire(1) {
		return nil, domain.ErrBusy
	}

	s.mu.Lock()
	_, sess := s.findLocked(s.activeID)
	idx := sess.IndexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrMessageNotFound
	}
	if regenerate && s.credential == "" {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrNoCredential
	}

	edited := *sess.Messages[idx]
	edited.Text = text
	edited.CreatedAt = s.now()
	sess.Messages[idx] = &edited
	if regenerate {
		sess.Messages = sess.Messages[:idx+1]
	}
	sess.UpdatedAt = s.now()
	if err := s.saveSessionsLocked(ctx); err != nil {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, err
	}

	if !regenerate {
		s.mu.Unlock()
		s.inflight.Release(1)
		return &Result{SessionID: sess.ID, Message: &edited}, nil
	}

	r := s.startLocked(sess.ID, text, nil, s.pendingStyleLocked())
	s.mu.Unlock()

	return s.launch(ctx, r, &edited), nil
}

// Regenerate reruns the partner message that precedes the given reply,
// discarding everything after that partner message.
func (s *Service) Regenerate(ctx context.Context, id domain.MessageID) (*Result, error) {
	if !s.inflight.TryAcquire(1) {
		return nil, domain.ErrBusy
	}

	s.mu.Lock()
	_, sess := s.findLocked(s.activeID)
	idx := sess.IndexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrMessageNotFound
	}
	if s.credential == "" {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrNoCredential
	}

	partner := -1
	for i := idx - 1; i >= 0; i-- {
		if sess.Messages[i].Sender == domain.SenderPartner {
			partner = i
			break
		}
	}
	if partner < 0 {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, domain.ErrNothingToRetry
	}

	msg := sess.Messages[partner]
	sess.Messages = sess.Messages[:partner+1]
	sess.UpdatedAt = s.now()
	if err := s.saveSessionsLocked(ctx); err != nil {
		s.mu.Unlock()
		s.inflight.Release(1)
		return nil, err
	}

	r := s.startLocked(sess.ID, msg.Text, nil, s.pendingStyleLocked())
	s.mu.Unlock()

	return s.launch(ctx, r, msg), nil
}

// Wait blocks until background runs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) pendingStyleLocked() domain.Style {
	if s.pending != nil {
		return s.pending.Style
	}
	return domain.StyleGentle
}

// startLocked allocates the token of a new run. The caller holds the
// in-flight slot, which the run's release hands back exactly once.
func (s *Service) startLocked(sessionID domain.SessionID, prompt string, file *domain.Attachment, style domain.Style) run {
	var once sync.Once
	s.release = func() { once.Do(func() { s.inflight.Release(1) }) }
	s.token = agentflow.NewCancelToken()
	s.running = sessionID
	s.authNotice = ""

	return run{
		sub: agentflow.Submission{
			SessionID: sessionID,
			Prompt:    prompt,
			File:      file,
			Style:     style,
			Persona:   s.persona,
			Awakened:  s.awakened,
			FastMode:  s.fastMode,
		},
		token:      s.token,
		release:    s.release,
		credential: s.credential,
		generation: s.generation,
	}
}

// abandonLocked cancels the running submission and frees its slot at once.
// The abandoned run keeps going until its pending call returns, but nothing
// it produces is stored.
func (s *Service) abandonLocked() {
	if s.token == nil {
		return
	}
	s.token.Cancel()
	s.release()
	s.token = nil
	s.release = nil
	s.running = ""
	s.state = agentflow.StateIdle
}

func (s *Service) launch(ctx context.Context, r run, msg *domain.Message) *Result {
	res := &Result{SessionID: r.sub.SessionID, Message: msg}
	if s.opts.Background {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(context.WithoutCancel(ctx), r)
		}()
		return res
	}
	out := s.execute(ctx, r)
	res.Outcome = &out
	return res
}

// execute runs the pipeline and releases the in-flight slot.
func (s *Service) execute(ctx context.Context, r run) agentflow.Outcome {
	defer s.finish(r)

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(r.sub.SessionID)))
	sink := &runSink{svc: s, run: r}

	backend, err := s.backends.Connect(ctx, r.credential)
	if err != nil {
		herr := agentflow.NewErrorHandler(sink).Handle(ctx, r.sub.SessionID, err)
		if herr != nil {
			s.credentialRejected(ctx, r, herr)
			return agentflow.Outcome{State: agentflow.StateIdle, Err: herr}
		}
		return agentflow.Outcome{State: agentflow.StateIdle, Recovered: true}
	}

	cfg := s.opts.Flow
	cfg.OnState = func(_ domain.SessionID, st agentflow.State) { s.setState(r, st) }

	out := agentflow.NewOrchestrator(backend, sink, cfg).Run(ctx, r.token, r.sub)

	if out.Gateway != nil {
		s.applyPersona(ctx, r, out.Gateway.PersonaUpdate, out.Gateway.StageUpdate)
	}
	if errors.Is(out.Err, domain.ErrCredential) {
		s.credentialRejected(ctx, r, out.Err)
	}

	log.Info("submission finished",
		zap.String("state", string(out.State)),
		zap.String("engine", string(out.Engine)),
		zap.Bool("stopped", out.Stopped),
		zap.Bool("recovered", out.Recovered),
		zap.Error(out.Err))
	return out
}

func (s *Service) finish(r run) {
	s.mu.Lock()
	if s.token == r.token {
		s.token = nil
		s.release = nil
		s.running = ""
		s.state = agentflow.StateIdle
	}
	s.mu.Unlock()
	r.release()
}

// runSink is the MessageSink of one run. Once the run is stopped or the
// workspace reset, its messages are dropped.
type runSink struct {
	svc *Service
	run run
}

func (k *runSink) Append(ctx context.Context, sessionID domain.SessionID, msg *domain.Message) error {
	s := k.svc
	s.mu.Lock()
	defer s.mu.Unlock()

	if k.run.token.Cancelled() || s.generation != k.run.generation {
		return fmt.Errorf("conversation: %w: dropping %s message", agentflow.ErrStopped, msg.Sender)
	}
	return s.appendToLocked(ctx, sessionID, msg)
}

func (s *Service) setState(r run, st agentflow.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == r.token && !r.token.Cancelled() {
		s.state = st
	}
}

// applyPersona folds the accepted gateway response into the accumulator,
// once per submission.
func (s *Service) applyPersona(ctx context.Context, r run, delta, stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != r.generation {
		return
	}
	s.persona.Apply(delta, stage, s.opts.PersonaSummaryCap)
	if err := s.saveJSON(ctx, KeyPersona, s.persona); err != nil {
		observability.LoggerFromContext(ctx).Error("persona not persisted", zap.Error(err))
	}
}

// credentialRejected forgets the stored key so the partner is asked for a new one.
func (s *Service) credentialRejected(ctx context.Context, r run, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != r.generation || s.credential != r.credential {
		return
	}

	s.credential = ""
	s.authNotice = authNotice(cause)
	if f, ok := s.backends.(domain.CredentialForgetter); ok {
		f.Forget(r.credential)
	}
	if err := s.kv.Delete(ctx, KeyCredential); err != nil {
		observability.LoggerFromContext(ctx).Error("credential not cleared", zap.Error(err))
	}
}

func authNotice(cause error) string {
	detail := []rune(cause.Error())
	if len(detail) > 50 {
		detail = detail[:50]
	}
	return "API connection error. Please set the key again. (" + string(detail) + ")"
}

func newNotice(text string, now domain.Timestamp) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Sender:    domain.SenderSupervisor,
		Text:      text,
		CreatedAt: now,
	}
}
