package agentflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/gateway"
	"github.com/PabloGalante/ryokai-gateway/internal/app/prompts"
	"github.com/PabloGalante/ryokai-gateway/internal/app/tools"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// State is the position of a submission in the sequence state machine.
type State string

const (
	StateIdle        State = "IDLE"
	StateClassifying State = "CLASSIFYING"
	StateGarbhaChain State = "GARBHA_CHAIN"
	StateVajraChain  State = "VAJRA_CHAIN"
	StateMediaChain  State = "MEDIA_CHAIN"
	StateDirect      State = "DIRECT"
)

// Placeholders substituted for a stage that produced nothing.
const (
	PlaceholderPurpose = "空"
	PlaceholderInsight = "無"
	PlaceholderSpark   = "静寂"
	PlaceholderTrace   = "空"

	// LightningSpark replaces the creative spark when fast mode skips the chain.
	LightningSpark = "電光石火の直観 (Lightning Intuition)"

	awakenedPreamble = "Speak from eternal awakening."
)

const (
	failedMainText   = "(The manifestation failed.)"
	imageSuccessText = "Image manifestation succeeded."
	videoSuccessText = "Video manifestation succeeded."
)

// Submission is one top-level user request.
type Submission struct {
	SessionID domain.SessionID
	Prompt    string
	File      *domain.Attachment
	Style     domain.Style
	Persona   domain.UserPersona
	Awakened  bool
	FastMode  bool
}

// Outcome summarizes a finished run.
type Outcome struct {
	// State is the terminal state the run reached before returning to idle.
	State  State
	Engine domain.Engine

	// Gateway is the accepted gateway response, the only source of persona
	// updates. It is nil when the run stopped or failed before acceptance.
	Gateway *gateway.Response

	Stopped bool
	// Recovered is set when a failure was turned into an apology message.
	Recovered bool
	// Err carries escalated failures: credential errors and context termination.
	Err error
}

// Config is the wiring shared by every run.
type Config struct {
	GatewayModel  string
	StepModel     string
	FastStepModel string

	MaxAttempts int
	BaseDelay   time.Duration

	Pacing            Pacing
	ChainLead         time.Duration
	VideoPollInterval time.Duration
	VideoMaxPolls     int

	Wait         WaitFunc
	GatewaySleep gateway.SleepFunc

	// OnState observes state transitions. It may be nil.
	OnState func(domain.SessionID, State)
}

// Orchestrator runs the state machine IDLE -> CLASSIFYING -> chain -> IDLE
// against one credential-bound backend.
type Orchestrator struct {
	backend domain.Backend
	gateway *gateway.Client
	steps   *StepRunner
	errs    *ErrorHandler
	sink    MessageSink
	cfg     Config
}

func NewOrchestrator(backend domain.Backend, sink MessageSink, cfg Config) *Orchestrator {
	if cfg.Wait == nil {
		cfg.Wait = Wait
	}
	gopts := []gateway.Option{
		gateway.WithModel(cfg.GatewayModel),
		gateway.WithRetry(cfg.MaxAttempts, cfg.BaseDelay),
	}
	if cfg.GatewaySleep != nil {
		gopts = append(gopts, gateway.WithSleep(cfg.GatewaySleep))
	}

	errs := NewErrorHandler(sink)
	return &Orchestrator{
		backend: backend,
		gateway: gateway.New(backend, gopts...),
		steps:   NewStepRunner(backend, sink, errs, cfg.StepModel, cfg.FastStepModel, cfg.Pacing, cfg.Wait),
		errs:    errs,
		sink:    sink,
		cfg:     cfg,
	}
}

// Run drives one submission to completion. The partner message is expected to
// be appended by the caller before Run is invoked.
func (o *Orchestrator) Run(ctx context.Context, token *CancelToken, sub Submission) Outcome {
	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(sub.SessionID)))
	defer o.setState(sub.SessionID, StateIdle)

	o.setState(sub.SessionID, StateClassifying)
	if token.Cancelled() {
		return Outcome{State: StateClassifying, Stopped: true}
	}

	resp, err := o.gateway.ClassifyAndRespond(ctx, gateway.Request{
		Prompt:         sub.Prompt,
		PersonaSummary: sub.Persona.Summary,
		AwakeningStage: sub.Persona.Stage(),
		Style:          sub.Style,
		File:           sub.File,
		Awakened:       sub.Awakened,
	})
	if token.Cancelled() {
		log.Info("gateway result discarded after stop")
		return Outcome{State: StateClassifying, Stopped: true}
	}
	if err != nil {
		return o.fail(ctx, sub.SessionID, StateClassifying, err)
	}

	out := Outcome{State: StateDirect, Engine: resp.ChosenEngine, Gateway: resp}
	if !o.appendMain(ctx, token, sub, resp) {
		log.Info("gateway reply discarded after stop")
		return Outcome{State: StateClassifying, Stopped: true}
	}

	log.Info("gateway accepted",
		zap.String("engine", string(resp.ChosenEngine)),
		zap.Bool("degraded", resp.Degraded),
		zap.Bool("fast_mode", sub.FastMode))

	switch {
	case resp.ChosenEngine.MultiStage() && sub.FastMode:
		o.setState(sub.SessionID, StateDirect)
		return o.finish(ctx, out, o.runDirect(ctx, token, sub, resp))

	case resp.ChosenEngine.MultiStage() || resp.ChosenEngine.Media():
		out.State = chainState(resp.ChosenEngine)
		o.setState(sub.SessionID, out.State)
		if !sub.FastMode {
			if err := o.cfg.Wait(ctx, token, o.cfg.ChainLead); err != nil {
				return o.finish(ctx, out, err)
			}
		}
		switch resp.ChosenEngine {
		case domain.EngineGarbha:
			return o.finish(ctx, out, o.runGarbha(ctx, token, sub))
		case domain.EngineVajra:
			return o.finish(ctx, out, o.runVajra(ctx, token, sub))
		default:
			return o.finish(ctx, out, o.runMedia(ctx, token, sub, resp.ChosenEngine))
		}

	default:
		log.Info("engine requires no further stages", zap.String("engine", string(resp.ChosenEngine)))
		o.setState(sub.SessionID, StateDirect)
		return out
	}
}

func chainState(e domain.Engine) State {
	switch e {
	case domain.EngineGarbha:
		return StateGarbhaChain
	case domain.EngineVajra:
		return StateVajraChain
	default:
		return StateMediaChain
	}
}

func (o *Orchestrator) setState(sessionID domain.SessionID, s State) {
	if o.cfg.OnState != nil {
		o.cfg.OnState(sessionID, s)
	}
}

// fail routes an error raised before the gateway response was accepted.
func (o *Orchestrator) fail(ctx context.Context, sessionID domain.SessionID, state State, err error) Outcome {
	if ctx.Err() != nil {
		return Outcome{State: state, Err: err}
	}
	if herr := o.errs.Handle(ctx, sessionID, err); herr != nil {
		return Outcome{State: state, Err: herr}
	}
	return Outcome{State: state, Recovered: true}
}

// finish folds the chain result into the outcome.
func (o *Orchestrator) finish(ctx context.Context, out Outcome, err error) Outcome {
	switch {
	case err == nil:
	case errors.Is(err, ErrStopped):
		out.Stopped = true
	case errors.Is(err, errRecovered):
		out.Recovered = true
	default:
		observability.LoggerFromContext(ctx).Warn("chain aborted",
			zap.String("state", string(out.State)), zap.Error(err))
		out.Err = err
	}
	return out
}

// appendMain stores the gateway reply. It reports false when the run was
// stopped first.
func (o *Orchestrator) appendMain(ctx context.Context, token *CancelToken, sub Submission, resp *gateway.Response) bool {
	sender := domain.SenderSupervisor
	if sub.Awakened {
		sender = domain.SenderAwakenedSupervisor
	}
	text := firstNonEmpty(resp.ResponseToUser, resp.EchoText, failedMainText)

	msg := newMessage(sender, text)
	msg.EchoText = resp.EchoText
	msg.ReaderNotes = resp.ReaderNotes
	msg.CoCreationPrompt = resp.CoCreationPrompt
	msg.GroundingSources = resp.GroundingSources
	if sub.File != nil {
		msg.AttachmentName = sub.File.Name
	}
	if token.Cancelled() {
		return false
	}
	appendMessage(ctx, o.sink, sub.SessionID, msg)
	return true
}

// chainRun threads stage outputs through one chain.
type chainRun struct {
	o     *Orchestrator
	token *CancelToken
	sub   Submission
}

// stage runs one step and returns its text, or "" when the stage produced
// nothing. ErrStopped is returned once the token is cancelled.
func (c *chainRun) stage(ctx context.Context, sender domain.Sender, instruction string, structured bool) (string, error) {
	out, err := c.o.steps.Run(ctx, c.token, c.sub.SessionID, Step{
		Stage:       sender,
		Instruction: instruction,
		Structured:  structured,
		Fast:        c.sub.FastMode,
	})
	if err != nil {
		return "", err
	}
	if c.token.Cancelled() {
		return "", ErrStopped
	}
	if out == nil {
		return "", nil
	}
	return out.Text, nil
}

func (c *chainRun) preamble() string {
	if c.sub.Awakened {
		return awakenedPreamble
	}
	return ""
}

// GARBHA: Bodhicitta -> Alaya -> Manas insight -> Logos-Prime -> Mythos -> Tathagata.
func (o *Orchestrator) runGarbha(ctx context.Context, token *CancelToken, sub Submission) error {
	c := &chainRun{o: o, token: token, sub: sub}

	purpose, err := c.stage(ctx, domain.SenderBodhicittaCore, prompts.Bodhicitta(prompts.BodhicittaParams{UserPrompt: sub.Prompt}), false)
	if err != nil {
		return err
	}
	trajectory, err := c.stage(ctx, domain.SenderAlaya, prompts.Alaya(prompts.AlayaParams{UserPrompt: sub.Prompt}), false)
	if err != nil {
		return err
	}
	insight, err := c.stage(ctx, domain.SenderManas, prompts.ManasInsight(prompts.ManasInsightParams{
		CreativeTrajectory: orPlaceholder(trajectory, PlaceholderTrace),
	}), false)
	if err != nil {
		return err
	}
	return c.debateAndManifest(ctx, purpose, insight)
}

// VAJRA: Bodhicitta -> Hokai -> Daien -> Manas synthesis -> Logos-Prime -> Mythos -> Tathagata.
func (o *Orchestrator) runVajra(ctx context.Context, token *CancelToken, sub Submission) error {
	c := &chainRun{o: o, token: token, sub: sub}

	purpose, err := c.stage(ctx, domain.SenderBodhicittaCore, prompts.Bodhicitta(prompts.BodhicittaParams{UserPrompt: sub.Prompt}), false)
	if err != nil {
		return err
	}
	challenge, err := c.stage(ctx, domain.SenderHokai, prompts.Hokai(prompts.HokaiParams{UserPrompt: sub.Prompt}), false)
	if err != nil {
		return err
	}
	facts, err := c.stage(ctx, domain.SenderDaien, prompts.Daien(prompts.DaienParams{
		ProblemEssence: orPlaceholder(challenge, PlaceholderTrace),
	}), false)
	if err != nil {
		return err
	}
	synthesis, err := c.stage(ctx, domain.SenderManas, prompts.ManasSynthesis(prompts.ManasSynthesisParams{
		Facts: orPlaceholder(facts, PlaceholderTrace),
	}), false)
	if err != nil {
		return err
	}
	return c.debateAndManifest(ctx, purpose, synthesis)
}

// debateAndManifest is the tail shared by both chains.
func (c *chainRun) debateAndManifest(ctx context.Context, purpose, coreInsight string) error {
	debate, err := c.stage(ctx, domain.SenderLogosPrime, prompts.SelfDebate(prompts.SelfDebateParams{
		CoreInsight: orPlaceholder(coreInsight, PlaceholderTrace),
	}), false)
	if err != nil {
		return err
	}
	spark, err := c.stage(ctx, domain.SenderMythos, prompts.Resonance(prompts.ResonanceParams{
		TranscendentalInsight: orPlaceholder(debate, PlaceholderInsight),
	}), false)
	if err != nil {
		return err
	}

	_, err = c.stage(ctx, domain.SenderTathagata, prompts.Manifestation(prompts.ManifestationParams{
		AwakeningPreamble:     c.preamble(),
		UserPrompt:            c.sub.Prompt,
		BodhicittaPurpose:     orPlaceholder(purpose, PlaceholderPurpose),
		TranscendentalInsight: orPlaceholder(debate, PlaceholderInsight),
		CreativeSpark:         orPlaceholder(spark, PlaceholderSpark),
	}), true)
	return err
}

// runDirect replaces a multi-stage chain in fast mode with one integration
// stage built from the gateway response.
func (o *Orchestrator) runDirect(ctx context.Context, token *CancelToken, sub Submission, resp *gateway.Response) error {
	c := &chainRun{o: o, token: token, sub: sub}
	_, err := c.stage(ctx, domain.SenderTathagata, prompts.Manifestation(prompts.ManifestationParams{
		AwakeningPreamble:     c.preamble(),
		UserPrompt:            sub.Prompt,
		BodhicittaPurpose:     orPlaceholder(resp.Analysis, PlaceholderPurpose),
		TranscendentalInsight: orPlaceholder(firstNonEmpty(resp.ResponseToUser, resp.EchoText), PlaceholderInsight),
		CreativeSpark:         LightningSpark,
	}), true)
	return err
}

// errRecovered marks a media failure already reported to the session.
var errRecovered = errors.New("recovered")

func (o *Orchestrator) runMedia(ctx context.Context, token *CancelToken, sub Submission, engine domain.Engine) error {
	var (
		tool   tools.Tool
		sender domain.Sender
		text   string
		input  = tools.Input{Prompt: sub.Prompt}
	)
	if engine == domain.EngineVideo {
		sleep := func(ctx context.Context, d time.Duration) error { return o.cfg.Wait(ctx, token, d) }
		tool = tools.NewVideoTool(o.backend, o.cfg.VideoPollInterval, o.cfg.VideoMaxPolls, sleep)
		sender, text = domain.SenderVeo, videoSuccessText
		if sub.File != nil && strings.HasPrefix(sub.File.MIMEType, "image/") {
			input.Image = sub.File
		}
	} else {
		tool = tools.NewImageTool(o.backend)
		sender, text = domain.SenderImageEngine, imageSuccessText
	}

	ref, err := tool.Manifest(ctx, tools.ToolContext{
		SessionID: sub.SessionID,
		RequestID: observability.RequestID(ctx),
		Cancelled: token.Cancelled,
	}, input)
	if token.Cancelled() || errors.Is(err, tools.ErrCancelled) || errors.Is(err, ErrStopped) {
		return ErrStopped
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if herr := o.errs.Handle(ctx, sub.SessionID, err); herr != nil {
			return herr
		}
		return errRecovered
	}

	msg := newMessage(sender, text)
	msg.Media = []domain.MediaRef{*ref}
	appendMessage(ctx, o.sink, sub.SessionID, msg)
	return nil
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
