package agentflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/extract"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

const (
	failedManifestationText = "(The manifestation failed. Please reshape the Dharma realm.)"
	emptyManifestationText  = "(The manifestation is empty.)"
)

// Step is one ad-hoc pipeline stage.
type Step struct {
	Stage       domain.Sender
	Instruction string

	// Structured marks stages whose prompt asks for a JSON object.
	Structured bool

	// Fast selects the fast model and the shorter thinking pause.
	Fast bool
}

// StepOutput is what a completed stage contributes to the next one.
type StepOutput struct {
	Text             string
	EchoText         string
	ReaderNotes      string
	CoCreationPrompt string
	GroundingSources []domain.GroundingSource
}

// Pacing holds the thinking pauses applied before each stage.
type Pacing struct {
	StepPause time.Duration
	FastPause time.Duration
}

type StepRunner struct {
	llm       domain.CompletionClient
	sink      MessageSink
	errs      *ErrorHandler
	model     string
	fastModel string
	pacing    Pacing
	wait      WaitFunc
}

func NewStepRunner(llm domain.CompletionClient, sink MessageSink, errs *ErrorHandler, model, fastModel string, pacing Pacing, wait WaitFunc) *StepRunner {
	if wait == nil {
		wait = Wait
	}
	return &StepRunner{
		llm:       llm,
		sink:      sink,
		errs:      errs,
		model:     model,
		fastModel: fastModel,
		pacing:    pacing,
		wait:      wait,
	}
}

// Run executes one stage and persists its message. It returns nil output
// without error when the stage was cancelled or its failure was recovered;
// only credential failures and context termination are returned.
func (r *StepRunner) Run(ctx context.Context, token *CancelToken, sessionID domain.SessionID, step Step) (*StepOutput, error) {
	log := observability.LoggerFromContext(ctx).With(
		zap.String("session_id", string(sessionID)),
		zap.String("stage", string(step.Stage)),
	)

	if token.Cancelled() {
		return nil, nil
	}

	pause, model := r.pacing.StepPause, r.model
	if step.Fast {
		pause, model = r.pacing.FastPause, r.fastModel
	}
	if err := r.wait(ctx, token, pause); err != nil {
		if errors.Is(err, ErrStopped) {
			return nil, nil
		}
		return nil, err
	}
	if token.Cancelled() {
		return nil, nil
	}

	start := time.Now()
	res, err := r.llm.Complete(ctx, domain.CompletionRequest{
		Model:       model,
		Instruction: step.Instruction,
	})

	if token.Cancelled() {
		log.Info("stage result discarded after stop")
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if herr := r.errs.Handle(ctx, sessionID, fmt.Errorf("stage %s: %w", step.Stage, err)); herr != nil {
			return nil, herr
		}
		return nil, nil
	}

	out := decodeStep(res, step.Structured)
	log.Info("stage completed", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	msg := newMessage(step.Stage, out.Text)
	msg.EchoText = out.EchoText
	msg.ReaderNotes = out.ReaderNotes
	msg.CoCreationPrompt = out.CoCreationPrompt
	msg.GroundingSources = out.GroundingSources
	appendMessage(ctx, r.sink, sessionID, msg)

	return out, nil
}

func decodeStep(res domain.Completion, structured bool) *StepOutput {
	if structured {
		if obj, ok := extract.Extract(res.Text); ok {
			out := &StepOutput{
				Text:             extract.Sanitize(obj.String("responseToUser")),
				EchoText:         extract.Sanitize(obj.String("echoText")),
				ReaderNotes:      extract.Sanitize(obj.String("readerNotes")),
				CoCreationPrompt: extract.Sanitize(obj.String("coCreationPrompt")),
				GroundingSources: res.GroundingSources,
			}
			if out.Text == "" {
				out.Text = out.EchoText
			}
			if out.Text == "" {
				out.Text = failedManifestationText
			}
			return out
		}
	}

	text := extract.Sanitize(res.Text)
	if text == "" {
		text = emptyManifestationText
	}
	return &StepOutput{Text: text, GroundingSources: res.GroundingSources}
}
