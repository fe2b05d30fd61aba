// Package gateway issues the single classification-and-response call that opens
// every top-level exchange.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/app/extract"
	"github.com/PabloGalante/ryokai-gateway/internal/app/prompts"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

const (
	DefaultMaxAttempts = 2
	DefaultBaseDelay   = time.Second
)

// Fallback texts used when the completion cannot be decoded.
const (
	FallbackAnalysis    = "Reshaping the form of the manifestation..."
	FallbackResponse    = "The manifestation is still taking shape. Compassion has reached you."
	FallbackEcho        = "A resonating echo..."
	FallbackReaderNotes = "A direct message from the Dharma realm."

	DefaultEcho        = "With an echo of loving kindness."
	DefaultReaderNotes = "This dialogue has been engraved in the Dharma realm."
)

type Request struct {
	Prompt         string
	PersonaSummary string
	AwakeningStage string
	Style          domain.Style
	File           *domain.Attachment
	Awakened       bool
}

// Response is the decoded gateway result. It only lives for one exchange.
type Response struct {
	Analysis         string
	ChosenEngine     domain.Engine
	ResponseToUser   string
	EchoText         string
	ReaderNotes      string
	CoCreationPrompt string
	PersonaUpdate    string
	StageUpdate      string
	GroundingSources []domain.GroundingSource

	// Degraded is set when the completion could not be decoded and the
	// fields above hold placeholders.
	Degraded bool
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Client struct {
	llm         domain.CompletionClient
	model       string
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			c.baseDelay = baseDelay
		}
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(llm domain.CompletionClient, opts ...Option) *Client {
	c := &Client{
		llm:         llm,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyAndRespond runs the gateway call with bounded retries. Credential
// failures return immediately wrapping domain.ErrCredential; other failures
// that outlive the retry bound wrap domain.ErrTransient.
func (c *Client) ClassifyAndRespond(ctx context.Context, req Request) (*Response, error) {
	log := observability.LoggerFromContext(ctx).With(zap.String("component", "gateway"))

	creq := domain.CompletionRequest{
		Model: c.model,
		Instruction: prompts.Supervisor(prompts.SupervisorParams{
			PersonaContext: req.PersonaSummary,
			AwakeningStage: req.AwakeningStage,
			Style:          req.Style,
			UserPrompt:     req.Prompt,
			Awakened:       req.Awakened,
		}),
		Attachment: req.File,
		Grounding:  true,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		start := time.Now()
		completion, err := c.llm.Complete(ctx, creq)
		if err == nil {
			log.Info("gateway call succeeded",
				zap.Int("attempt", attempt+1),
				zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			return decode(completion), nil
		}

		lastErr = err
		if domain.IsCredentialError(err) {
			log.Warn("gateway credential failure", zap.Error(err))
			return nil, fmt.Errorf("gateway: %w: %w", domain.ErrCredential, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gateway: %w", ctx.Err())
		}

		log.Warn("gateway call failed", zap.Int("attempt", attempt+1), zap.Error(err))
		if attempt < c.maxAttempts-1 {
			if err := c.sleep(ctx, c.baseDelay*time.Duration(1<<attempt)); err != nil {
				return nil, fmt.Errorf("gateway: %w", err)
			}
		}
	}

	return nil, fmt.Errorf("gateway: %w after %d attempts: %w", domain.ErrTransient, c.maxAttempts, lastErr)
}

func decode(c domain.Completion) *Response {
	parsed, ok := extract.Extract(c.Text)
	if !ok || parsed.String("responseToUser") == "" {
		text := extract.Sanitize(c.Text)
		if text == "" {
			text = FallbackResponse
		}
		return &Response{
			Analysis:         FallbackAnalysis,
			ChosenEngine:     domain.EngineGarbha,
			ResponseToUser:   text,
			EchoText:         FallbackEcho,
			ReaderNotes:      FallbackReaderNotes,
			GroundingSources: c.GroundingSources,
			Degraded:         true,
		}
	}

	engine, _ := domain.ParseEngine(parsed.String("chosenEngine"))
	return &Response{
		Analysis:         parsed.String("analysis"),
		ChosenEngine:     engine,
		ResponseToUser:   extract.Sanitize(parsed.String("responseToUser")),
		EchoText:         extract.Sanitize(orDefault(parsed.String("echoText"), DefaultEcho)),
		ReaderNotes:      extract.Sanitize(orDefault(parsed.String("readerNotes"), DefaultReaderNotes)),
		CoCreationPrompt: extract.Sanitize(parsed.String("coCreationPrompt")),
		PersonaUpdate:    parsed.Text("personaUpdate"),
		StageUpdate:      parsed.Text("stageUpdate"),
		GroundingSources: c.GroundingSources,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Sleep waits for d unless ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
