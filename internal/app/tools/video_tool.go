package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// ErrCancelled is returned when the submission is stopped while a tool waits.
var ErrCancelled = errors.New("tool cancelled")

// ErrPollLimit is returned when a video operation does not finish in time.
var ErrPollLimit = errors.New("video operation did not complete")

// VideoTool submits a generation and polls it on a fixed interval.
type VideoTool struct {
	media    domain.MediaGenerator
	interval time.Duration
	maxPolls int
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewVideoTool(media domain.MediaGenerator, interval time.Duration, maxPolls int, sleep func(ctx context.Context, d time.Duration) error) *VideoTool {
	if maxPolls <= 0 {
		maxPolls = 1
	}
	return &VideoTool{
		media:    media,
		interval: interval,
		maxPolls: maxPolls,
		sleep:    sleep,
	}
}

func (t *VideoTool) Name() string {
	return "veo_engine"
}

func (t *VideoTool) Manifest(ctx context.Context, tctx ToolContext, in Input) (*domain.MediaRef, error) {
	if tctx.cancelled() {
		return nil, ErrCancelled
	}

	job, err := t.media.StartVideo(ctx, in.Prompt, in.Image)
	if err != nil {
		return nil, fmt.Errorf("veo_engine: submit: %w", err)
	}

	for poll := 0; poll < t.maxPolls; poll++ {
		if err := t.sleep(ctx, t.interval); err != nil {
			return nil, fmt.Errorf("veo_engine: %w", err)
		}
		if tctx.cancelled() {
			return nil, ErrCancelled
		}

		done, ref, err := job.Poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("veo_engine: poll: %w", err)
		}
		if !done {
			continue
		}
		if ref == nil || (ref.URI == "" && len(ref.Data) == 0) {
			return nil, errors.New("veo_engine: operation finished without a video")
		}
		ref.Kind = domain.MediaVideo
		return ref, nil
	}

	return nil, fmt.Errorf("veo_engine: %w after %d polls", ErrPollLimit, t.maxPolls)
}
