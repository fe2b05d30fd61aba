package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// ImageTool issues one image generation call.
type ImageTool struct {
	media domain.MediaGenerator
}

func NewImageTool(media domain.MediaGenerator) *ImageTool {
	return &ImageTool{media: media}
}

func (t *ImageTool) Name() string {
	return "image_engine"
}

func (t *ImageTool) Manifest(ctx context.Context, tctx ToolContext, in Input) (*domain.MediaRef, error) {
	if tctx.cancelled() {
		return nil, ErrCancelled
	}
	ref, err := t.media.GenerateImage(ctx, in.Prompt)
	if err != nil {
		return nil, fmt.Errorf("image_engine: %w", err)
	}
	if ref == nil || (len(ref.Data) == 0 && ref.URI == "") {
		return nil, errors.New("image_engine: image manifestation failed")
	}
	ref.Kind = domain.MediaImage
	return ref, nil
}
