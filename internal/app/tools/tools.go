package tools

import (
	"context"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	SessionID domain.SessionID
	RequestID string

	// Cancelled reports whether the owning submission was stopped. Tools check
	// it between suspension points; it may be nil.
	Cancelled func() bool
}

func (t ToolContext) cancelled() bool {
	return t.Cancelled != nil && t.Cancelled()
}

// Input is what the media chain hands to a tool.
type Input struct {
	Prompt string
	Image  *domain.Attachment
}

// Tool produces one piece of media for the media chain.
type Tool interface {
	Name() string
	Manifest(ctx context.Context, tctx ToolContext, in Input) (*domain.MediaRef, error)
}
