package agentflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// MessageSink receives every message a submission produces, addressed to the
// session the submission started in.
type MessageSink interface {
	Append(ctx context.Context, sessionID domain.SessionID, msg *domain.Message) error
}

func newMessage(sender domain.Sender, text string) *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// appendMessage logs sink failures; a lost message never aborts the chain.
func appendMessage(ctx context.Context, sink MessageSink, sessionID domain.SessionID, msg *domain.Message) {
	if err := sink.Append(ctx, sessionID, msg); err != nil {
		observability.LoggerFromContext(ctx).Warn("message not persisted",
			zap.String("session_id", string(sessionID)),
			zap.String("sender", string(msg.Sender)),
			zap.Error(err))
	}
}
