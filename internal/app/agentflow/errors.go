package agentflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

// ApologyText is appended for every failure recovered inside a session.
const ApologyText = "The connection with the Dharma realm was disturbed. Please try again."

// ErrorHandler is the single escalation point for failures caught while a
// submission runs.
type ErrorHandler struct {
	sink MessageSink
}

func NewErrorHandler(sink MessageSink) *ErrorHandler {
	return &ErrorHandler{sink: sink}
}

// Handle returns credential errors unchanged so the caller can ask for a new
// key. Anything else is recorded as one apology message and swallowed.
func (h *ErrorHandler) Handle(ctx context.Context, sessionID domain.SessionID, err error) error {
	if err == nil {
		return nil
	}
	log := observability.LoggerFromContext(ctx).With(zap.String("session_id", string(sessionID)))

	if domain.IsCredentialError(err) {
		log.Warn("credential rejected by backend", zap.Error(err))
		if errors.Is(err, domain.ErrCredential) {
			return err
		}
		return errors.Join(domain.ErrCredential, err)
	}

	log.Error("recovered pipeline failure", zap.Error(err))
	appendMessage(ctx, h.sink, sessionID, newMessage(domain.SenderSupervisor, ApologyText))
	return nil
}
