// Package archive renders session timelines as plain-text documents.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

const (
	headerRule  = "=========================================="
	messageRule = "------------------------------------------"

	timestampLayout = "2006-01-02 15:04:05"
	timeLayout      = "15:04:05"
)

// SessionSource looks up a session by id.
type SessionSource interface {
	Session(id domain.SessionID) (*domain.Session, error)
}

// Service exports sessions from a SessionSource.
type Service struct {
	source SessionSource
	loc    *time.Location
}

// NewService creates an archive service. Times are rendered in loc, or in
// local time when loc is nil.
func NewService(source SessionSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{source: source, loc: loc}
}

// Export returns the file name and text of the archive for one session.
func (s *Service) Export(ctx context.Context, id domain.SessionID) (string, string, error) {
	sess, err := s.source.Session(id)
	if err != nil {
		return "", "", fmt.Errorf("archive: %w", err)
	}

	doc := Render(sess, s.loc)
	observability.LoggerFromContext(ctx).Info("session exported",
		zap.String("session_id", string(id)),
		zap.Int("messages", len(sess.Messages)))
	return FileName(sess.Title), doc, nil
}

// FileName derives the download name from a session title, joining words
// with underscores.
func FileName(title string) string {
	name := strings.Join(strings.Fields(title), "_")
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return "Ryokai_OS_" + name + ".txt"
}

// Render writes every message of sess once, in timeline order.
func Render(sess *domain.Session, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ryōkai OS Archive: %s\n", sess.Title)
	fmt.Fprintf(&b, "Timestamp: %s\n", sess.UpdatedAt.In(loc).Format(timestampLayout))
	b.WriteString(headerRule + "\n\n")

	for _, msg := range sess.Messages {
		writeMessage(&b, msg, loc)
	}
	return b.String()
}

func writeMessage(b *strings.Builder, msg *domain.Message, loc *time.Location) {
	fmt.Fprintf(b, "[%s] %s:\n%s\n", msg.CreatedAt.In(loc).Format(timeLayout), Label(msg.Sender), msg.Text)

	if msg.AttachmentName != "" {
		fmt.Fprintf(b, "> Attachment: %s\n", msg.AttachmentName)
	}
	if msg.EchoText != "" {
		fmt.Fprintf(b, "> Echo: %s\n", msg.EchoText)
	}
	if msg.ReaderNotes != "" {
		fmt.Fprintf(b, "> Notes: %s\n", msg.ReaderNotes)
	}
	if msg.CoCreationPrompt != "" {
		fmt.Fprintf(b, "> Question: %s\n", msg.CoCreationPrompt)
	}
	for _, src := range msg.GroundingSources {
		fmt.Fprintf(b, "> Source: %s <%s>\n", orURI(src.Title, src.URI), src.URI)
	}
	for _, m := range msg.Media {
		if m.URI != "" {
			fmt.Fprintf(b, "> Media (%s): %s\n", m.Kind, m.URI)
		} else {
			fmt.Fprintf(b, "> Media (%s): inline %s, %d bytes\n", m.Kind, m.MIMEType, len(m.Data))
		}
	}
	b.WriteString("\n" + messageRule + "\n\n")
}

func orURI(title, uri string) string {
	if title == "" {
		return uri
	}
	return title
}
