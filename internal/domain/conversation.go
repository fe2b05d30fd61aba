package domain

// GroundingSource is a citation attached to a completion that used search.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaRef points at generated media, either by URI or as inline bytes.
type MediaRef struct {
	Kind     MediaKind `json:"kind"`
	URI      string    `json:"uri,omitempty"`
	MIMEType string    `json:"mime_type,omitempty"`
	Data     []byte    `json:"data,omitempty"`
}

// Attachment is a user supplied file sent inline with a completion request.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Message is one entry of a session timeline. Once appended it only changes
// through an explicit user edit.
type Message struct {
	ID        MessageID `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"timestamp"`

	EchoText         string            `json:"echoText,omitempty"`
	ReaderNotes      string            `json:"readerNotes,omitempty"`
	CoCreationPrompt string            `json:"coCreationPrompt,omitempty"`
	GroundingSources []GroundingSource `json:"groundingSources,omitempty"`
	Media            []MediaRef        `json:"media,omitempty"`
	AttachmentName   string            `json:"attachmentName,omitempty"`
}

// Session is an ordered thread of messages.
type Session struct {
	ID        SessionID  `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	UpdatedAt Timestamp  `json:"lastUpdated"`
}

// IndexOf returns the position of the message with the given id, or -1.
func (s *Session) IndexOf(id MessageID) int {
	for i, m := range s.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Clone copies the session and its message slice. Messages are shared since they
// are not mutated in place.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = append([]*Message(nil), s.Messages...)
	return &out
}
