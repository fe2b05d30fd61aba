package httpadapter

import (
	"time"

	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/app/archive"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

type fileRequest struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType" binding:"required"`
	Data     []byte `json:"data" binding:"required"` // base64
}

type submitRequest struct {
	Prompt string       `json:"prompt" binding:"required"`
	Style  string       `json:"style"`
	File   *fileRequest `json:"file,omitempty"`
}

type editRequest struct {
	Text       string `json:"text" binding:"required"`
	Regenerate bool   `json:"regenerate"`
}

type credentialRequest struct {
	Key string `json:"key" binding:"required"`
}

type settingsRequest struct {
	Awakened *bool `json:"awakened,omitempty"`
	FastMode *bool `json:"fastMode,omitempty"`
}

type messageResponse struct {
	ID               string                   `json:"id"`
	Sender           string                   `json:"sender"`
	Label            string                   `json:"label"`
	Internal         bool                     `json:"internal"`
	Text             string                   `json:"text"`
	CreatedAt        time.Time                `json:"timestamp"`
	EchoText         string                   `json:"echoText,omitempty"`
	ReaderNotes      string                   `json:"readerNotes,omitempty"`
	CoCreationPrompt string                   `json:"coCreationPrompt,omitempty"`
	GroundingSources []domain.GroundingSource `json:"groundingSources,omitempty"`
	Media            []domain.MediaRef        `json:"media,omitempty"`
	AttachmentName   string                   `json:"attachmentName,omitempty"`
}

type sessionResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	UpdatedAt time.Time         `json:"lastUpdated"`
	Messages  []messageResponse `json:"messages"`
}

type outcomeResponse struct {
	State     agentflow.State `json:"state"`
	Engine    string          `json:"engine,omitempty"`
	Stopped   bool            `json:"stopped"`
	Recovered bool            `json:"recovered"`
	Error     string          `json:"error,omitempty"`
}

type runResponse struct {
	SessionID string           `json:"sessionId"`
	Message   messageResponse  `json:"message"`
	Outcome   *outcomeResponse `json:"outcome,omitempty"`
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:               string(m.ID),
		Sender:           string(m.Sender),
		Label:            archive.Label(m.Sender),
		Internal:         m.Sender.Internal(),
		Text:             m.Text,
		CreatedAt:        m.CreatedAt,
		EchoText:         m.EchoText,
		ReaderNotes:      m.ReaderNotes,
		CoCreationPrompt: m.CoCreationPrompt,
		GroundingSources: m.GroundingSources,
		Media:            m.Media,
		AttachmentName:   m.AttachmentName,
	}
}

func toSessionResponse(s *domain.Session) sessionResponse {
	msgs := make([]messageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, toMessageResponse(m))
	}
	return sessionResponse{
		ID:        string(s.ID),
		Title:     s.Title,
		UpdatedAt: s.UpdatedAt,
		Messages:  msgs,
	}
}

func toOutcomeResponse(o *agentflow.Outcome) *outcomeResponse {
	if o == nil {
		return nil
	}
	out := &outcomeResponse{
		State:     o.State,
		Engine:    string(o.Engine),
		Stopped:   o.Stopped,
		Recovered: o.Recovered,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}
