package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// onePixelPNG is a transparent 1x1 image.
var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// MockLLM is a deterministic offline backend for local runs and tests. The
// gateway call always picks Engine.
type MockLLM struct {
	Engine domain.Engine

	mu     sync.Mutex
	videos int
}

func NewMockLLM() *MockLLM {
	return &MockLLM{Engine: domain.EngineGarbha}
}

func (m *MockLLM) Complete(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if req.Grounding {
		return m.gatewayReply(req), nil
	}

	summary := firstLine(req.Instruction)
	if strings.Contains(req.Instruction, "JSON") {
		return jsonCompletion(map[string]string{
			"responseToUser": "Tathāgata integrates: " + summary,
			"echoText":       "An echo of the whole chain.",
			"readerNotes":    "Generated offline.",
		}), nil
	}
	return domain.Completion{Text: "[mock] " + summary}, nil
}

func (m *MockLLM) gatewayReply(req domain.CompletionRequest) domain.Completion {
	reply := map[string]string{
		"analysis":         "offline analysis",
		"chosenEngine":     string(m.Engine),
		"responseToUser":   "I hear you. Let us look at this together.",
		"echoText":         "A gentle echo.",
		"readerNotes":      "Offline gateway.",
		"coCreationPrompt": "What would compassion do next?",
		"personaUpdate":    "Explores questions offline.",
		"stageUpdate":      domain.DefaultAwakeningStage,
	}
	if req.Attachment != nil {
		reply["readerNotes"] = fmt.Sprintf("Received %s (%d bytes).", req.Attachment.MIMEType, len(req.Attachment.Data))
	}
	return jsonCompletion(reply)
}

func (m *MockLLM) GenerateImage(context.Context, string) (*domain.MediaRef, error) {
	return &domain.MediaRef{
		Kind:     domain.MediaImage,
		MIMEType: "image/png",
		Data:     append([]byte(nil), onePixelPNG...),
	}, nil
}

func (m *MockLLM) StartVideo(context.Context, string, *domain.Attachment) (domain.VideoJob, error) {
	m.mu.Lock()
	m.videos++
	n := m.videos
	m.mu.Unlock()
	return &mockVideoJob{uri: fmt.Sprintf("mock://video/%d", n)}, nil
}

// mockVideoJob finishes on its second poll.
type mockVideoJob struct {
	polls int
	uri   string
}

func (j *mockVideoJob) Poll(context.Context) (bool, *domain.MediaRef, error) {
	j.polls++
	if j.polls < 2 {
		return false, nil, nil
	}
	return true, &domain.MediaRef{Kind: domain.MediaVideo, URI: j.uri, MIMEType: "video/mp4"}, nil
}

// MockFactory hands out the same MockLLM for any non-empty credential.
type MockFactory struct {
	LLM *MockLLM
}

func NewMockFactory() *MockFactory {
	return &MockFactory{LLM: NewMockLLM()}
}

func (f *MockFactory) Connect(_ context.Context, credential string) (domain.Backend, error) {
	if credential == "" {
		return nil, domain.ErrNoCredential
	}
	return f.LLM, nil
}

func jsonCompletion(v map[string]string) domain.Completion {
	data, _ := json.Marshal(v)
	return domain.Completion{Text: string(data)}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80])
	}
	return s
}
