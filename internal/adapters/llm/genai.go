package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// Models selects the model used for each kind of call.
type Models struct {
	Text  string
	Image string
	Video string
}

// GenAIFactory builds Gemini API clients bound to an explicit credential.
// Clients are reused per credential.
type GenAIFactory struct {
	models Models

	mu      sync.Mutex
	clients map[string]*GenAIClient
}

func NewGenAIFactory(models Models) *GenAIFactory {
	return &GenAIFactory{
		models:  models,
		clients: make(map[string]*GenAIClient),
	}
}

// Connect implements domain.BackendFactory.
func (f *GenAIFactory) Connect(ctx context.Context, credential string) (domain.Backend, error) {
	if credential == "" {
		return nil, domain.ErrNoCredential
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[credential]; ok {
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini API client: %w", err)
	}

	c := &GenAIClient{client: client, models: f.models}
	f.clients[credential] = c
	return c, nil
}

// Forget implements domain.CredentialForgetter.
func (f *GenAIFactory) Forget(credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, credential)
}

// GenAIClient implements domain.Backend on the Gemini API.
type GenAIClient struct {
	client *genai.Client
	models Models
}

// Complete implements domain.CompletionClient.
func (g *GenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	model := req.Model
	if model == "" {
		model = g.models.Text
	}

	res, err := g.client.Models.GenerateContent(ctx, model, BuildContents(req), BuildConfig(req))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("genai generate content: %w", err)
	}

	return domain.Completion{
		Text:             res.Text(),
		GroundingSources: GroundingSources(res),
	}, nil
}

// GenerateImage asks an image capable model for a picture and returns the
// first inline image part.
func (g *GenAIClient) GenerateImage(ctx context.Context, prompt string) (*domain.MediaRef, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	res, err := g.client.Models.GenerateContent(ctx, g.models.Image, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai generate image: %w", err)
	}

	if ref := firstInlineImage(res); ref != nil {
		return ref, nil
	}
	return nil, errors.New("genai generate image: response carried no image")
}

// StartVideo submits a video generation; the returned job is polled by the caller.
func (g *GenAIClient) StartVideo(ctx context.Context, prompt string, image *domain.Attachment) (domain.VideoJob, error) {
	var start *genai.Image
	if image != nil {
		start = &genai.Image{ImageBytes: image.Data, MIMEType: image.MIMEType}
	}

	op, err := g.client.Models.GenerateVideos(ctx, g.models.Video, prompt, start, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("genai generate videos: %w", err)
	}
	return &videoJob{client: g.client, op: op}, nil
}

type videoJob struct {
	client *genai.Client
	op     *genai.GenerateVideosOperation
}

func (j *videoJob) Poll(ctx context.Context) (bool, *domain.MediaRef, error) {
	op, err := j.client.Operations.GetVideosOperation(ctx, j.op, nil)
	if err != nil {
		return false, nil, fmt.Errorf("genai get videos operation: %w", err)
	}
	j.op = op
	if !op.Done {
		return false, nil, nil
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return true, nil, nil
	}
	v := op.Response.GeneratedVideos[0].Video
	return true, &domain.MediaRef{
		Kind:     domain.MediaVideo,
		URI:      v.URI,
		MIMEType: v.MIMEType,
		Data:     v.VideoBytes,
	}, nil
}
