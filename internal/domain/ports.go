package domain

import "context"

// CompletionRequest is a single call to the completion API.
type CompletionRequest struct {
	// Model overrides the backend default when set.
	Model       string
	Instruction string
	Attachment  *Attachment
	// Grounding enables the search tool so citations are returned.
	Grounding bool
}

// Completion is the generated text plus optional citations.
type Completion struct {
	Text             string
	GroundingSources []GroundingSource
}

// CompletionClient issues completion calls.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// VideoJob is a submitted video generation operation.
type VideoJob interface {
	// Poll refreshes the operation. When done is true, ref carries the result.
	Poll(ctx context.Context) (done bool, ref *MediaRef, err error)
}

// MediaGenerator covers the image and video generation boundary.
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*MediaRef, error)
	StartVideo(ctx context.Context, prompt string, image *Attachment) (VideoJob, error)
}

// Backend is everything the pipeline needs from the model provider.
type Backend interface {
	CompletionClient
	MediaGenerator
}

// BackendFactory builds a Backend bound to an explicit credential.
type BackendFactory interface {
	Connect(ctx context.Context, credential string) (Backend, error)
}

// CredentialForgetter is implemented by factories that cache per-credential
// clients. Forget drops whatever is held for a rejected credential.
type CredentialForgetter interface {
	Forget(credential string)
}

// KVStore persists opaque values under fixed keys.
type KVStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
}
