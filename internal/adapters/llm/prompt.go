package llm

import (
	"google.golang.org/genai"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

// BuildContents turns a completion request into a single user turn: the
// instruction text followed by the inline attachment, if any.
func BuildContents(req domain.CompletionRequest) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment.Data, req.Attachment.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// BuildConfig enables the Google Search tool for grounded requests.
func BuildConfig(req domain.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// GroundingSources collects the web citations of the first candidate.
func GroundingSources(res *genai.GenerateContentResponse) []domain.GroundingSource {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var out []domain.GroundingSource
	seen := make(map[string]bool)
	for _, chunk := range res.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, domain.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

func firstInlineImage(res *genai.GenerateContentResponse) *domain.MediaRef {
	if res == nil {
		return nil
	}
	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &domain.MediaRef{
					Kind:     domain.MediaImage,
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				}
			}
		}
	}
	return nil
}
