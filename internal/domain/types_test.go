package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

func TestParseEngine(t *testing.T) {
	for in, want := range map[string]domain.Engine{
		"GARBHA":  domain.EngineGarbha,
		" vajra ": domain.EngineVajra,
		"Video":   domain.EngineVideo,
		"image":   domain.EngineImage,
	} {
		got, ok := domain.ParseEngine(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := domain.ParseEngine("ORACLE")
	assert.False(t, ok)
	assert.False(t, got.MultiStage())
	assert.False(t, got.Media())

	assert.True(t, domain.EngineGarbha.MultiStage())
	assert.True(t, domain.EngineImage.Media())
}

func TestParseStyle(t *testing.T) {
	assert.Equal(t, domain.StyleZen, domain.ParseStyle("zen"))
	assert.Equal(t, domain.StyleStrict, domain.ParseStyle(" STRICT"))
	assert.Equal(t, domain.StyleGentle, domain.ParseStyle(""))
	assert.Equal(t, domain.StyleGentle, domain.ParseStyle("loud"))
}

func TestSenderClassification(t *testing.T) {
	assert.True(t, domain.SenderManas.Internal())
	assert.True(t, domain.SenderSupervisor.Internal())
	assert.False(t, domain.SenderTathagata.Internal())
	assert.False(t, domain.SenderPartner.Internal())

	assert.True(t, domain.SenderVeo.Valid())
	assert.False(t, domain.Sender("stranger").Valid())
}

func TestSessionIndexOfAndClone(t *testing.T) {
	s := &domain.Session{ID: "s", Messages: []*domain.Message{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, s.IndexOf("b"))
	assert.Equal(t, -1, s.IndexOf("z"))

	c := s.Clone()
	c.Messages = append(c.Messages[:1], &domain.Message{ID: "x"})
	assert.Equal(t, domain.MessageID("b"), s.Messages[1].ID)
}

func TestIsCredentialError(t *testing.T) {
	assert.True(t, domain.IsCredentialError(errors.New("googleapi: Error 401")))
	assert.True(t, domain.IsCredentialError(errors.New("API key not valid. Please pass a valid API key.")))
	assert.True(t, domain.IsCredentialError(fmt.Errorf("wrapped: %w", domain.ErrCredential)))
	assert.False(t, domain.IsCredentialError(errors.New("503 unavailable")))
	assert.False(t, domain.IsCredentialError(nil))
}
