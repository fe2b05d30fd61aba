package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

type fakeMedia struct {
	image    *domain.MediaRef
	imageErr error

	startErr  error
	pollsLeft int
	video     *domain.MediaRef
	polls     int
	lastImage *domain.Attachment
}

func (f *fakeMedia) GenerateImage(context.Context, string) (*domain.MediaRef, error) {
	return f.image, f.imageErr
}

func (f *fakeMedia) StartVideo(_ context.Context, _ string, image *domain.Attachment) (domain.VideoJob, error) {
	f.lastImage = image
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f, nil
}

func (f *fakeMedia) Poll(context.Context) (bool, *domain.MediaRef, error) {
	f.polls++
	if f.pollsLeft > 1 {
		f.pollsLeft--
		return false, nil, nil
	}
	return true, f.video, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestImageTool(t *testing.T) {
	media := &fakeMedia{image: &domain.MediaRef{MIMEType: "image/png", Data: []byte("png")}}
	ref, err := NewImageTool(media).Manifest(context.Background(), ToolContext{}, Input{Prompt: "lotus"})
	require.NoError(t, err)
	assert.Equal(t, domain.MediaImage, ref.Kind)

	media = &fakeMedia{image: &domain.MediaRef{}}
	_, err = NewImageTool(media).Manifest(context.Background(), ToolContext{}, Input{Prompt: "lotus"})
	assert.Error(t, err)

	media = &fakeMedia{imageErr: errors.New("quota")}
	_, err = NewImageTool(media).Manifest(context.Background(), ToolContext{}, Input{Prompt: "lotus"})
	assert.ErrorContains(t, err, "quota")
}

func TestVideoToolPollsUntilDone(t *testing.T) {
	media := &fakeMedia{pollsLeft: 3, video: &domain.MediaRef{URI: "https://example.test/v.mp4"}}
	var slept []time.Duration
	tool := NewVideoTool(media, 10*time.Second, 5, func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	image := &domain.Attachment{MIMEType: "image/jpeg", Data: []byte{1}}
	ref, err := tool.Manifest(context.Background(), ToolContext{}, Input{Prompt: "river", Image: image})
	require.NoError(t, err)

	assert.Equal(t, domain.MediaVideo, ref.Kind)
	assert.Equal(t, 3, media.polls)
	assert.Len(t, slept, 3)
	assert.Same(t, image, media.lastImage)
}

func TestVideoToolPollLimit(t *testing.T) {
	media := &fakeMedia{pollsLeft: 100}
	_, err := NewVideoTool(media, time.Second, 2, noSleep).Manifest(context.Background(), ToolContext{}, Input{})
	assert.ErrorIs(t, err, ErrPollLimit)
	assert.Equal(t, 2, media.polls)
}

func TestVideoToolCancellationBetweenPolls(t *testing.T) {
	media := &fakeMedia{pollsLeft: 100}
	calls := 0
	tctx := ToolContext{Cancelled: func() bool {
		calls++
		return calls > 2
	}}

	_, err := NewVideoTool(media, time.Second, 10, noSleep).Manifest(context.Background(), tctx, Input{})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, media.polls)
}
