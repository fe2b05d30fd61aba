package agentflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

func newRunner(backend *fakeBackend, sink *recordingSink, waits *waitRecorder) *agentflow.StepRunner {
	return agentflow.NewStepRunner(backend, sink, agentflow.NewErrorHandler(sink), "step", "fast",
		agentflow.Pacing{StepPause: time.Second, FastPause: 10 * time.Millisecond}, waits.wait)
}

func TestStepRunnerPersistsPlainText(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: "**「空」**を観る"}, nil
	}}
	sink := &recordingSink{}
	waits := &waitRecorder{}

	out, err := newRunner(backend, sink, waits).Run(context.Background(), agentflow.NewCancelToken(), "s1", agentflow.Step{
		Stage:       domain.SenderMythos,
		Instruction: "spark",
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, "「空」を観る", out.Text)
	assert.Equal(t, []domain.Sender{domain.SenderMythos}, sink.senders())
	assert.Equal(t, []time.Duration{time.Second}, waits.waits)
	assert.Equal(t, "step", backend.requests[0].Model)
	assert.False(t, backend.requests[0].Grounding)
}

func TestStepRunnerStructuredFlag(t *testing.T) {
	raw := `{"responseToUser":"","echoText":"only echo","readerNotes":"rn"}`
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: raw}, nil
	}}

	sink := &recordingSink{}
	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderTathagata, Structured: true})
	require.NoError(t, err)
	assert.Equal(t, "only echo", out.Text)
	assert.Equal(t, "rn", sink.last().ReaderNotes)

	// without the flag the same text is kept verbatim
	sink = &recordingSink{}
	out, err = newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderTathagata})
	require.NoError(t, err)
	assert.Equal(t, raw, out.Text)
	assert.Empty(t, sink.last().ReaderNotes)
}

func TestStepRunnerEmptyCompletion(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: "  "}, nil
	}}
	sink := &recordingSink{}

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, out.Text, sink.last().Text)
}

func TestStepRunnerFastMode(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: "ok"}, nil
	}}
	waits := &waitRecorder{}

	_, err := newRunner(backend, &recordingSink{}, waits).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderAlaya, Fast: true})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, waits.waits)
	assert.Equal(t, "fast", backend.requests[0].Model)
}

func TestStepRunnerSkipsWhenAlreadyCancelled(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{Text: "ok"}, nil
	}}
	sink := &recordingSink{}
	token := agentflow.NewCancelToken()
	token.Cancel()

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), token, "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, backend.calls())
	assert.Empty(t, sink.senders())
}

func TestStepRunnerDiscardsResultCancelledInFlight(t *testing.T) {
	token := agentflow.NewCancelToken()
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		token.Cancel()
		return domain.Completion{Text: "late answer"}, nil
	}}
	sink := &recordingSink{}

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), token, "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, backend.calls())
	assert.Empty(t, sink.senders())
}

func TestStepRunnerCancelledFailureIsSilent(t *testing.T) {
	token := agentflow.NewCancelToken()
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		token.Cancel()
		return domain.Completion{}, errors.New("503")
	}}
	sink := &recordingSink{}

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), token, "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, sink.senders())
}

func TestStepRunnerTransientFailureAppendsApology(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{}, errors.New("connection reset by peer")
	}}
	sink := &recordingSink{}

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	assert.NoError(t, err)
	assert.Nil(t, out)
	require.Len(t, sink.senders(), 1)
	assert.Equal(t, domain.SenderSupervisor, sink.last().Sender)
	assert.Equal(t, agentflow.ApologyText, sink.last().Text)
	assert.Equal(t, 1, backend.calls())
}

func TestStepRunnerCredentialFailureIsReturned(t *testing.T) {
	backend := &fakeBackend{respond: func(domain.CompletionRequest) (domain.Completion, error) {
		return domain.Completion{}, errors.New("Error 403: forbidden")
	}}
	sink := &recordingSink{}

	out, err := newRunner(backend, sink, &waitRecorder{}).Run(context.Background(), agentflow.NewCancelToken(), "s1",
		agentflow.Step{Stage: domain.SenderAlaya})
	assert.ErrorIs(t, err, domain.ErrCredential)
	assert.Nil(t, out)
	assert.Empty(t, sink.senders())
}

func TestCancelToken(t *testing.T) {
	token := agentflow.NewCancelToken()
	assert.False(t, token.Cancelled())

	token.Cancel()
	token.Cancel()
	assert.True(t, token.Cancelled())
	select {
	case <-token.Done():
	default:
		t.Fatal("done channel should be closed")
	}

	var nilToken *agentflow.CancelToken
	assert.False(t, nilToken.Cancelled())
}

func TestWait(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, agentflow.Wait(ctx, agentflow.NewCancelToken(), 0))
	assert.NoError(t, agentflow.Wait(ctx, nil, time.Millisecond))

	token := agentflow.NewCancelToken()
	go func() {
		time.Sleep(5 * time.Millisecond)
		token.Cancel()
	}()
	assert.ErrorIs(t, agentflow.Wait(ctx, token, time.Hour), agentflow.ErrStopped)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, agentflow.Wait(cctx, agentflow.NewCancelToken(), time.Hour), context.Canceled)
}
