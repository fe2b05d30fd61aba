package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/ryokai-gateway/internal/adapters/storage/memory"
	"github.com/PabloGalante/ryokai-gateway/internal/app/agentflow"
	"github.com/PabloGalante/ryokai-gateway/internal/domain"
)

func startTestRun(t *testing.T) (*Service, run) {
	t.Helper()
	svc, err := Open(context.Background(), memory.NewStore(), nil, Options{InitialCredential: "test-key-1234567890"})
	require.NoError(t, err)

	require.True(t, svc.inflight.TryAcquire(1))
	svc.mu.Lock()
	r := svc.startLocked(svc.activeID, "prompt", nil, domain.StyleGentle)
	svc.mu.Unlock()
	return svc, r
}

func TestRunSinkDropsMessagesAfterStop(t *testing.T) {
	ctx := context.Background()
	svc, r := startTestRun(t)
	sink := &runSink{svc: svc, run: r}

	require.NoError(t, sink.Append(ctx, r.sub.SessionID, newNotice("before", svc.now())))

	stopped, err := svc.Stop(ctx)
	require.NoError(t, err)
	require.True(t, stopped)

	err = sink.Append(ctx, r.sub.SessionID, newNotice("late reply", svc.now()))
	assert.ErrorIs(t, err, agentflow.ErrStopped)

	msgs := svc.ActiveSession().Messages
	assert.Equal(t, "before", msgs[len(msgs)-2].Text)
	assert.Equal(t, stoppedText, msgs[len(msgs)-1].Text)
}

func TestRunSinkDropsMessagesAfterReset(t *testing.T) {
	ctx := context.Background()
	svc, r := startTestRun(t)
	sink := &runSink{svc: svc, run: r}

	require.NoError(t, svc.DeleteSession(ctx, r.sub.SessionID))
	assert.False(t, svc.Settings().Busy)

	err := sink.Append(ctx, svc.ActiveSession().ID, newNotice("late", svc.now()))
	assert.ErrorIs(t, err, agentflow.ErrStopped)
	assert.Len(t, svc.ActiveSession().Messages, 1)
}

func TestRunReleaseIsIdempotent(t *testing.T) {
	svc, r := startTestRun(t)

	_, err := svc.Stop(context.Background())
	require.NoError(t, err)
	svc.finish(r)
	r.release()

	// exactly one slot is free again
	require.True(t, svc.inflight.TryAcquire(1))
	assert.False(t, svc.inflight.TryAcquire(1))
	svc.inflight.Release(1)
}
