package agentflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Wait when the submission's token is cancelled.
var ErrStopped = errors.New("submission stopped")

// CancelToken is owned by exactly one top-level submission. Stages check it
// before dispatch and after the response arrives; it never interrupts a
// network call already in progress.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel is safe to call more than once.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed once the token is cancelled. A nil token never cancels.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// WaitFunc pauses for d unless ctx ends or the token is cancelled first.
type WaitFunc func(ctx context.Context, token *CancelToken, d time.Duration) error

// Wait is the default WaitFunc.
func Wait(ctx context.Context, token *CancelToken, d time.Duration) error {
	if token.Cancelled() {
		return ErrStopped
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return ErrStopped
	}
}
