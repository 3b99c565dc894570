package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musig5344/ocasino/internal/domain"
)

func TestWithRetry_SucceedsBeforeExhausting(t *testing.T) {
	attempts := 0
	h := WithRetry(func(_ context.Context, _ domain.OutboxDraft) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond, nil)

	err := h(context.Background(), domain.OutboxDraft{EventID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetry_PermanentFailureInvokesCallback(t *testing.T) {
	var gotErr error
	var gotEvent domain.OutboxDraft
	called := false

	h := WithRetry(func(_ context.Context, _ domain.OutboxDraft) error {
		return errors.New("permanent")
	}, 3, time.Millisecond, func(_ context.Context, event domain.OutboxDraft, err error) {
		called = true
		gotErr = err
		gotEvent = event
	})

	event := domain.OutboxDraft{EventID: uuid.New()}
	err := h(context.Background(), event)

	require.Error(t, err)
	assert.True(t, called)
	assert.Equal(t, event.EventID, gotEvent.EventID)
	assert.EqualError(t, gotErr, "permanent")
}

func TestWithRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := WithRetry(func(_ context.Context, _ domain.OutboxDraft) error {
		return errors.New("transient")
	}, 5, time.Millisecond, nil)

	err := h(ctx, domain.OutboxDraft{EventID: uuid.New()})
	require.Error(t, err)
}
