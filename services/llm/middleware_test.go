package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingClient(failures int, err error) (Client, *int) {
	calls := 0
	return ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		calls++
		if calls <= failures {
			return "", err
		}
		return "ok", nil
	}), &calls
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		err       error
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{name: "succeeds first time", failures: 0, err: errors.New("boom"), attempts: 3, wantCalls: 1},
		{name: "recovers after transient failures", failures: 2, err: errors.New("boom"), attempts: 3, wantCalls: 3},
		{name: "gives up after max attempts", failures: 5, err: errors.New("boom"), attempts: 3, wantErr: true, wantCalls: 3},
		{name: "permanent error is not retried", failures: 5, err: Permanent(errors.New("bad request")), attempts: 3, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base, calls := countingClient(tt.failures, tt.err)
			client := WithRetry(tt.attempts, time.Millisecond)(base)

			resp, err := client.Complete(context.Background(), "prompt", 10)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "ok", resp)
			}
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	base, calls := countingClient(10, errors.New("unavailable"))
	client := WithRetry(5, time.Hour)(base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "prompt", 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	slow := ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})

	_, err := WithTimeout(10 * time.Millisecond)(slow).Complete(context.Background(), "prompt", 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			return ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
				order = append(order, name)
				return next.Complete(ctx, prompt, maxTokens)
			})
		}
	}
	base := ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		order = append(order, "base")
		return "done", nil
	})

	_, err := Chain(base, tag("outer"), tag("inner")).Complete(context.Background(), "p", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewClient(ClientConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")

	_, err = NewClient(ClientConfig{Provider: "openai", ModelName: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an API key")
}

func TestFakeClient(t *testing.T) {
	t.Parallel()

	fake := NewFakeClient().
		On("relevant", `{"isRelevant": true}`).
		OnError("evaluate", errors.New("offline"))

	resp, err := fake.Complete(context.Background(), "is this relevant?", 10)
	require.NoError(t, err)
	assert.Equal(t, `{"isRelevant": true}`, resp)

	_, err = fake.Complete(context.Background(), "please evaluate", 10)
	require.EqualError(t, err, "offline")

	_, err = fake.Complete(context.Background(), "unscripted", 10)
	require.Error(t, err)

	assert.Equal(t, 3, fake.Calls())
}
