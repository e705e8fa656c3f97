package llm

import (
	"context"
	"errors"
	"log"
	"time"
)

type Middleware func(next Client) Client

// Chain wraps base so that the first middleware is the outermost.
func Chain(base Client, middlewares ...Middleware) Client {
	c := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		c = middlewares[i](c)
	}
	return c
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// WithRetry retries up to maxAttempts with exponential backoff from baseDelay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			var last error
			for i := 0; i < maxAttempts; i++ {
				resp, err := next.Complete(ctx, prompt, maxTokens)
				if err == nil {
					return resp, nil
				}

				var pErr *PermanentError
				if errors.As(err, &pErr) {
					return "", err
				}
				last = err

				if i == maxAttempts-1 {
					break
				}

				log.Printf("[WARN] Model call attempt %d/%d failed: %v", i+1, maxAttempts, err)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(baseDelay * time.Duration(1<<i)):
				}
			}
			return "", last
		})
	}
}

// WithTimeout bounds every call that passes through it.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			if timeout <= 0 {
				return next.Complete(ctx, prompt, maxTokens)
			}
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next.Complete(callCtx, prompt, maxTokens)
		})
	}
}

func WithLogging(name string) Middleware {
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			start := time.Now()
			log.Printf("[INFO] Calling model %s (prompt: %d chars, max tokens: %d)", name, len(prompt), maxTokens)

			resp, err := next.Complete(ctx, prompt, maxTokens)
			if err != nil {
				log.Printf("[ERROR] Model %s failed after %s: %v", name, time.Since(start), err)
				return "", err
			}

			log.Printf("[INFO] Model %s responded in %s (%d chars)", name, time.Since(start), len(resp))
			return resp, nil
		})
	}
}
