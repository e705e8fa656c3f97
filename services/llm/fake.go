package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeClient replays scripted completions. Rules are checked in order against the prompt;
// the first rule whose substring matches answers the call.
type FakeClient struct {
	mu      sync.Mutex
	rules   []fakeRule
	prompts []string
	err     error
}

type fakeRule struct {
	contains string
	response string
	err      error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// On registers a canned response for prompts containing substr.
func (f *FakeClient) On(substr, response string) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{contains: substr, response: response})
	return f
}

// OnError registers a failure for prompts containing substr.
func (f *FakeClient) OnError(substr string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{contains: substr, err: err})
	return f
}

// FailAll makes every unmatched call fail with err.
func (f *FakeClient) FailAll(err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

func (f *FakeClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, rule := range f.rules {
		if strings.Contains(prompt, rule.contains) {
			if rule.err != nil {
				return "", rule.err
			}
			return rule.response, nil
		}
	}

	if f.err != nil {
		return "", f.err
	}

	return "", fmt.Errorf("fake client has no response for prompt: %.80s", prompt)
}

func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *FakeClient) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}
