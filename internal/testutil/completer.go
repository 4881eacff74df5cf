package testutil

import (
	"context"
	"sync"
)

// FakeCompleter is a scripted language-model completer. Each call records
// its prompts and returns the configured reply or error; SleepUntilCtx makes
// the call block until the context is done, for timeout tests.
type FakeCompleter struct {
	Reply         string
	Err           error
	SleepUntilCtx bool

	mu      sync.Mutex
	calls   int
	lastSys string
	lastUsr string
}

// Complete returns the scripted reply.
func (f *FakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSys = systemPrompt
	f.lastUsr = userPrompt
	f.mu.Unlock()

	if f.SleepUntilCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// Calls returns the number of Complete invocations.
func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastPrompts returns the system and user prompts of the most recent call.
func (f *FakeCompleter) LastPrompts() (system, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSys, f.lastUsr
}
