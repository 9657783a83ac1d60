package usecase

import (
	"context"
	"iter"
	"sync"
	"time"

	"trafficlaw-gateway/internal/domain/entity"
)

type fakeGenerator struct {
	text string
	err  error

	chunks    []string
	streamErr error
	failAfter int // chunks yielded before streamErr; >= len(chunks) fails at the end

	gate chan struct{}

	mu      sync.Mutex
	calls   int
	prompts []entity.Prompt
}

func (f *fakeGenerator) record(p entity.Prompt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, p)
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) LastPrompt() entity.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeGenerator) Generate(ctx context.Context, p entity.Prompt) (string, error) {
	f.record(p)
	if f.gate != nil {
		<-f.gate
	}
	return f.text, f.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, p entity.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.record(p)
		for i, c := range f.chunks {
			if f.streamErr != nil && i == f.failAfter {
				yield("", f.streamErr)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

func pool(gens ...*fakeGenerator) []Credential {
	out := make([]Credential, len(gens))
	for i, g := range gens {
		out[i] = Credential{Label: MaskCredential(i, "test-key"), Generator: g}
	}
	return out
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeIndex struct {
	hits []entity.Hit
	err  error
	got  []float32
}

func (f *fakeIndex) Search(ctx context.Context, v []float32, k int) ([]entity.Hit, error) {
	f.got = v
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeLimiter struct {
	mu    sync.Mutex
	allow bool
	seen  []string
}

func (f *fakeLimiter) Admit(ctx context.Context, clientID string, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, clientID)
	return f.allow
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (c *mapCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Put(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[key] = text
}

func (c *mapCache) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}
