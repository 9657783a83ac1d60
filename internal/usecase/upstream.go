package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/domain/repository"

	"go.uber.org/zap"
)

// Credential is one entry of the pool: a generator bound to a single API key.
// Label is safe to log.
type Credential struct {
	Label     string
	Generator repository.Generator
}

// Attempt is the outcome of calling the backend with one credential.
type Attempt struct {
	Index int
	Label string
	Text  string
	Err   error
}

func (a Attempt) OK() bool { return a.Err == nil }

// UpstreamClient walks the credential pool in order, one credential at a
// time, until one of them answers.
type UpstreamClient struct {
	pool    []Credential
	apology string
	log     *zap.Logger
}

func NewUpstreamClient(pool []Credential, apology string, log *zap.Logger) *UpstreamClient {
	return &UpstreamClient{
		pool:    pool,
		apology: apology,
		log:     log.Named("upstream"),
	}
}

func (u *UpstreamClient) Size() int { return len(u.pool) }

// Attempts yields one tagged result per credential, in pool order. The
// consumer stops the sequence once it is satisfied.
func (u *UpstreamClient) Attempts(ctx context.Context, prompt entity.Prompt) iter.Seq[Attempt] {
	return func(yield func(Attempt) bool) {
		for i, cred := range u.pool {
			if err := ctx.Err(); err != nil {
				yield(Attempt{Index: i, Label: cred.Label, Err: err})
				return
			}
			text, err := cred.Generator.Generate(ctx, prompt)
			if err == nil && strings.TrimSpace(text) == "" {
				err = entity.ErrEmptyAnswer
			}
			if !yield(Attempt{Index: i, Label: cred.Label, Text: text, Err: err}) {
				return
			}
		}
	}
}

// Call returns the first successful answer. When every credential fails the
// error is an *entity.ExhaustedError wrapping the last failure.
func (u *UpstreamClient) Call(ctx context.Context, prompt entity.Prompt) (string, error) {
	if len(u.pool) == 0 {
		return "", entity.ErrNoCredentials
	}
	var lastErr error
	tried := 0
	for a := range u.Attempts(ctx, prompt) {
		tried++
		if a.OK() {
			if a.Index > 0 {
				u.log.Info("answered after failover", zap.String("credential", a.Label), zap.Int("attempt", a.Index+1))
			}
			return a.Text, nil
		}
		lastErr = a.Err
		u.log.Warn("credential failed, trying next", zap.String("credential", a.Label), zap.Error(a.Err))
	}
	return "", &entity.ExhaustedError{Attempts: tried, Last: lastErr}
}

// Stream yields answer chunks as they arrive. A credential that fails,
// before or during its output, is abandoned and the call restarts on the
// next one; the partial text it produced is dropped from the answer. Chunks
// already yielded to the consumer cannot be taken back, so a consumer that
// writes them out sends the restarted answer after them. onComplete receives the
// full text of the successful attempt exactly once, after its last chunk,
// and is skipped when the consumer stops early or ctx ends. If the pool is
// exhausted a single apology chunk is yielded instead.
func (u *UpstreamClient) Stream(ctx context.Context, prompt entity.Prompt, onComplete func(text string)) iter.Seq[string] {
	return func(yield func(string) bool) {
		var lastErr error
		for i, cred := range u.pool {
			if ctx.Err() != nil {
				return
			}

			var answer strings.Builder
			emitted := 0
			var failed error
			for chunk, err := range cred.Generator.GenerateStream(ctx, prompt) {
				if err != nil {
					failed = err
					break
				}
				if chunk == "" {
					continue
				}
				answer.WriteString(chunk)
				emitted++
				if !yield(chunk) {
					u.log.Info("stream abandoned by caller", zap.String("credential", cred.Label))
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			if failed == nil && strings.TrimSpace(answer.String()) == "" {
				failed = entity.ErrEmptyAnswer
			}
			if failed != nil {
				lastErr = failed
				u.log.Warn("stream attempt failed, trying next",
					zap.String("credential", cred.Label),
					zap.Int("attempt", i+1),
					zap.Int("chunks_discarded", emitted),
					zap.Error(failed),
				)
				continue
			}

			if onComplete != nil {
				onComplete(answer.String())
			}
			return
		}

		u.log.Error("all credentials failed while streaming", zap.Error(&entity.ExhaustedError{Attempts: len(u.pool), Last: lastErr}))
		yield(u.apology)
	}
}

// MaskCredential renders an API key for logs, keeping only its last four
// characters.
func MaskCredential(index int, key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return fmt.Sprintf("key#%d", index+1)
	}
	return fmt.Sprintf("key#%d(...%s)", index+1, key[len(key)-4:])
}

// UpstreamFailure is the client-visible category of an exhausted pool.
type UpstreamFailure int

const (
	FailureGeneric UpstreamFailure = iota
	FailureInvalidKey
	FailureOverloaded
)

// statusMarkers are the ways the Gemini API spells a 429 in error text. A
// bare "429" is not enough: ports and byte counts contain it too.
var statusMarkers = []string{"error 429", "code 429", "status 429", "status code: 429"}

// ClassifyUpstreamFailure matches the last upstream error against known
// signatures of the Gemini API: its HTTP status when the adapter kept one,
// then the error text.
func ClassifyUpstreamFailure(err error) UpstreamFailure {
	if err == nil || !errors.Is(err, entity.ErrUpstreamExhausted) {
		return FailureGeneric
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "API_KEY_INVALID") || strings.Contains(lower, "api key not valid") {
		return FailureInvalidKey
	}

	var statusErr *entity.UpstreamStatusError
	if errors.As(err, &statusErr) &&
		(statusErr.Code == http.StatusTooManyRequests || statusErr.Status == "RESOURCE_EXHAUSTED") {
		return FailureOverloaded
	}

	switch {
	case strings.Contains(lower, "rate limit"),
		strings.Contains(msg, "RESOURCE_EXHAUSTED"),
		strings.Contains(lower, "overloaded"),
		containsAny(lower, statusMarkers):
		return FailureOverloaded
	default:
		return FailureGeneric
	}
}
