package usecase

import (
	"context"
	"iter"
	"strings"
	"time"

	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/domain/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Orchestrator struct {
	limiter      repository.RateLimiter
	cache        repository.ResponseCache
	classifier   *Classifier
	retriever    *Retriever
	upstream     *UpstreamClient
	profile      Profile
	historyTurns int
	flights      singleflight.Group
	now          func() time.Time
	log          *zap.Logger
}

func NewOrchestrator(
	limiter repository.RateLimiter,
	cache repository.ResponseCache,
	classifier *Classifier,
	retriever *Retriever,
	upstream *UpstreamClient,
	profile Profile,
	historyTurns int,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		limiter:      limiter,
		cache:        cache,
		classifier:   classifier,
		retriever:    retriever,
		upstream:     upstream,
		profile:      profile,
		historyTurns: historyTurns,
		now:          time.Now,
		log:          log.Named("pipeline"),
	}
}

// Execute answers a request with a single buffered text.
func (u *Orchestrator) Execute(ctx context.Context, req entity.ChatRequest) (*entity.ChatResponse, error) {
	key, err := u.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	if text, ok := u.cache.Get(key); ok {
		u.log.Info("cache hit", zap.String("client", req.ClientID))
		return &entity.ChatResponse{Text: text, Cached: true}, nil
	}
	u.log.Info("cache miss, calling upstream", zap.String("client", req.ClientID))

	// Identical questions in flight share one upstream call. The cache is
	// written inside the flight, before any waiter gets the answer.
	v, err, shared := u.flights.Do(key, func() (any, error) {
		prompt := u.assemble(ctx, req)
		text, err := u.upstream.Call(ctx, prompt)
		if err != nil {
			return nil, err
		}
		u.cache.Put(key, text)
		return &entity.ChatResponse{Text: text, Intent: prompt.Intent}, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		u.log.Debug("joined in-flight upstream call", zap.String("client", req.ClientID))
	}
	resp := *v.(*entity.ChatResponse)
	return &resp, nil
}

// AnswerStream is an answer delivered chunk by chunk. Nothing upstream
// happens until Chunks is ranged over.
type AnswerStream struct {
	Cached  bool
	produce func(ctx context.Context) iter.Seq[string]
}

func (s *AnswerStream) Chunks(ctx context.Context) iter.Seq[string] {
	return s.produce(ctx)
}

// ExecuteStream runs the admission checks and the cache lookup eagerly so
// that their errors surface before the response starts.
func (u *Orchestrator) ExecuteStream(ctx context.Context, req entity.ChatRequest) (*AnswerStream, error) {
	key, err := u.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	if text, ok := u.cache.Get(key); ok {
		u.log.Info("cache hit", zap.String("client", req.ClientID), zap.Bool("stream", true))
		return &AnswerStream{
			Cached: true,
			produce: func(context.Context) iter.Seq[string] {
				return func(yield func(string) bool) { yield(text) }
			},
		}, nil
	}
	u.log.Info("cache miss, streaming from upstream", zap.String("client", req.ClientID))

	return &AnswerStream{
		produce: func(ctx context.Context) iter.Seq[string] {
			return func(yield func(string) bool) {
				prompt := u.assemble(ctx, req)
				store := func(text string) { u.cache.Put(key, text) }
				for chunk := range u.upstream.Stream(ctx, prompt, store) {
					if !yield(chunk) {
						return
					}
				}
			}
		},
	}, nil
}

// admit runs the checks every request must pass and returns the cache key.
func (u *Orchestrator) admit(ctx context.Context, req entity.ChatRequest) (string, error) {
	if !u.limiter.Admit(ctx, req.ClientID, u.now()) {
		return "", entity.ErrRateLimitExceeded
	}
	if u.upstream.Size() == 0 {
		return "", entity.ErrNoCredentials
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", entity.ErrInvalidRequest
	}
	return entity.NormalizeKey(req.Prompt), nil
}

func (u *Orchestrator) assemble(ctx context.Context, req entity.ChatRequest) entity.Prompt {
	prompt := entity.Prompt{
		Intent:   u.classifier.Classify(req.Prompt),
		History:  recentTurns(req.History, u.historyTurns),
		Question: strings.TrimSpace(req.Prompt),
	}
	if prompt.Intent == entity.IntentSocial {
		prompt.System = u.profile.SocialInstruction
		return prompt
	}

	prompt.System = u.profile.DomainInstruction
	if snippets, ok := u.retriever.Search(ctx, req.Prompt); ok {
		prompt.Context = snippets
	}
	u.log.Debug("prompt assembled",
		zap.Stringer("intent", prompt.Intent),
		zap.Bool("with_context", prompt.Context != ""),
		zap.Int("history", len(prompt.History)),
	)
	return prompt
}

func recentTurns(history []entity.Turn, n int) []entity.Turn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]entity.Turn, len(history))
	copy(out, history)
	return out
}
