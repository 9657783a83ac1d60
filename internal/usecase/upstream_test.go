package usecase

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trafficlaw-gateway/internal/domain/entity"
)

const apology = "xin lỗi"

func collect(seq iter.Seq[string]) []string {
	var out []string
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func TestUpstreamCall_FailsOverToFirstWorkingCredential(t *testing.T) {
	bad1 := &fakeGenerator{err: errors.New("API_KEY_INVALID")}
	bad2 := &fakeGenerator{err: errors.New("503 overloaded")}
	good := &fakeGenerator{text: "Phạt 4-6 triệu đồng."}
	unused := &fakeGenerator{text: "never"}
	u := NewUpstreamClient(pool(bad1, bad2, good, unused), apology, zap.NewNop())

	text, err := u.Call(context.Background(), entity.Prompt{Question: "q"})
	require.NoError(t, err)
	require.Equal(t, "Phạt 4-6 triệu đồng.", text)
	require.Equal(t, 1, bad1.Calls())
	require.Equal(t, 1, bad2.Calls())
	require.Equal(t, 1, good.Calls())
	require.Equal(t, 0, unused.Calls())
}

func TestUpstreamCall_ExhaustedCarriesLastError(t *testing.T) {
	last := errors.New("third failure")
	u := NewUpstreamClient(pool(
		&fakeGenerator{err: errors.New("first failure")},
		&fakeGenerator{err: errors.New("second failure")},
		&fakeGenerator{err: last},
	), apology, zap.NewNop())

	_, err := u.Call(context.Background(), entity.Prompt{})
	require.ErrorIs(t, err, entity.ErrUpstreamExhausted)
	require.ErrorIs(t, err, last)

	var exhausted *entity.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
	require.Contains(t, err.Error(), "third failure")
}

func TestUpstreamCall_EmptyAnswerIsAFailedAttempt(t *testing.T) {
	empty := &fakeGenerator{text: "  "}
	good := &fakeGenerator{text: "ok"}
	u := NewUpstreamClient(pool(empty, good), apology, zap.NewNop())

	text, err := u.Call(context.Background(), entity.Prompt{})
	require.NoError(t, err)
	require.Equal(t, "ok", text)
}

func TestUpstreamCall_NoCredentials(t *testing.T) {
	u := NewUpstreamClient(nil, apology, zap.NewNop())
	_, err := u.Call(context.Background(), entity.Prompt{})
	require.ErrorIs(t, err, entity.ErrNoCredentials)
}

func TestUpstreamAttempts_ConsumerControlsContinuation(t *testing.T) {
	first := &fakeGenerator{err: errors.New("boom")}
	second := &fakeGenerator{text: "answer"}
	u := NewUpstreamClient(pool(first, second), apology, zap.NewNop())

	var seen []Attempt
	for a := range u.Attempts(context.Background(), entity.Prompt{}) {
		seen = append(seen, a)
		break
	}
	require.Len(t, seen, 1)
	require.False(t, seen[0].OK())
	require.Equal(t, 0, seen[0].Index)
	require.Equal(t, 0, second.Calls())
}

func TestUpstreamAttempts_StopsOnCancelledContext(t *testing.T) {
	gen := &fakeGenerator{text: "answer"}
	u := NewUpstreamClient(pool(gen), apology, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Call(ctx, entity.Prompt{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, gen.Calls())
}

func TestUpstreamStream_FailoverBeforeFirstChunk(t *testing.T) {
	first := &fakeGenerator{chunks: []string{"never"}, streamErr: errors.New("429 rate limit"), failAfter: 0}
	second := &fakeGenerator{chunks: []string{"Vượt đèn đỏ ", "bị phạt ", "4-6 triệu."}}
	u := NewUpstreamClient(pool(first, second), apology, zap.NewNop())

	var completed []string
	chunks := collect(u.Stream(context.Background(), entity.Prompt{}, func(text string) {
		completed = append(completed, text)
	}))

	require.Equal(t, []string{"Vượt đèn đỏ ", "bị phạt ", "4-6 triệu."}, chunks)
	require.Equal(t, []string{"Vượt đèn đỏ bị phạt 4-6 triệu."}, completed)
}

func TestUpstreamStream_MidStreamFailureRestartsOnNextCredential(t *testing.T) {
	first := &fakeGenerator{chunks: []string{"partial ", "never"}, streamErr: errors.New("connection reset"), failAfter: 1}
	second := &fakeGenerator{chunks: []string{"full ", "answer"}}
	u := NewUpstreamClient(pool(first, second), apology, zap.NewNop())

	var completed []string
	chunks := collect(u.Stream(context.Background(), entity.Prompt{}, func(text string) {
		completed = append(completed, text)
	}))

	require.Equal(t, []string{"partial ", "full ", "answer"}, chunks)
	require.Equal(t, []string{"full answer"}, completed, "only the successful attempt is kept")
	require.Equal(t, 1, second.Calls())
}

func TestUpstreamStream_AllFailYieldsSingleApology(t *testing.T) {
	u := NewUpstreamClient(pool(
		&fakeGenerator{streamErr: errors.New("a")},
		&fakeGenerator{chunks: []string{"x"}, streamErr: errors.New("b"), failAfter: 1},
		&fakeGenerator{}, // empty stream
	), apology, zap.NewNop())

	called := false
	chunks := collect(u.Stream(context.Background(), entity.Prompt{}, func(string) { called = true }))
	require.Equal(t, []string{"x", apology}, chunks)
	require.False(t, called)
}

func TestUpstreamStream_AbandonedStreamSkipsFinalizer(t *testing.T) {
	first := &fakeGenerator{chunks: []string{"a", "b", "c"}}
	second := &fakeGenerator{chunks: []string{"z"}}
	u := NewUpstreamClient(pool(first, second), apology, zap.NewNop())

	called := false
	for c := range u.Stream(context.Background(), entity.Prompt{}, func(string) { called = true }) {
		require.Equal(t, "a", c)
		break
	}
	require.False(t, called)
	require.Equal(t, 0, second.Calls())
}

func TestUpstreamStream_CancelledContextYieldsNothing(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"a"}}
	u := NewUpstreamClient(pool(gen), apology, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	chunks := collect(u.Stream(ctx, entity.Prompt{}, func(string) { called = true }))
	require.Empty(t, chunks)
	require.False(t, called)
}

func TestClassifyUpstreamFailure(t *testing.T) {
	wrap := func(msg string) error {
		return &entity.ExhaustedError{Attempts: 1, Last: errors.New(msg)}
	}
	require.Equal(t, FailureInvalidKey, ClassifyUpstreamFailure(wrap("Error 400, Message: API key not valid. Status: INVALID_ARGUMENT, reason API_KEY_INVALID")))
	require.Equal(t, FailureOverloaded, ClassifyUpstreamFailure(wrap("Error 429, Status: RESOURCE_EXHAUSTED")))
	require.Equal(t, FailureOverloaded, ClassifyUpstreamFailure(wrap("Rate Limit reached")))
	require.Equal(t, FailureOverloaded, ClassifyUpstreamFailure(wrap("The model is overloaded")))
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(wrap("connection refused")))
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(errors.New("API_KEY_INVALID")), "only exhausted errors are classified")
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(nil))
}

func TestClassifyUpstreamFailure_StatusNotDigits(t *testing.T) {
	wrap := func(err error) error {
		return &entity.ExhaustedError{Attempts: 2, Last: err}
	}
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(wrap(errors.New("dial tcp 10.0.0.1:6429: connection refused"))))
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(wrap(errors.New("unexpected EOF after 4290 bytes"))))
	require.Equal(t, FailureOverloaded, ClassifyUpstreamFailure(wrap(errors.New("googleapi: Error 429: quota exceeded"))))

	typed := &entity.UpstreamStatusError{Code: 429, Err: errors.New("quota exceeded")}
	require.Equal(t, FailureOverloaded, ClassifyUpstreamFailure(wrap(typed)))

	typed = &entity.UpstreamStatusError{Code: 500, Status: "INTERNAL", Err: errors.New("backend error")}
	require.Equal(t, FailureGeneric, ClassifyUpstreamFailure(wrap(typed)))
}

func TestMaskCredential(t *testing.T) {
	require.Equal(t, "key#1(...wxyz)", MaskCredential(0, "AIzaSyABCDEFGHwxyz"))
	require.Equal(t, "key#3", MaskCredential(2, "abc"))
	require.NotContains(t, MaskCredential(0, "AIzaSySECRET1234"), "SECRET")
}
