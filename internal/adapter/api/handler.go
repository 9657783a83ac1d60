package api

import (
	"bufio"
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"trafficlaw-gateway/internal/domain/entity"
	"trafficlaw-gateway/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// User-facing messages.
const (
	msgRateLimited   = "Bạn đang hỏi quá nhanh, vui lòng thử lại sau giây lát."
	msgNoCredentials = "API Key chưa được cấu hình trên server."
	msgNoPrompt      = "Không có prompt nào được cung cấp."
	msgInvalidKey    = "Một hoặc nhiều API Key không hợp lệ."
	msgOverloaded    = "API của Google đang bị quá tải, vui lòng thử lại sau."
	msgInternal      = "Lỗi máy chủ nội bộ, không thể xử lý yêu cầu."
)

const headerCacheHit = "X-Cache-Hit"

type PromptHandler struct {
	orchestrator *usecase.Orchestrator
	retryAfter   time.Duration
	log          *zap.Logger
}

// NewPromptHandler wires the pipeline to HTTP. retryAfter is advertised to
// clients rejected by the rate limiter.
func NewPromptHandler(orch *usecase.Orchestrator, retryAfter time.Duration, log *zap.Logger) *PromptHandler {
	return &PromptHandler{
		orchestrator: orch,
		retryAfter:   retryAfter,
		log:          log.Named("api"),
	}
}

func (h *PromptHandler) HandlePrompt(c *fiber.Ctx) error {
	var req entity.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		// An unreadable body is a request without a prompt; the pipeline
		// still applies the rate limit first.
		h.log.Debug("unreadable request body", zap.Error(err))
		req = entity.ChatRequest{}
	}
	req.ClientID = clientID(c)

	if req.Stream {
		return h.stream(c, req)
	}

	resp, err := h.orchestrator.Execute(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(headerCacheHit, strconv.FormatBool(resp.Cached))
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PromptHandler) stream(c *fiber.Ctx, req entity.ChatRequest) error {
	answer, err := h.orchestrator.ExecuteStream(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(headerCacheHit, strconv.FormatBool(answer.Cached))
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Status(fiber.StatusOK)

	// The writer runs after the handler returns, when c and the strings it
	// handed out are no longer valid.
	requestID := utils.CopyString(c.GetRespHeader(fiber.HeaderXRequestID))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for chunk := range answer.Chunks(ctx) {
			if _, err := w.WriteString(chunk); err != nil {
				h.log.Info("client went away", zap.String("request_id", requestID), zap.Error(err))
				return
			}
			if err := w.Flush(); err != nil {
				h.log.Info("client went away", zap.String("request_id", requestID), zap.Error(err))
				return
			}
		}
	})
	return nil
}

func (h *PromptHandler) fail(c *fiber.Ctx, err error) error {
	status, msg := classify(err)
	fields := []zap.Field{
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= fiber.StatusInternalServerError {
		h.log.Error("request failed", fields...)
	} else {
		h.log.Info("request rejected", fields...)
	}

	if errors.Is(err, entity.ErrRateLimitExceeded) && h.retryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(h.retryAfter.Seconds()))))
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// classify maps a pipeline error to a status code and user message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrRateLimitExceeded):
		return fiber.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, entity.ErrNoCredentials):
		return fiber.StatusInternalServerError, msgNoCredentials
	case errors.Is(err, entity.ErrInvalidRequest):
		return fiber.StatusBadRequest, msgNoPrompt
	case errors.Is(err, entity.ErrUpstreamExhausted):
		switch usecase.ClassifyUpstreamFailure(err) {
		case usecase.FailureInvalidKey:
			return fiber.StatusInternalServerError, msgInvalidKey
		case usecase.FailureOverloaded:
			return fiber.StatusTooManyRequests, msgOverloaded
		}
	}
	return fiber.StatusInternalServerError, msgInternal
}

// clientID is the first X-Forwarded-For entry, else the socket address.
// The result outlives the request as a limiter key, so it never aliases
// fasthttp's header buffer.
func clientID(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return utils.CopyString(first)
		}
	}
	return utils.CopyString(c.IP())
}
