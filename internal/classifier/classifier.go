package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/resilience"
	"github.com/sells-group/leadscan/pkg/anthropic"
)

// Classifier corrects the heuristic parser's field assignments.
type Classifier interface {
	Classify(ctx context.Context, input model.ClassifyInput) (*model.Classification, error)
}

// LLM classifies fields with a language model and degrades to the
// deterministic fallback when the model is unreachable or returns
// garbage. Classify never fails on model errors; the returned
// Classification carries Fallback=true instead.
type LLM struct {
	client  anthropic.Client
	cfg     config.AnthropicConfig
	limiter *rate.Limiter
	backoff time.Duration
}

func NewLLM(client anthropic.Client, cfg config.AnthropicConfig) *LLM {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	return &LLM{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		backoff: time.Second,
	}
}

func (c *LLM) Classify(ctx context.Context, input model.ClassifyInput) (*model.Classification, error) {
	cls, err := c.classifyModel(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		zap.L().Warn("classifier: model classification failed, using fallback",
			zap.Error(err),
		)
		return Fallback(input), nil
	}

	zap.L().Debug("classifier: model classification succeeded",
		zap.Float64("overall_confidence", cls.Overall),
		zap.Int("issues", len(cls.Issues)),
	)
	return cls, nil
}

func (c *LLM) classifyModel(ctx context.Context, input model.ClassifyInput) (*model.Classification, error) {
	maxAttempts := c.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: c.backoff,
		// Malformed responses are retried too: a second sample from the
		// model often parses fine.
		ShouldRetry: func(error) bool { return true },
		OnRetry:     resilience.RetryLogger("anthropic", "classify_fields"),
	}

	return resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.Classification, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()

		resp, err := c.client.CreateMessage(callCtx, anthropic.MessageRequest{
			Model:       c.cfg.Model,
			MaxTokens:   1024,
			System:      classifySystemPrompt,
			Temperature: anthropic.Float(0.1),
			Messages: []anthropic.Message{
				{Role: "user", Content: buildUserPrompt(input)},
			},
		})
		if err != nil {
			return nil, err
		}
		resp.Usage.LogUsage(c.cfg.Model, "classify_fields")

		return parseClassification(resp.Text())
	})
}
