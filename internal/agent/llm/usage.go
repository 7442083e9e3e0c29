package llm

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/observers"
)

// Pricing defines USD cost per 1M text tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M tokens (text tokens).
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// ResolvePricing returns hardcoded pricing for a model, zero for unknown ones.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}

type usageLogger struct {
	inner     Generator
	modelName string
}

// WithUsageLogging wraps a generator so every call records latency, token
// usage and estimated USD cost under the given model name.
func WithUsageLogging(inner Generator, modelName string) Generator {
	return &usageLogger{inner: inner, modelName: modelName}
}

func (u *usageLogger) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	start := time.Now()
	out, err := u.inner.Generate(ctx, input, opts...)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logx.Warn().Str("model", u.modelName).Int64("latency_ms", elapsed).Err(err).Msg("model call failed")
		return nil, err
	}

	evt := logx.Info().Str("model", u.modelName).Int64("latency_ms", elapsed)
	if out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		_, _, cost := ComputeCost(usage, ResolvePricing(u.modelName))
		observers.ModelTokensTotal.WithLabelValues(u.modelName, "input").Add(float64(usage.PromptTokens))
		observers.ModelTokensTotal.WithLabelValues(u.modelName, "output").Add(float64(usage.CompletionTokens))
		evt = evt.
			Int("input_tokens", usage.PromptTokens).
			Int("output_tokens", usage.CompletionTokens).
			Float64("cost_usd", cost)
	}
	evt.Msg("model call complete")
	return out, nil
}
