package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	logx "github.com/stayfinder/agent/pkg/logger"

	"github.com/stayfinder/agent/internal/agent/model"
)

// Generator is the narrow chat-model surface the engine and resolvers use.
// *gemini.ChatModel satisfies it; tests substitute scripted fakes.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// Config holds what chat model construction needs.
type Config struct {
	APIKey    string
	BaseURL   string
	Resolver  *model.ResolverModelConfig
	Responder *model.ResponderModelConfig
}

// Models holds the two chat models: a low-temperature one for structured
// resolution/decision calls and a warmer one for user-facing responses.
type Models struct {
	Resolver           *gemini.ChatModel
	Responder          *gemini.ChatModel
	ResolverModelName  string
	ResponderModelName string
}

// NewModels creates both chat models over a single Gemini client.
func NewModels(ctx context.Context, config Config) (*Models, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	resolver, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Resolver.Model,
		Temperature: &config.Resolver.Temperature,
		MaxTokens:   &config.Resolver.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating resolver model")
		return nil, fmt.Errorf("error creating resolver model: %w", err)
	}

	responder, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Responder.Model,
		Temperature: &config.Responder.Temperature,
		MaxTokens:   &config.Responder.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating responder model")
		return nil, fmt.Errorf("error creating responder model: %w", err)
	}

	return &Models{
		Resolver:           resolver,
		Responder:          responder,
		ResolverModelName:  config.Resolver.Model,
		ResponderModelName: config.Responder.Model,
	}, nil
}
