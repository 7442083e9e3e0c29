package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/stayfinder/agent/internal/agent/engine"
	"github.com/stayfinder/agent/internal/agent/llm"
	"github.com/stayfinder/agent/internal/agent/model"
	"github.com/stayfinder/agent/internal/agent/repo"
	"github.com/stayfinder/agent/internal/agent/toolclient"
	"github.com/stayfinder/agent/internal/core"
	logx "github.com/stayfinder/agent/pkg/logger"
	pkgredis "github.com/stayfinder/agent/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Resolver   model.ResolverModelConfig
	Responder  model.ResponderModelConfig
	Session    model.SessionConfig
	Guardrails model.GuardrailConfig
	Tools      model.ToolsConfig
}

func main() {
	fmt.Println("Hotel shopping agent demo...")
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.FromEnv()})

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Session.TTL)
	if err != nil {
		log.Fatalf("Invalid SESSION_TTL '%s': %v", envCfg.Session.TTL, err)
	}

	models, err := llm.NewModels(ctx, llm.Config{
		APIKey:    envCfg.APIKey,
		BaseURL:   envCfg.BaseURL,
		Resolver:  &envCfg.Resolver,
		Responder: &envCfg.Responder,
	})
	if err != nil {
		log.Fatalf("Failed to build chat models: %v", err)
	}

	tools := toolclient.New(envCfg.Tools.BaseURL, envCfg.Guardrails.ToolTimeoutMS, envCfg.Guardrails.ToolMaxRetries)
	sessions := repo.NewRedisSessionRepository(rdb, ttl, envCfg.Session.MaxTurns)
	resolver := llm.WithUsageLogging(models.Resolver, models.ResolverModelName)
	responder := llm.WithUsageLogging(models.Responder, models.ResponderModelName)
	eng := engine.New(resolver, responder, tools, envCfg.Guardrails, envCfg.Tools.TenantID)

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Full shopping request in one message",
			query:       "2 adults, 1 room in Austin, 2026-03-10 to 2026-03-12, under $1200",
		},
		{
			description: "Refinement: add a star filter",
			query:       "Only show 4 star and up",
		},
		{
			description: "Refinement: must be refundable",
			query:       "It must be refundable",
		},
	}

	sessionID := uuid.NewString()

	for i, test := range testQueries {
		fmt.Printf("\nTurn %d: %s\n", i+1, test.description)
		fmt.Printf("User: %q\n", test.query)

		snap, err := sessions.LoadSnapshot(ctx, sessionID)
		if err != nil {
			log.Fatalf("Failed to load session snapshot for turn %d: %v", i+1, err)
		}
		recent, err := sessions.RecentTurns(ctx, sessionID, envCfg.Session.RecentTurns)
		if err != nil {
			log.Fatalf("Failed to load turn history for turn %d: %v", i+1, err)
		}

		st := model.NewTurnState(sessionID, test.query, snap, recent)
		eng.Turn(ctx, st)

		if err := sessions.SaveSnapshot(ctx, sessionID, st.Snapshot()); err != nil {
			log.Fatalf("Failed to save session snapshot for turn %d: %v", i+1, err)
		}
		if err := sessions.AppendTurn(ctx, sessionID, st.Record()); err != nil {
			log.Fatalf("Failed to append turn record for turn %d: %v", i+1, err)
		}

		fmt.Printf("Agent [%s]:\n%s\n", st.AgentState, st.AssistantMessage)
		fmt.Println("------------------------------------------------")

		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("Demo conversation completed.")
}
