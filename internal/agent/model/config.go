package model

// ================ Config ================

type SessionConfig struct {
	TTL         string `envconfig:"SESSION_TTL" default:"24h"`
	MaxTurns    int    `envconfig:"SESSION_MAX_TURNS" default:"50"`
	RecentTurns int    `envconfig:"SESSION_RECENT_TURNS" default:"6"`
}

type ResolverModelConfig struct {
	Model       string  `envconfig:"RESOLVER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESOLVER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESOLVER_TEMPERATURE" default:"0.2"`
}

type ResponderModelConfig struct {
	Model       string  `envconfig:"RESPONDER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONDER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONDER_TEMPERATURE" default:"0.4"`
}

type GuardrailConfig struct {
	MaxToolCallsPerTurn    int `envconfig:"MAX_TOOL_CALLS_PER_TURN" default:"8"`
	MaxHotelsPricedPerTurn int `envconfig:"MAX_HOTELS_PRICED_PER_TURN" default:"20"`
	MaxWallClockMS         int `envconfig:"MAX_WALL_CLOCK_MS" default:"8000"`
	ToolTimeoutMS          int `envconfig:"TOOL_TIMEOUT_MS" default:"2500"`
	ToolMaxRetries         int `envconfig:"TOOL_MAX_RETRIES" default:"2"`
}

type ToolsConfig struct {
	BaseURL  string `envconfig:"TOOLS_BASE_URL" default:"http://localhost:8001"`
	TenantID string `envconfig:"TENANT_ID" default:"t_default"`
}
