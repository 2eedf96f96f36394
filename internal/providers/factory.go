package providers

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
)

// maxKeySlots matches the engine's credential pool cap.
const maxKeySlots = engine.MaxCredentialSlots

// Setup carries everything the engine needs from the environment: the
// credential pool, the model tiers, and the provider name for logging.
type Setup struct {
	Provider string
	Pool     *engine.CredentialPool
	Tiers    engine.ModelTiers
}

// NewSetupFromEnv builds the provider setup based on environment variables.
// Credentials come from FOREMAN_API_KEY_1 .. FOREMAN_API_KEY_6, in slot
// order; FOREMAN_API_KEY alone fills slot 1. The provider is selected with
// FOREMAN_PROVIDER (default anthropic).
func NewSetupFromEnv() (*Setup, error) {
	provider := os.Getenv("FOREMAN_PROVIDER")
	if provider == "" {
		provider = "anthropic"
	}

	keys := credentialKeys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("no API keys configured: set FOREMAN_API_KEY or FOREMAN_API_KEY_1..%d", maxKeySlots)
	}

	newClient, tiers, err := providerConfig(provider)
	if err != nil {
		return nil, err
	}

	clients := make([]engine.LLMClient, 0, len(keys))
	for _, key := range keys {
		clients = append(clients, newClient(key))
	}
	pool, err := engine.NewCredentialPool(clients)
	if err != nil {
		return nil, err
	}

	log.Printf("🔑 Provider %s ready with %d credential slot(s)", provider, pool.Size())
	return &Setup{Provider: provider, Pool: pool, Tiers: tiers}, nil
}

// credentialKeys collects keys in slot order. Numbered slots win over the
// legacy unnumbered variable; gaps in the numbering are skipped.
func credentialKeys() []string {
	var keys []string
	for i := 1; i <= maxKeySlots; i++ {
		if key := os.Getenv(fmt.Sprintf("FOREMAN_API_KEY_%d", i)); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		if key := os.Getenv("FOREMAN_API_KEY"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// providerConfig returns the client constructor and default model tiers for
// a provider. Tier defaults can be overridden via FOREMAN_MODEL,
// FOREMAN_MODEL_BASELINE and FOREMAN_MODEL_HIGH_CAPACITY.
func providerConfig(provider string) (func(key string) engine.LLMClient, engine.ModelTiers, error) {
	var newClient func(key string) engine.LLMClient
	var tiers engine.ModelTiers

	switch provider {
	case "anthropic":
		newClient = func(key string) engine.LLMClient { return NewAnthropicClient(key) }
		tiers = engine.ModelTiers{
			Default:      "claude-sonnet-4-20250514",
			Baseline:     "claude-3-5-haiku-20241022",
			HighCapacity: "claude-opus-4-20250514",
		}

	case "openai":
		newClient = func(key string) engine.LLMClient { return NewOpenAIClient(key, os.Getenv("FOREMAN_BASE_URL")) }
		tiers = engine.ModelTiers{
			Default:      "gpt-4o",
			Baseline:     "gpt-4o-mini",
			HighCapacity: "gpt-4.1",
		}

	case "deepseek":
		newClient = func(key string) engine.LLMClient { return NewOpenAIClient(key, "https://api.deepseek.com/v1") }
		tiers = engine.ModelTiers{
			Default:      "deepseek-chat",
			Baseline:     "deepseek-chat",
			HighCapacity: "deepseek-reasoner",
		}

	case "groq":
		newClient = func(key string) engine.LLMClient { return NewOpenAIClient(key, "https://api.groq.com/openai/v1") }
		tiers = engine.ModelTiers{
			Default:      "llama-3.3-70b-versatile",
			Baseline:     "llama-3.1-8b-instant",
			HighCapacity: "llama-3.3-70b-versatile",
		}

	case "ollama":
		baseURL := os.Getenv("FOREMAN_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		newClient = func(key string) engine.LLMClient { return NewOpenAIClient(key, baseURL) }
		tiers = engine.ModelTiers{
			Default:      "llama3.1",
			Baseline:     "llama3.1",
			HighCapacity: "llama3.1:70b",
		}

	default:
		return nil, engine.ModelTiers{}, fmt.Errorf("unknown FOREMAN_PROVIDER: %s (supported: anthropic, openai, deepseek, groq, ollama)", provider)
	}

	if m := os.Getenv("FOREMAN_MODEL"); m != "" {
		tiers.Default = m
	}
	if m := os.Getenv("FOREMAN_MODEL_BASELINE"); m != "" {
		tiers.Baseline = m
	}
	if m := os.Getenv("FOREMAN_MODEL_HIGH_CAPACITY"); m != "" {
		tiers.HighCapacity = m
	}
	return newClient, tiers, nil
}

// RoleModel returns the model override for a role, if one is configured via
// FOREMAN_MODEL_<ROLE> (role name upper-cased, dashes mapped to
// underscores). Empty means use the default tier.
func RoleModel(roleName string) string {
	key := "FOREMAN_MODEL_" + strings.ToUpper(strings.ReplaceAll(roleName, "-", "_"))
	return os.Getenv(key)
}
