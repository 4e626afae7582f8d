package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	OpenAIAPIKey  string
	RealtimeModel string
	// AgentURL overrides the realtime endpoint, mainly for local testing
	// against a stand-in agent.
	AgentURL string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - voice ordering will not work")
	}

	model := os.Getenv("REALTIME_MODEL_ID")
	if model == "" {
		model = "gpt-4o-realtime-preview-2024-10-01"
	}

	agentURL := os.Getenv("AGENT_URL")

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:   addr,
		OpenAIAPIKey:  apiKey,
		RealtimeModel: model,
		AgentURL:      agentURL,
	}
}
