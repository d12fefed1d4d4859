// Package config provides environment configuration for the chat server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the hosted model credentials are absent.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required")

// DefaultInstructions is the assistant system prompt used when no profile file overrides it.
const DefaultInstructions = "You are a helpful assistant specialized in answering questions about a provided book. " +
	"You have access to a custom tool called `retrieve_book_info` to find information from the book. " +
	"When asked a question that requires information from the book, formulate a clear query and use the `retrieve_book_info` tool. " +
	"The tool will return relevant text passages. Synthesize this information to provide a comprehensive answer. " +
	"If a user asks you to perform a sequential task, such as 'elaborate on each step one at a time' or 'go through points A, B, and C', " +
	"you should aim to complete the entire sequence. " +
	"After providing the information for one item in the sequence, identify the next item, " +
	"then proactively use the `retrieve_book_info` tool to gather information for that next item and present its elaboration. " +
	"Clearly indicate which item you are currently discussing. " +
	"If the initial information from a single tool call is insufficient, you may call `retrieve_book_info` again with a refined query. " +
	"If the tool returns passages with a 'citations' field including 'file_id', cite the source text. " +
	"If the tool indicates no relevant information was found, state that you couldn't find it in the book. " +
	"Always respond to user queries by directly answering their question based on the information you have or retrieve."

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Hosted model settings
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	RetrievalModel string
	VectorStoreID  string
	Assistant      AssistantProfile

	// Run loop settings
	RunPollInterval time.Duration
	RunMaxPolls     int
	RunTimeout      time.Duration

	// NATS settings, journaling is disabled when NATSURL is empty
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings, auth is disabled when JWTSecret is empty
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// AssistantProfile describes the hosted assistant the run loop drives.
type AssistantProfile struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
}

// Load reads configuration from a .env file, if present, and environment variables.
func Load() (*Config, error) {
	// A missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		// Server
		ServerPort:         getEnv("PORT", "5055"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Minute),

		// Hosted model
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		RetrievalModel: getEnv("RETRIEVAL_MODEL", "gpt-4.1"),
		VectorStoreID:  getEnv("VECTOR_STORE_ID", ""),
		Assistant: AssistantProfile{
			ID:           getEnv("ASSISTANT_ID", ""),
			Name:         getEnv("ASSISTANT_NAME", "Kindle Book QA Hybrid Assistant"),
			Model:        getEnv("ASSISTANT_MODEL", "gpt-4.1"),
			Instructions: DefaultInstructions,
		},

		// Run loop
		RunPollInterval: getDurationEnv("RUN_POLL_INTERVAL", time.Second),
		RunMaxPolls:     getIntEnv("RUN_MAX_POLLS", 0),
		RunTimeout:      getDurationEnv("RUN_TIMEOUT", 5*time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	if path := getEnv("ASSISTANT_PROFILE", ""); path != "" {
		if err := cfg.Assistant.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.RunPollInterval <= 0 {
		return fmt.Errorf("RUN_POLL_INTERVAL must be positive, got %s", c.RunPollInterval)
	}
	if c.RunMaxPolls < 0 {
		return fmt.Errorf("RUN_MAX_POLLS must not be negative, got %d", c.RunMaxPolls)
	}
	return nil
}

// KnowledgeBaseConfigured reports whether retrieval has an index to search.
func (c *Config) KnowledgeBaseConfigured() bool {
	return c.VectorStoreID != ""
}

// mergeFile overlays non-empty fields from a YAML profile.
func (p *AssistantProfile) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read assistant profile: %w", err)
	}

	var file AssistantProfile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse assistant profile: %w", err)
	}

	if file.ID != "" {
		p.ID = file.ID
	}
	if file.Name != "" {
		p.Name = file.Name
	}
	if file.Model != "" {
		p.Model = file.Model
	}
	if file.Instructions != "" {
		p.Instructions = file.Instructions
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
