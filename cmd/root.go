package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-screener"
)

type Config struct {
	Server      *ServerConfig      `mapstructure:"server" yaml:"server"`
	Session     *SessionConfig     `mapstructure:"session" yaml:"session"`
	Chat        *ChatConfig        `mapstructure:"chat" yaml:"chat"`
	Scoring     *ScoringConfig     `mapstructure:"scoring" yaml:"scoring"`
	AI          *AIConfig          `mapstructure:"ai" yaml:"ai"`
	Embedding   *EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	VectorStore *VectorStoreConfig `mapstructure:"vector-store" yaml:"vector-store"`
	Documents   *DocumentsConfig   `mapstructure:"documents" yaml:"documents"`
}

type ServerConfig struct {
	Listen       string        `mapstructure:"listen" yaml:"listen"`
	DevMode      bool          `mapstructure:"dev-mode" yaml:"dev-mode"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout" yaml:"read-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout" yaml:"write-timeout"`
}

type SessionConfig struct {
	MaxMessages   int           `mapstructure:"max-messages" yaml:"max-messages"`
	HistoryWindow int           `mapstructure:"history-window" yaml:"history-window"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep-interval" yaml:"sweep-interval"`
}

type ChatConfig struct {
	TopK          int     `mapstructure:"top-k" yaml:"top-k"`
	Temperature   float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int32   `mapstructure:"max-tokens" yaml:"max-tokens"`
	SnippetLength int     `mapstructure:"snippet-length" yaml:"snippet-length"`
}

type ScoringConfig struct {
	Temperature   float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens     int32   `mapstructure:"max-tokens" yaml:"max-tokens"`
	MaxInputChars int     `mapstructure:"max-input-chars" yaml:"max-input-chars"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
}

type GeminiConfig struct {
	APIKey       string        `mapstructure:"api-key" yaml:"api-key"`
	APIKeyFile   string        `mapstructure:"api-key-file" yaml:"api-key-file"`
	Model        string        `mapstructure:"model" yaml:"model"`
	MaxRetries   int           `mapstructure:"max-retries" yaml:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length" yaml:"max-log-length"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type EmbeddingConfig struct {
	Provider      string                 `mapstructure:"provider" yaml:"provider"`
	Dimension     int                    `mapstructure:"dimension" yaml:"dimension"`
	MaxInputChars int                    `mapstructure:"max-input-chars" yaml:"max-input-chars"`
	Gemini        *GeminiEmbeddingConfig `mapstructure:"gemini" yaml:"gemini"`
	OpenAI        *OpenAIEmbeddingConfig `mapstructure:"openai" yaml:"openai"`
	Local         *LocalEmbeddingConfig  `mapstructure:"local" yaml:"local"`
}

type GeminiEmbeddingConfig struct {
	Model string `mapstructure:"model" yaml:"model"`
}

type OpenAIEmbeddingConfig struct {
	BaseURL    string        `mapstructure:"base-url" yaml:"base-url"`
	APIKey     string        `mapstructure:"api-key" yaml:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file" yaml:"api-key-file"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LocalEmbeddingConfig struct {
	Dimensions int `mapstructure:"dimensions" yaml:"dimensions"`
}

type VectorStoreConfig struct {
	Type   string        `mapstructure:"type" yaml:"type"`
	Qdrant *QdrantConfig `mapstructure:"qdrant" yaml:"qdrant"`
}

type QdrantConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	APIKey     string        `mapstructure:"api-key" yaml:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file" yaml:"api-key-file"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DocumentsConfig struct {
	Type   string        `mapstructure:"type" yaml:"type"`
	SQLite *SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-screener answers questions about uploaded resumes and scores them against job descriptions",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()

	envBinds := map[string]string{
		"ai.gemini.api-key":                "GEMINI_API_KEY",
		"ai.gemini.api-key-file":           "GEMINI_API_KEY_FILE",
		"embedding.openai.api-key":         "OPENAI_API_KEY",
		"embedding.openai.api-key-file":    "OPENAI_API_KEY_FILE",
		"vector-store.qdrant.api-key":      "QDRANT_API_KEY",
		"vector-store.qdrant.api-key-file": "QDRANT_API_KEY_FILE",
		"server.listen":                    "RESUME_SCREENER_LISTEN",
	}
	for key, env := range envBinds {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-screener.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	defaults := map[string]any{
		"server.listen":        ":3001",
		"server.dev-mode":      false,
		"server.read-timeout":  15 * time.Second,
		"server.write-timeout": 60 * time.Second,

		"session.max-messages":   50,
		"session.history-window": 5,
		"session.ttl":            168 * time.Hour,
		"session.sweep-interval": time.Hour,

		"chat.top-k":          3,
		"chat.temperature":    0.7,
		"chat.max-tokens":     1024,
		"chat.snippet-length": 200,

		"scoring.temperature":     0.5,
		"scoring.max-tokens":      1024,
		"scoring.max-input-chars": 2000,

		"ai.provider":              "gemini",
		"ai.gemini.model":          "gemini-2.5-flash",
		"ai.gemini.max-retries":    3,
		"ai.gemini.max-log-length": 200,
		"ai.gemini.timeout":        60 * time.Second,

		"embedding.provider":         "gemini",
		"embedding.dimension":        1024,
		"embedding.max-input-chars":  512,
		"embedding.gemini.model":     "text-embedding-004",
		"embedding.openai.base-url":  "https://api.openai.com/v1",
		"embedding.openai.model":     "text-embedding-3-small",
		"embedding.openai.timeout":   30 * time.Second,
		"embedding.local.dimensions": 384,

		"vector-store.type":              "memory",
		"vector-store.qdrant.url":        "http://localhost:6333",
		"vector-store.qdrant.collection": "resume-screening",
		"vector-store.qdrant.timeout":    15 * time.Second,

		"documents.type":        "memory",
		"documents.sqlite.path": "resume-screener.db",
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

func initConfig() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every key has a default, so the file is optional unless given explicitly.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
