package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as yaml",
	Long: `Print the configuration after defaults, the config file and environment
variables are merged. Secrets are redacted.

Environment variables: GEMINI_API_KEY, GEMINI_API_KEY_FILE, OPENAI_API_KEY,
OPENAI_API_KEY_FILE, QDRANT_API_KEY, QDRANT_API_KEY_FILE, RESUME_SCREENER_LISTEN.`,
	Run: func(_ *cobra.Command, _ []string) {
		config, logger := setup()
		defer logger.Sync()

		out, err := renderConfig(config)
		if err != nil {
			logger.Fatal("rendering config", zap.Error(err))
		}
		fmt.Fprint(os.Stdout, out)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func renderConfig(config *Config) (string, error) {
	data, err := yaml.Marshal(redactSecrets(config))
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

// redactSecrets returns a copy of config with inline secrets masked. File
// paths are kept since they are not secret themselves.
func redactSecrets(config *Config) *Config {
	if config == nil {
		return nil
	}

	out := *config
	if config.AI != nil && config.AI.Gemini != nil {
		ai := *config.AI
		gemini := *config.AI.Gemini
		gemini.APIKey = mask(gemini.APIKey)
		ai.Gemini = &gemini
		out.AI = &ai
	}
	if config.Embedding != nil && config.Embedding.OpenAI != nil {
		embedding := *config.Embedding
		openai := *config.Embedding.OpenAI
		openai.APIKey = mask(openai.APIKey)
		embedding.OpenAI = &openai
		out.Embedding = &embedding
	}
	if config.VectorStore != nil && config.VectorStore.Qdrant != nil {
		store := *config.VectorStore
		qdrant := *config.VectorStore.Qdrant
		qdrant.APIKey = mask(qdrant.APIKey)
		store.Qdrant = &qdrant
		out.VectorStore = &store
	}

	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return redacted
}
