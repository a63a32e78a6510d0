package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete stored documents and their vectors",
	Run: func(cmd *cobra.Command, _ []string) {
		purge(cmd)
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().StringP("type", "t", "", "only delete documents of this type: resume or job_description")
}

func purge(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	c, err := buildComponents(ctx, config, logger, needs{retrieval: true})
	if err != nil {
		fatalOnError(logger, "building components", err)
		return
	}
	defer c.Close()

	rawType, _ := cmd.Flags().GetString("type")
	if rawType == "" {
		if err := c.documents.Purge(ctx); err != nil {
			fatalOnError(logger, "purging documents", err)
			return
		}
		logger.Info("all documents deleted")
		return
	}

	docType, err := vectorstore.ParseDocType(rawType)
	if err != nil {
		fatalOnError(logger, "parsing document type", apperror.Wrap(apperror.KindClient, "invalid --type", err))
		return
	}

	if err := c.documents.DeleteAll(ctx, docType); err != nil {
		fatalOnError(logger, "deleting documents", err)
		return
	}
	logger.Info("documents deleted", zap.String("type", string(docType)))
}
