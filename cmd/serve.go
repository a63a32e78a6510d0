package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat, scoring and upload HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :3001)")
	serveCmd.Flags().Bool("dev", false, "include internal error details in responses")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.dev-mode", serveCmd.Flags().Lookup("dev"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	logger.Info("starting the resume-screener api", zap.String("version", version))

	c, err := buildComponents(ctx, config, logger, needs{generator: true, retrieval: true})
	if err != nil {
		fatalOnError(logger, "building components", err)
		return
	}
	defer c.Close()

	go c.store.Run(ctx)

	server := api.New(api.Config{
		Listen:       config.Server.Listen,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		DevMode:      config.Server.DevMode,
	}, c.orchestrator, c.matcher, c.documents, logger)

	if err := server.Serve(ctx); err != nil {
		fatalOnError(logger, "serving http api", err)
		return
	}

	logger.Info("exiting", zap.String("reason", "shutdown complete"))
}
