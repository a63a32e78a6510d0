package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/chat"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

const (
	chatCommandExit    = "/exit"
	chatCommandHistory = "/history"
	chatCommandTitle   = "/title"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about the ingested resumes and job descriptions",
	Long: `Start an interactive chat session. Documents have to be ingested first
unless a persistent vector store is configured.

Commands: /history prints the conversation, /title <text> renames the session,
/exit or Ctrl+C leaves.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runChat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "session id to use (default is a new ulid)")
	chatCmd.Flags().StringP("resume", "r", "", "resume id to attach to the session")
	chatCmd.Flags().StringSlice("ingest", nil, "resume files to ingest before chatting, glob patterns allowed")
}

func runChat(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	c, err := buildComponents(ctx, config, logger, needs{generator: true, retrieval: true})
	if err != nil {
		fatalOnError(logger, "building components", err)
		return
	}
	defer c.Close()

	patterns, _ := cmd.Flags().GetStringSlice("ingest")
	if len(patterns) > 0 {
		if _, err := ingestFiles(ctx, c, vectorstore.DocTypeResume, patterns); err != nil {
			fatalOnError(logger, "ingesting files", err)
			return
		}
	}

	sessionID, _ := cmd.Flags().GetString("session")
	if strings.TrimSpace(sessionID) == "" {
		sessionID = ulid.Make().String()
	}
	resumeRef, _ := cmd.Flags().GetString("resume")

	logger.Info("chat session started", zap.String("session_id", sessionID))

	assistant := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	input := promptui.Prompt{Label: "You"}
	for {
		line, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			fatalOnError(logger, "reading input", err)
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == chatCommandExit:
			return
		case line == chatCommandHistory:
			printHistory(c.orchestrator.History(sessionID), assistant)
			continue
		case strings.HasPrefix(line, chatCommandTitle+" "):
			if _, err := c.orchestrator.RenameSession(sessionID, strings.TrimPrefix(line, chatCommandTitle+" ")); err != nil {
				color.Red("%s", err)
			}
			continue
		}

		resp, err := c.orchestrator.Submit(ctx, chat.Request{Message: line, SessionID: sessionID, ResumeRef: resumeRef})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			color.Red("%s", err)
			continue
		}

		assistant.Println(resp.Text)
		for _, ref := range resp.Context {
			dim.Printf("  [%s %.2f] %s\n", ref.ID, ref.Score, ref.Snippet)
		}
	}
}

func printHistory(history chat.History, assistant *color.Color) {
	if history.Session == nil {
		fmt.Println("No session found")
		return
	}

	color.New(color.Bold).Printf("%s (%d messages)\n", history.Session.Title, history.Session.MessageCount)
	for _, msg := range history.Messages {
		if msg.Role == ai.RoleAssistant {
			assistant.Printf("assistant: %s\n", msg.Content)
			continue
		}
		fmt.Printf("%s: %s\n", msg.Role, msg.Content)
	}
}
