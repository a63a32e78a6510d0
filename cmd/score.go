package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperror"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a resume file against a job description file",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("resume", "", "path to the resume text file")
	scoreCmd.Flags().String("job", "", "path to the job description text file")
	scoreCmd.MarkFlagRequired("resume")
	scoreCmd.MarkFlagRequired("job")
}

func score(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	resumePath, _ := cmd.Flags().GetString("resume")
	jobPath, _ := cmd.Flags().GetString("job")

	resumeText, err := readTextFile(resumePath)
	if err != nil {
		fatalOnError(logger, "reading resume", err)
		return
	}
	jobText, err := readTextFile(jobPath)
	if err != nil {
		fatalOnError(logger, "reading job description", err)
		return
	}

	c, err := buildComponents(ctx, config, logger, needs{generator: true})
	if err != nil {
		fatalOnError(logger, "building components", err)
		return
	}
	defer c.Close()

	result := c.matcher.Score(ctx, resumeText, jobText, fileID(resumePath), fileID(jobPath))
	if result.Fallback {
		logger.Warn("scoring did not succeed, showing the fallback result")
	}
	logger.Debug("match score", zap.Any("result", result))

	printScore(result)
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperror.Wrap(apperror.KindClient, fmt.Sprintf("cannot read %s", path), err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", apperror.Newf(apperror.KindClient, "%s is empty", path)
	}
	return string(data), nil
}

func fileID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func scoreColor(value float64) *color.Color {
	switch {
	case value >= 75:
		return color.New(color.FgGreen, color.Bold)
	case value >= 50:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printScore(result *ai.MatchScore) {
	scoreColor(result.Score).Printf("Match score: %.0f/100\n", result.Score)

	sections := []struct {
		title string
		items []string
		color *color.Color
	}{
		{"Strengths", result.Strengths, color.New(color.FgGreen)},
		{"Gaps", result.Gaps, color.New(color.FgRed)},
		{"Insights", result.Insights, color.New(color.FgCyan)},
	}
	for _, section := range sections {
		color.New(color.Bold).Printf("\n%s:\n", section.title)
		for _, item := range section.items {
			section.color.Printf("  - %s\n", item)
		}
	}
}
