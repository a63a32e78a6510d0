package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/documents"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <glob>...",
	Short: "Upload and index resume or job description files",
	Long: `Upload and index text files. Patterns support ** for recursive matching,
for example: resume-screener ingest --type resume "resumes/**/*.md"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ingest(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("type", "t", string(vectorstore.DocTypeResume), "document type: resume or job_description")
}

func ingest(cmd *cobra.Command, patterns []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	rawType, _ := cmd.Flags().GetString("type")
	docType, err := vectorstore.ParseDocType(rawType)
	if err != nil {
		fatalOnError(logger, "parsing document type", apperror.Wrap(apperror.KindClient, "invalid --type", err))
		return
	}

	c, err := buildComponents(ctx, config, logger, needs{retrieval: true})
	if err != nil {
		fatalOnError(logger, "building components", err)
		return
	}
	defer c.Close()

	docs, err := ingestFiles(ctx, c, docType, patterns)
	if err != nil {
		fatalOnError(logger, "ingesting files", err)
		return
	}

	logger.Info("ingest finished", zap.Int("count", len(docs)), zap.String("type", string(docType)))
}

// ingestFiles uploads every file matched by patterns. A file that fails
// validation is reported and skipped; infrastructure errors stop the run.
func ingestFiles(ctx context.Context, c *components, docType vectorstore.DocType, patterns []string) ([]*documents.Document, error) {
	paths, err := expandPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, apperror.New(apperror.KindClient, "no files matched the given patterns")
	}

	ok := color.New(color.FgGreen)
	skipped := color.New(color.FgYellow)

	var docs []*documents.Document
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return docs, fmt.Errorf("reading %s: %w", path, err)
		}

		doc, err := c.documents.Upload(ctx, docType, filepath.Base(path), content)
		if err != nil {
			if apperror.Is(err, apperror.KindClient) {
				skipped.Printf("skipped %s: %s\n", path, apperror.Message(err))
				continue
			}
			return docs, fmt.Errorf("uploading %s: %w", path, err)
		}

		ok.Printf("%s -> %s\n", path, doc.ID)
		docs = append(docs, doc)
	}

	return docs, nil
}

// expandPatterns resolves doublestar patterns into a sorted, de-duplicated
// list of regular files.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, apperror.Wrap(apperror.KindClient, fmt.Sprintf("invalid pattern %q", pattern), err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true
			paths = append(paths, match)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
