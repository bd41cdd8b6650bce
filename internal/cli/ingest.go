package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestReplace bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest course transcripts into the vector store",
	Long: `Ingest course transcripts into the vector store.

With a file path, that single transcript is (re-)ingested. With a directory
path, every .txt and .md file in it is ingested; courses already in the store
are skipped unless --replace is given. Without a path the configured docs
directory is used.

Examples:
  courserag ingest
  courserag ingest ./docs
  courserag ingest ./docs/course1_script.txt
  courserag ingest ./docs --replace`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "re-ingest courses already in the store")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path := cfg.DocsDir
	if len(args) == 1 {
		path = args[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.closeStore()

	if !info.IsDir() {
		course, chunks, err := p.ingestor.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %q: %d lessons, %d chunks\n", course.Title, len(course.Lessons), chunks)
		return nil
	}

	stats, err := p.ingestor.IngestDirectory(ctx, path, ingestReplace)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d courses (%d chunks), skipped %d files\n", stats.Courses, stats.Chunks, stats.Skipped)
	return nil
}
