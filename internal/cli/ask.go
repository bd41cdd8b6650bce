package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var askSkipLoad bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question about the course corpus",
	Long: `Ask a one-shot question about the course corpus and print the answer
with its sources.

The configured docs directory is loaded first so the in-memory index has
content to search; pass --skip-load when using a persistent database that is
already populated.

Examples:
  courserag ask "What is covered in lesson 5 of the MCP course?"
  courserag ask "Outline the Computer Use course" --skip-load`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askSkipLoad, "skip-load", false, "skip the corpus load before asking")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.closeStore()

	if !askSkipLoad {
		p.loadCorpus(ctx)
	}

	answer := p.orch.Respond(ctx, p.sessions.NewID(), args[0])

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range answer.Sources {
			if src.Link != "" {
				fmt.Printf("  - %s (%s)\n", src.Text, src.Link)
			} else {
				fmt.Printf("  - %s\n", src.Text)
			}
		}
	}
	return nil
}
