package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/llm"
	"github.com/spf13/cobra"
)

var testNLUCmd = &cobra.Command{
	Use:   "test-nlu <message>",
	Short: "Resolve one shopper message and print the intent",
	Long: `Run a message through the intent resolver exactly as the chat endpoint
does and print the resulting intent. This helps verify API keys and compare
the language service with the fallback parser.`,
	Args: cobra.MinimumNArgs(1),
	RunE: testNLU,
}

func init() {
	rootCmd.AddCommand(testNLUCmd)
}

func testNLU(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	fmt.Printf("🧪 Resolving %q...\n", message)

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	generator, err := llm.NewGenerator(&cfg.LLM)
	if err != nil {
		fmt.Printf("⚠️  %v\n", err)
		generator = nil
	}
	if generator != nil {
		fmt.Printf("🤖 Generator: %s/%s (timeout %s)\n", cfg.LLM.Generator.Provider, generator.Model(), cfg.NLU.Timeout)
	}

	resolver := intent.NewResolver(generator, cfg.NLU.Timeout, logger)
	in := resolver.Resolve(cmd.Context(), message, nil)

	out, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	fmt.Println(string(out))

	if in.Source == intent.SourceFallback {
		fmt.Println("\n↩️  Answered by the fallback parser")
	} else {
		fmt.Println("\n✅ Answered by the language service")
	}
	return nil
}
