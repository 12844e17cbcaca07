package cmd

import (
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/catalog"
	"github.com/spf13/cobra"
)

var stockBelow int

var checkCmd = &cobra.Command{
	Use:   "check-stock",
	Short: "List variants running low on stock",
	Long: `List active variants whose on-hand quantity is below the threshold,
lowest first. Sold-out variants are included.`,
	RunE: checkStock,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().IntVar(&stockBelow, "below", 5, "Report variants with fewer units than this")
}

func checkStock(cmd *cobra.Command, args []string) error {
	fmt.Printf("🔍 Checking variants with fewer than %d units...\n", stockBelow)

	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	levels, err := catalog.NewStore(db).LowStock(cmd.Context(), stockBelow)
	if err != nil {
		return fmt.Errorf("failed to check stock: %w", err)
	}

	if len(levels) == 0 {
		fmt.Println("📭 Every variant is above the threshold")
		return nil
	}

	fmt.Printf("\n📋 Found %d variant%s:\n", len(levels), pluralize(len(levels)))
	fmt.Println(strings.Repeat("─", 80))
	for _, l := range levels {
		marker := "⚠️ "
		if l.Quantity <= 0 {
			marker = "❌"
		}
		fmt.Printf("%s %-16s %-40s %3d left\n", marker, l.SKU, truncate(l.Name, 40), l.Quantity)
	}
	return nil
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-3] + "..."
}
