package cmd

import (
	"fmt"

	"github.com/matthieukhl/loom/internal/catalog"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCatalogCmd = &cobra.Command{
	Use:   "seed-catalog",
	Short: "Load products, variants and stock from a YAML file",
	Long: `Populate the catalog from a YAML fixture. Every product, its variants
and their on-hand stock are written in one transaction, so a bad file
leaves the catalog untouched.`,
	RunE: seedCatalog,
}

func init() {
	rootCmd.AddCommand(seedCatalogCmd)

	seedCatalogCmd.Flags().StringVar(&seedFile, "file", "deploy/catalog.yaml", "Catalog fixture to load")
}

func seedCatalog(cmd *cobra.Command, args []string) error {
	fmt.Printf("📚 Seeding catalog from %s...\n", seedFile)

	seed, err := catalog.LoadSeedFile(seedFile)
	if err != nil {
		return err
	}

	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}

	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := catalog.NewStore(db).Seed(cmd.Context(), seed)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	fmt.Printf("   📦 %d products, %d variants\n", result.Products, result.Variants)
	fmt.Println("\n✅ Catalog seeding complete!")
	return nil
}
