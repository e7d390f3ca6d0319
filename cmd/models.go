package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/ai"
	cfgpkg "github.com/KaramelBytes/dataloom/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage or inspect the model catalog and pricing",
	Example: `  dataloom models show
  dataloom models sync --file ./models.yaml
  dataloom models sync --file ./models.json --save`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := newTextTable(cmd.OutOrStdout(), []string{"model", "context", "in/1K", "out/1K"})
		for _, m := range ai.Catalog() {
			tw.Append([]string{
				m.Name,
				fmt.Sprint(m.ContextTokens),
				fmt.Sprintf("%.5f", m.InputPerK),
				fmt.Sprintf("%.5f", m.OutputPerK),
			})
		}
		tw.Render()
		return nil
	},
}

var (
	syncPath string
	syncSave bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model catalog/pricing from a JSON or YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalog(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "Merged %d models from %s\n", len(m), syncPath)
		if !syncSave {
			return nil
		}
		abs, err := filepath.Abs(syncPath)
		if err != nil {
			return err
		}
		cfg.ModelsCatalog = abs
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved models_catalog to config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to a JSON or YAML catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncSave, "save", false, "load this catalog on every run (sets models_catalog)")
}
