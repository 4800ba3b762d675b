package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelcrucible/crucible/internal/config"
	"github.com/modelcrucible/crucible/internal/dataset"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured models and available datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Println("Models:")
			for _, m := range cfg.Models {
				target := m.Model
				if m.BaseURL != "" {
					target += " @ " + m.BaseURL
				}
				fmt.Printf("  - %s (%s)\n", m.Name, target)
			}

			reg, err := dataset.LoadDir(cfg.Datasets.Dir)
			if err != nil {
				return err
			}
			fmt.Println("\nDatasets:")
			for _, id := range cfg.Datasets.IDs {
				ds, err := reg.Get(id)
				if err != nil {
					fmt.Printf("  - %s (MISSING)\n", id)
					continue
				}
				fmt.Printf("  - %s (%d items)\n", ds.ID, len(ds.Items))
			}
			fmt.Printf("\nScorer: %s\n", cfg.Scorer.Type)
			return nil
		},
	}
}
