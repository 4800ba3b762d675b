package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelcrucible/crucible/internal/config"
	"github.com/modelcrucible/crucible/internal/dataset"
	"github.com/modelcrucible/crucible/internal/scorer"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config, datasets and scorer without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK (%d models)\n", len(cfg.Models))

			if _, err := scorer.New(cfg.Scorer.Type, cfg.Scorer.Params); err != nil {
				return err
			}
			fmt.Printf("Scorer OK (%s)\n", cfg.Scorer.Type)

			reg, err := dataset.LoadDir(cfg.Datasets.Dir)
			if err != nil {
				return err
			}
			items := 0
			for _, id := range cfg.Datasets.IDs {
				ds, err := reg.Get(id)
				if err != nil {
					return err
				}
				items += len(ds.Items)
			}
			fmt.Printf("Datasets OK (%d configured, %d items)\n", len(cfg.Datasets.IDs), items)
			return nil
		},
	}
}
