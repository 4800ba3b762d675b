package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/modelcrucible/crucible/internal/config"
	"github.com/modelcrucible/crucible/internal/report"
	"github.com/modelcrucible/crucible/internal/result"
)

var (
	flagFormat          string
	flagDetails         bool
	flagRecommendations bool
	flagOutput          string
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [report.json]",
		Short: "Export a stored report as JSON, CSV or HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				path = filepath.Join(cfg.Results.Dir, "latest", "report.json")
			}

			rep, err := result.ReadReport(path)
			if err != nil {
				return err
			}
			out, err := report.Export(rep, report.ExportOptions{
				Format:                 flagFormat,
				IncludeDetails:         flagDetails,
				IncludeRecommendations: flagRecommendations,
			})
			if err != nil {
				return err
			}

			if flagOutput == "" {
				fmt.Print(out)
				return nil
			}
			if err := os.WriteFile(flagOutput, []byte(out), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", flagOutput, err)
			}
			fmt.Printf("Wrote %s\n", flagOutput)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "json", "output format (json, csv, html)")
	cmd.Flags().BoolVar(&flagDetails, "details", false, "include per-result detail")
	cmd.Flags().BoolVar(&flagRecommendations, "recommendations", true, "include recommendations")
	cmd.Flags().StringVar(&flagOutput, "output", "", "write to file instead of stdout")
	return cmd
}
