package cli

import (
	"fmt"

	"alpharia-assessment/internal/config"
	"alpharia-assessment/internal/itembank"
	"github.com/spf13/cobra"
)

// NewSectionsCmd prints the sections of the built-in item bank.
func NewSectionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the sections of the built-in item bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			bank := itembank.Default()
			out := cmd.OutOrStdout()
			for i, sec := range bank.Sections {
				fmt.Fprintf(out, "%2d  %-20s %-8s %3d items  %s\n", i+1, sec.Key, sec.Kind, len(sec.Items), sec.Title)
			}
			fmt.Fprintf(out, "total %d items, pass threshold %d%%, %d attempts per item, time limit %s\n",
				bank.TotalItems(), cfg.Assessment.PassThreshold, cfg.Assessment.MaxAttempts, cfg.Assessment.TimeLimit)
			return nil
		},
	}
}
