package commands

import (
	"github.com/spf13/cobra"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// tierStats is the "mnemo stats" table: one row per tier plus the
// grand total.
type tierStats struct {
	Hot   int `json:"hot" yaml:"hot"`
	Warm  int `json:"warm" yaml:"warm"`
	Cold  int `json:"cold" yaml:"cold"`
	Total int `json:"total" yaml:"total"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory counts per tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var s tierStats
		if s.Hot, err = store.CountByTier(cmd.Context(), mnemo.TierHot); err != nil {
			return err
		}
		if s.Warm, err = store.CountByTier(cmd.Context(), mnemo.TierWarm); err != nil {
			return err
		}
		if s.Cold, err = store.CountByTier(cmd.Context(), mnemo.TierCold); err != nil {
			return err
		}
		if s.Total, err = store.TotalCount(cmd.Context()); err != nil {
			return err
		}
		return printOutput(s)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
