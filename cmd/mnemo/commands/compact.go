package commands

import (
	"github.com/spf13/cobra"

	"github.com/mnemohq/mnemo/pkg/cli"
	"github.com/mnemohq/mnemo/pkg/compaction"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Downgrade compression on memories whose age has outrun their tier's level",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tierFlag, _ := cmd.Flags().GetString("tier")
		tiers := allTiers
		if tierFlag != "" {
			tiers = []mnemo.Tier{mnemo.Tier(tierFlag)}
		}

		compactor := compaction.New(store, compaction.DefaultConfig)
		now := mnemo.NowMicro()

		for _, tier := range tiers {
			res, err := compactor.Compact(cmd.Context(), tier, now)
			if err != nil {
				return err
			}
			cli.PrintInfo("%s: compacted=%d skipped_high_weight=%d already_compressed=%d",
				tier, res.Compacted, res.SkippedHighWeight, res.AlreadyCompressed)
			if len(res.IDs) > 0 {
				if err := printOutput(res); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	compactCmd.Flags().String("tier", "", "restrict to one tier (hot, warm, cold)")
	rootCmd.AddCommand(compactCmd)
}
