package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemohq/mnemo/pkg/cli"
	"github.com/mnemohq/mnemo/pkg/embed"
	"github.com/mnemohq/mnemo/pkg/ingestion"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/router"
)

var allTiers = []mnemo.Tier{mnemo.TierHot, mnemo.TierWarm, mnemo.TierCold}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "List, inspect, add, and delete memories",
}

var memListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories, optionally filtered by tier",
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

		var out []mnemo.Memory
		for _, tier := range tiers {
			ms, err := store.ListByTier(cmd.Context(), tier)
			if err != nil {
				return err
			}
			out = append(out, ms...)
		}
		return printOutput(out)
	},
}

var memShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single memory by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		m, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(m)
	},
}

var memAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Ingest a manual memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rt, err := router.New()
		if err != nil {
			return err
		}
		embedder := embed.NewLocal(cfg.EmbeddingDimension)
		ingestor := ingestion.New(rt, embedder, store)

		m, err := ingestor.Ingest(cmd.Context(), args[0], mnemo.SourceManual, "")
		if err != nil {
			return err
		}
		if m == nil {
			cli.PrintWarning("text too short, filtered out")
			return nil
		}
		cli.PrintSuccess("stored memory %s", m.ID)
		return printOutput(m)
	},
}

var memDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a memory (no tombstone is written for manual deletions)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		found, err := store.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("memory %q not found", args[0])
		}
		cli.PrintSuccess("deleted memory %s", args[0])
		return nil
	},
}

func init() {
	memListCmd.Flags().String("tier", "", "restrict to one tier (hot, warm, cold)")

	memoryCmd.AddCommand(memListCmd, memShowCmd, memAddCmd, memDeleteCmd)
	rootCmd.AddCommand(memoryCmd)
}

func printOutput(v any) error {
	format := cli.FormatYAML
	if jsonOutput {
		format = cli.FormatJSON
	}
	return cli.Output(v, cli.OutputOptions{Format: format})
}
