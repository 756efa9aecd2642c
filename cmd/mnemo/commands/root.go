// Package commands implements the mnemo CLI's subcommands: a cobra
// root command with a persistent config load and one file per
// subcommand group.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Inspect and manage the Mnemo memory store",
	Long: `mnemo is a collaborator CLI for the Mnemo memory proxy.

It opens the same on-disk store the proxy writes to and lets an
operator list, inspect, and delete memories, read capacity stats,
trigger compaction, and print the effective configuration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON instead of YAML")
}

// openStore loads Config from the environment and opens its Badger-backed
// Store. Callers must Close it.
func openStore() (memstore.Store, *mnemo.Config, error) {
	cfg, err := mnemo.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := memstore.NewBadger(memstore.BadgerConfig{
		DataDir:   cfg.DataDir,
		Dimension: cfg.EmbeddingDimension,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// loadConfigOnly loads Config without opening the store, for subcommands
// that only need to inspect configuration.
func loadConfigOnly() (*mnemo.Config, error) {
	return mnemo.LoadConfig()
}
