package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	treePath   string
)

var rootCmd = &cobra.Command{
	Use:   "agenttree",
	Short: "Monitor a tree of agents and propagate the worst state to the root",
	Long: `agenttree keeps a tree of monitoring agents fresh. Leaves run probes
(http, tcp, dns, ping, postgres, redis) and map their values to levels;
every parent shows the worst level of its subtree.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&treePath, "tree", "t", "", "standalone agent tree file, overrides the configured tree")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
