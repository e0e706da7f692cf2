package cmd

import (
	"log/slog"

	"github.com/PrinceBashangezi/CS181NW-P2/core"
	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/spf13/cobra"
)

var (
	topologyPath string
	configPath   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the routing daemon",
	Long: `Starts the daemon on this host: binds the UDP address named in the
topology file, begins the periodic update cycle, and reads console commands
(display, step, packets, update, crash, disable, ...) from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := state.LoadTopology(topologyPath)
		if err != nil {
			return err
		}
		cfg, err := state.LoadLocalCfg(configPath)
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		return core.Start(topo, cfg, level)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&topologyPath, "topology", "t", "", "topology file")
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "optional node config (yaml)")
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	_ = runCmd.MarkFlagRequired("topology")
}
