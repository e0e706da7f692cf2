package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvrouter",
	Short: "Distance vector routing daemon",
	Long: `dvrouter runs one node of a distance vector routing network.
Each instance starts knowing only its direct neighbours from a topology file
and converges on shortest-cost routes to every server by periodically
exchanging distance vectors over UDP.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
