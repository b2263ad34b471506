// Black Vienna terminal client and development server.
//
//	blackvienna play     Connect to a server and play
//	blackvienna serve    Run a game server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blackvienna/internal/config"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "blackvienna",
	Short: "Black Vienna, a social deduction game",
	Long: `Black Vienna is a social deduction game of investigation cards,
coins and a hidden three-letter conspiracy.

  blackvienna play      Connect to a server and play in the terminal
  blackvienna serve     Run a game server`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
