package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lthummus/loginguard/internal/server"
)

func init() {
	rootCmd.AddCommand(healthCheckCmd)
	rootCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(simulateCmd)
}

var rootCmd = &cobra.Command{
	Use:   "loginguard",
	Short: "loginguard is a login service that locks out usernames after repeated failures",
	Run: func(cmd *cobra.Command, args []string) {
		server.RunServer()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
