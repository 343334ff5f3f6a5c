package main

import "github.com/spf13/cobra"

// serveCmd is an explicit alias for the root command's default behavior.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the FieldBridge server and background workers",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
