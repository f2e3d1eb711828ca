// Command wanderai runs the WanderAI travel assistant as an HTTP service,
// an interactive terminal chat or an MCP tool server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "wanderai",
		Short:         "A grounded travel assistant for trips around Pune",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to wanderai.yaml (defaults to ./wanderai.yaml or ./configs/wanderai.yaml)")

	rootCmd.AddCommand(serveCmd, chatCmd, askCmd, mcpCmd, kbCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
