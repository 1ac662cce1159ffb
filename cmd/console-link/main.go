package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var listenAddr string
	var resource string
	var id string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use: "console-link",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Acquire the anti-forgery token and keep the realtime channels open",
		Run: func(cmd *cobra.Command, args []string) {
			startConsoleLink(listenAddr)
		},
	}

	var resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Print the realtime endpoint for a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveEndpoint(cmd.OutOrStdout(), resource, id)
		},
	}

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8081", "Hostname:port")

	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVarP(&resource, "resource", "r", "", "Resource type, defaults to the configured websocket resource")
	resolveCmd.Flags().StringVarP(&id, "id", "i", "", "Resource id")
	resolveCmd.MarkFlagRequired("id")

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
