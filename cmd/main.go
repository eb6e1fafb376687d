package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var port string

var rootCmd = &cobra.Command{
	Use:   "intake-agent",
	Short: "Chat and client intake interview backend",
	Long: `intake-agent serves /chat, /intake and /verify-developer.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda handler behind API Gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLambda(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "listen port for serve mode (overrides PORT)")
	rootCmd.AddCommand(serveCmd, lambdaCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
