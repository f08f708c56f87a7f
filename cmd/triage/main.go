// Command triage is the office's terminal dashboard for the lead API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dashboard"
	"github.com/raczniakservices/HVAC/internal/logger"
)

type globalFlags struct {
	server      string
	operatorKey string
	environment string
	verbose     bool
}

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "triage",
		Short:         "Work the lead queue from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.server, "server", envOr("TRIAGE_SERVER", "http://localhost:4173"), "Lead API base URL")
	cmd.PersistentFlags().StringVar(&flags.operatorKey, "key", os.Getenv("TRIAGE_OPERATOR_KEY"), "Operator key")
	cmd.PersistentFlags().StringVar(&flags.environment, "env", "production", "Logging environment (production, development)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log requests and refreshes")

	cmd.AddCommand(
		watchCmd(flags),
		listCmd(flags),
		ownerCmd(flags),
		nextStepCmd(flags),
		resultCmd(flags),
		deleteCmd(flags),
		clearCmd(flags),
		summaryCmd(flags),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (f *globalFlags) logger() (*zap.Logger, error) {
	if !f.verbose {
		return zap.NewNop(), nil
	}
	return logger.New(f.environment, "cli", "debug")
}

func (f *globalFlags) client() *dashboard.HTTPClient {
	return dashboard.NewHTTPClient(f.server, f.operatorKey, nil)
}
