package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	accessFile string
)

var rootCmd = &cobra.Command{
	Use:   "query-gateway",
	Short: "Guarded read-only access to BigQuery",
	Long: "Validates SQL, checks referenced tables against an access policy and\n" +
		"dry-runs every query against a billing ceiling before execution.\n" +
		"Serves the guard over HTTP or as an MCP stdio server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVar(&accessFile, "access-control", "", "Access-control file (overrides ACCESS_CONTROL_FILE)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
