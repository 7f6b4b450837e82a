package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(tablesCmd)
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables and patterns the access policy allows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), zap.NewNop(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, t := range a.guard.ListAllowedTables() {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}
