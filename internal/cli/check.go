package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/guard"
)

// errRejected makes Execute exit 1 without printing the error twice
var errRejected = errors.New("query rejected")

var checkFormat string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check <query>",
	Short: "Check a query against the safety rules and the access policy",
	Long: "Runs the local checks only; BigQuery is never contacted.\n\n" +
		"Exit code 0 if the query would be accepted, 1 if it is rejected.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

type checkResult struct {
	Valid   bool     `json:"valid"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message,omitempty"`
	Tables  []string `json:"tables"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), zap.NewNop(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	res := checkResult{Valid: true, Tables: access.ExtractTables(query)}
	if res.Tables == nil {
		res.Tables = []string{}
	}
	if err := a.guard.Check(query); err != nil {
		res.Valid = false
		res.Kind = guard.Kind(err)
		res.Message = err.Error()
	}

	out := cmd.OutOrStdout()
	switch checkFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	default:
		if res.Valid {
			fmt.Fprintln(out, "OK")
		} else {
			fmt.Fprintf(out, "REJECTED (%s): %s\n", res.Kind, res.Message)
		}
		if len(res.Tables) > 0 {
			fmt.Fprintf(out, "Tables: %s\n", strings.Join(res.Tables, ", "))
		}
	}

	if !res.Valid {
		return errRejected
	}
	return nil
}
