package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	querymcp "go-query-gateway/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs the guard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: bq_query, estimate_query_cost, list_tables, get_table_schema,\n" +
		"get_query_limits, validate_query.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(os.Getenv("ENV"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID := a.cfg.BigQuery.ProjectID
	if a.bq != nil {
		projectID = a.bq.ProjectID()
	}

	srv := querymcp.New(querymcp.Config{ProjectID: projectID}, a.guard, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", zap.Error(err))
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
