package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	queryTime  string
	queryStart string
	queryEnd   string
	queryStep  string
)

var queryCmd = &cobra.Command{
	Use:   "query DATASOURCE PROMQL",
	Short: "Run a PromQL query through the server",
	Long: `Convenience wrapper around the query_instant and query_range tools.
Passing --start, --end and --step runs a range query, otherwise an
instant query.`,
	Example: `  # Instant query
  proms-mcp query prod-prometheus 'up'

  # Range query
  proms-mcp query prod-prometheus 'rate(http_requests_total[5m])' \
    --start 2024-01-01T00:00:00Z --end 2024-01-01T06:00:00Z --step 5m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasource, promql := args[0], args[1]

		tool := "query_instant"
		toolArgs := map[string]any{
			"datasource_id": datasource,
			"promql":        promql,
		}
		if queryStart != "" || queryEnd != "" || queryStep != "" {
			if queryStart == "" || queryEnd == "" || queryStep == "" {
				return fmt.Errorf("range queries need --start, --end and --step")
			}
			tool = "query_range"
			toolArgs["start"] = queryStart
			toolArgs["end"] = queryEnd
			toolArgs["step"] = queryStep
		} else if queryTime != "" {
			toolArgs["time"] = queryTime
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Running %s against '%s'...", tool, datasource)
		result, correlation, err := cli.CallTool(cmd.Context(), tool, toolArgs)
		if err != nil {
			return logError(err, correlation, "query failed")
		}

		if result.Failed() {
			log.Error().Msgf("%s query failed: %s", redCross, result.Error)
			return fmt.Errorf("query against %s failed", datasource)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(json.RawMessage(result.Data))
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryTime, "time", "", "Evaluation timestamp for instant queries (RFC3339 or unix)")
	queryCmd.Flags().StringVar(&queryStart, "start", "", "Range start (RFC3339 or unix)")
	queryCmd.Flags().StringVar(&queryEnd, "end", "", "Range end (RFC3339 or unix)")
	queryCmd.Flags().StringVar(&queryStep, "step", "", "Range resolution step, e.g. 5m")
}
