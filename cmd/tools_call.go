package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	toolsCallArgs []string
	toolsCallJSON string
)

var toolsCallCmd = &cobra.Command{
	Use:   "call NAME",
	Short: "Invoke an MCP tool by name",
	Example: `  # List metrics of a datasource
  proms-mcp tools call list_metrics --arg datasource_id=prod-prometheus

  # Pass arguments as raw JSON
  proms-mcp tools call query_instant --json '{"datasource_id":"prod","promql":"up"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		toolArgs := map[string]any{}
		if toolsCallJSON != "" {
			if err := json.Unmarshal([]byte(toolsCallJSON), &toolArgs); err != nil {
				return fmt.Errorf("parsing --json arguments: %w", err)
			}
		}
		for _, pair := range toolsCallArgs {
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				return fmt.Errorf("invalid --arg %q, expected key=value", pair)
			}
			toolArgs[key] = value
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Calling tool '%s'...", name)
		result, correlation, err := cli.CallTool(cmd.Context(), name, toolArgs)
		if err != nil {
			return logError(err, correlation, "tool call failed")
		}

		if result.Failed() {
			log.Error().Msgf("%s tool answered with an error: %s", redCross, result.Error)
			return fmt.Errorf("tool %s failed", name)
		}

		log.Info().Msgf("%s tool call succeeded (%s)", greenCheck, result.Timestamp)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(json.RawMessage(result.Data))
	},
}

func init() {
	toolsCmd.AddCommand(toolsCallCmd)

	toolsCallCmd.Flags().StringArrayVar(&toolsCallArgs, "arg", nil, "Tool argument as key=value (repeatable)")
	toolsCallCmd.Flags().StringVar(&toolsCallJSON, "json", "", "Tool arguments as a raw JSON object")
}
