package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/pkg/client"
)

var (
	whoamiVerbose    bool
	whoamiDatasource string
	whoamiRuleFilter string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity the server resolves for your credential",
	Long: `Asks the server which identity the configured credential verifies to,
along with its scopes and the datasources it may access. With --verbose
the full policy evaluation trace is printed, which is useful for
debugging why a datasource is denied or matching the wrong rule.

Note: This command requires a proms-mcp server to be running and reachable.`,
	Example: `  # Who does the server think I am?
  PROMS_MCP_TOKEN=$(oc whoami -t) proms-mcp whoami --server http://localhost:8000

  # Why can't I reach prod-prometheus?
  proms-mcp whoami --verbose --datasource prod-prometheus`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		if whoamiDatasource != "" || whoamiRuleFilter != "" {
			whoamiVerbose = true
		}

		resp, correlation, err := cli.WhoAmI(cmd.Context(), client.WhoAmIOpts{
			Verbose:    whoamiVerbose,
			Datasource: whoamiDatasource,
		})
		if err != nil {
			return logError(err, correlation, "whoami failed")
		}

		fmt.Println(bold("\n── Identity ──"))
		fmt.Printf("  %s:  %s\n", faint("Username"), resp.Identity.Username)
		fmt.Printf("  %s:   %s\n", faint("Subject"), resp.Identity.SubjectID)
		fmt.Printf("  %s:    %s\n", faint("Groups"), strings.Join(resp.Identity.Groups, ", "))
		fmt.Printf("  %s:    %s\n", faint("Method"), resp.Identity.Method)
		fmt.Printf("  %s:    %s\n", faint("Scopes"), strings.Join(resp.Scopes, ", "))

		fmt.Println(bold("\n── Datasources ──"))
		if len(resp.Datasources) == 0 {
			fmt.Printf("  %s\n", faint("(none reachable)"))
		}
		for _, name := range resp.Datasources {
			fmt.Printf("  %s %s\n", greenCheck, name)
		}

		if resp.Trace != nil {
			printTrace(resp.Trace)
		}
		return nil
	},
}

func printTrace(trace *core.EvaluationTrace) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("\n%s\n", bold("Evaluation Trace"))
	fmt.Println(faint("---------------------------------------------------"))

	for _, res := range trace.RuleResults {
		if whoamiRuleFilter != "" && res.RuleName != whoamiRuleFilter {
			continue
		}

		icon := red("✖")
		if res.Matched {
			icon = green("✔")
		}

		fmt.Printf("%s Rule: %s\n", icon, bold(res.RuleName))
		if res.Description != "" {
			fmt.Printf("  %s\n", faint(res.Description))
		}

		var printConditions func(conds []core.ConditionResult, depth int)
		printConditions = func(conds []core.ConditionResult, depth int) {
			indent := strings.Repeat("  ", depth)
			for _, cond := range conds {
				condIcon := red("✖")
				if cond.Matched {
					condIcon = green("✔")
				}

				if cond.Label != "" {
					fmt.Printf("    %s%s %s\n", indent, condIcon, cyan("["+cond.Label+"]"))
					printConditions(cond.Children, depth+1)
					continue
				}

				fmt.Printf("    %s%s %s\n", indent, condIcon, cond.Expression)
				if cond.Reason != "" {
					reason := cond.Reason
					if cond.Matched {
						reason = faint(reason)
					} else {
						reason = yellow(reason)
					}
					fmt.Printf("    %s  ↳ %s\n", indent, reason)
				}
			}
		}
		printConditions(res.ConditionResults, 0)

		fmt.Println()
	}

	fmt.Println(faint("---------------------------------------------------"))
	fmt.Printf("Reachable datasources: %s\n", bold(strings.Join(trace.Datasources, ", ")))
}

func init() {
	rootCmd.AddCommand(whoamiCmd)

	whoamiCmd.Flags().BoolVarP(&whoamiVerbose, "verbose", "v", false, "Include the policy evaluation trace")
	whoamiCmd.Flags().StringVarP(&whoamiDatasource, "datasource", "d", "", "Evaluate the trace against this datasource (implies --verbose)")
	whoamiCmd.Flags().StringVarP(&whoamiRuleFilter, "rule", "r", "", "Filter trace output to a specific rule name")
}
