package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/pkg/client"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit entry",
	Example: `  proms-mcp audit inspect d1g3rqj2i7vs73e0`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msgf("Retrieving entry with correlation ID '%s'...", correlationID)
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         1,
			CorrelationID: correlationID,
		})
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit entry")
		}
		if len(audits) == 0 {
			log.Warn().Str("correlation_id", correlationID).Msg("no audit entries found")
			return nil
		}

		entry := audits[0]

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		printKV := func(key string, val any) {
			fmt.Printf("  %-26s %v\n", faint(key)+":", val)
		}

		status := green("granted")
		if !entry.Granted {
			status = red("denied")
		}

		fmt.Println(bold("\n── Audit Entry ──"))
		printKV("Correlation ID", entry.ID)
		printKV("Time", entry.Time.Local().Format(time.RFC1123))
		printKV("Action", entry.Action)
		printKV("Decision", status)
		printKV("Duration", fmt.Sprintf("%dms", entry.DurationMS))

		fmt.Println(bold("\n── Credential ──"))
		if entry.Fingerprint != "" {
			printKV("Fingerprint", entry.Fingerprint)
		} else {
			printKV("Fingerprint", faint("(none, credential absent)"))
		}
		printKV("Method", entry.Method)

		fmt.Println(bold("\n── Identity ──"))
		if entry.Identity != nil {
			printKV("Username", entry.Identity.Username)
			printKV("Subject", entry.Identity.SubjectID)
			printKV("Groups", strings.Join(entry.Identity.Groups, ", "))
		} else {
			fmt.Printf("  %s\n", faint("(no identity resolved)"))
		}

		fmt.Println(bold("\n── Outcome ──"))
		if entry.Cause != "" {
			printKV("Cause", entry.Cause)
		}
		if entry.Error != "" {
			printKV("Error Message", red(entry.Error))
		}
		if len(entry.Metadata) > 0 {
			printKV("Metadata", "")
			keys := make([]string, 0, len(entry.Metadata))
			for k := range entry.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("       %-16s %v\n", faint(k)+":", entry.Metadata[k])
			}
		}
		fmt.Println()

		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)
}
