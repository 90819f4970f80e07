package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/pkg/client"
)

var (
	auditLogLimit       int
	auditLogFile        string
	auditLogUsername    string
	auditLogFingerprint string
)

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display verification audit entries",
	Long: `Fetches audit entries from a running server, or with --file parses a
local JSONL audit log written by the file audit backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			audits []core.AuditEntry
			err    error
		)
		if auditLogFile != "" {
			audits, err = readAuditFile(auditLogFile)
			if err != nil {
				return err
			}
		} else {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}

			log.Info().Msg("Fetching audit log...")
			var correlation string
			audits, correlation, err = cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
				Limit:       uint(auditLogLimit),
				Username:    auditLogUsername,
				Fingerprint: auditLogFingerprint,
			})
			if err != nil {
				return logError(err, correlation, "failed to fetch audit log")
			}
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))
		renderAuditTable(audits)
		return nil
	},
}

// readAuditFile parses a JSONL audit log and applies the same filters
// the server applies, with the newest entries last.
func readAuditFile(path string) ([]core.AuditEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var entries []core.AuditEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry core.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("skipping unparsable audit line")
			continue
		}
		if auditLogUsername != "" && (entry.Identity == nil || entry.Identity.Username != auditLogUsername) {
			continue
		}
		if auditLogFingerprint != "" && entry.Fingerprint != auditLogFingerprint {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit file: %w", err)
	}

	if auditLogLimit > 0 && len(entries) > auditLogLimit {
		entries = entries[len(entries)-auditLogLimit:]
	}
	return entries, nil
}

func renderAuditTable(audits []core.AuditEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{
		"Time", "Correlation", "Username", "Granted", "Method", "Cause", "Error",
	})

	for _, e := range audits {
		status := "YES"
		if !e.Granted {
			status = "NO"
		}

		username := "(unknown)"
		if e.Identity != nil {
			username = truncate(e.Identity.Username, 35)
		}

		t.AppendRow(table.Row{
			e.Time.Format(time.RFC3339),
			truncate(e.ID, 20),
			username,
			status,
			e.Method,
			e.Cause,
			truncate(e.Error, 40),
		})
	}

	applyTableFormat(t)
	t.Render()
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().IntVarP(&auditLogLimit, "limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogFile, "file", "", "Parse a local JSONL audit file instead of querying the server")
	auditLogCmd.Flags().StringVar(&auditLogUsername, "username", "", "Only entries for this username")
	auditLogCmd.Flags().StringVar(&auditLogFingerprint, "fingerprint", "", "Only entries for this credential fingerprint")
}
