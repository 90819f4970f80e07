package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✖")
)

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
}

// logError logs a remote command failure together with the server-side
// correlation id, which is the handle for looking the request up in the
// audit log.
func logError(err error, correlation, msg string) error {
	event := log.Error().Err(err)
	if correlation != "" {
		event = event.Str("correlation_id", correlation)
	}
	event.Msg(msg)
	return err
}

// readCredentialArg resolves a credential command argument: a literal
// value, or "-" to read from stdin so the credential stays out of the
// shell history.
func readCredentialArg(arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	log.Debug().Msg("reading credential from stdin")
	data, err := os.ReadFile("/dev/stdin")
	if err != nil {
		return "", fmt.Errorf("failed to read credential from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
