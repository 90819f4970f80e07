package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/prom"
)

var datasourcesFile string

var datasourcesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List datasources from the provisioning file",
	Long: `Parses the Grafana-style datasource provisioning file and lists every
Prometheus datasource it defines. Credentials are never printed, only
whether an auth header is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := datasourcesFile
		if path == "" {
			cfg, err := f.LoadServerConfig()
			if err != nil {
				return err
			}
			path = cfg.Datasources.Path
		}
		if path == "" {
			return fmt.Errorf("no datasource file configured (use --file or --config)")
		}

		log.Debug().Msgf("Parsing datasource file '%s'...", path)
		registry, err := prom.BuildRegistry(config.DatasourcesConfig{Path: path}, config.DefaultQueryTimeout)
		if err != nil {
			return fmt.Errorf("parsing datasource file: %w", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "URL", "Auth"})

		for _, ds := range registry.List() {
			auth := faint("none")
			if ds.HasAuth() {
				auth = greenCheck + " header set"
			}
			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(ds.Name),
				truncate(ds.URL, 60),
				auth,
			})
		}

		applyTableFormat(t)
		t.Render()

		log.Info().Msgf("%d datasources configured", registry.Len())
		return nil
	},
}

func init() {
	datasourcesCmd.AddCommand(datasourcesListCmd)

	f.bindConfigFlag(datasourcesListCmd.Flags())
	datasourcesListCmd.Flags().StringVar(&datasourcesFile, "file", "", "Datasource provisioning file (overrides --config)")
}
