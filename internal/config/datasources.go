package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/core"
)

// datasourceFile mirrors the Grafana datasource provisioning format. Only
// the fields the gateway cares about are mapped; everything else in the
// file is ignored.
type datasourceFile struct {
	APIVersion  int               `yaml:"apiVersion"`
	Datasources []datasourceEntry `yaml:"datasources"`
}

type datasourceEntry struct {
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	URL            string         `yaml:"url"`
	JSONData       map[string]any `yaml:"jsonData"`
	SecureJSONData map[string]any `yaml:"secureJsonData"`
}

// Grafana provisions a single custom header as a name/value pair split
// across jsonData and secureJsonData.
const (
	headerNameKey  = "httpHeaderName1"
	headerValueKey = "httpHeaderValue1"
)

// LoadDatasources reads a Grafana provisioning file and returns the
// Prometheus datasources it declares. A missing file is not an error:
// the server boots with zero datasources and the file can appear later.
func LoadDatasources(path string) ([]core.Datasource, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Datasource file not found, starting without datasources")
			return nil, nil
		}
		return nil, fmt.Errorf("reading datasource file: %w", err)
	}

	var file datasourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing datasource file: %w", err)
	}

	index := make(map[string]int)
	var out []core.Datasource
	for _, entry := range file.Datasources {
		if entry.Type != "prometheus" {
			log.Debug().
				Str("datasource", entry.Name).
				Str("type", entry.Type).
				Msg("Skipping non-Prometheus datasource")
			continue
		}
		if entry.Name == "" || entry.URL == "" {
			log.Warn().
				Str("datasource", entry.Name).
				Msg("Skipping datasource with missing name or url")
			continue
		}

		ds := core.Datasource{Name: entry.Name, URL: entry.URL}
		headerName, _ := entry.JSONData[headerNameKey].(string)
		headerValue, _ := entry.SecureJSONData[headerValueKey].(string)
		if headerName != "" && headerValue != "" {
			ds.AuthHeaderName = headerName
			ds.AuthHeaderValue = headerValue
		}

		// Grafana resolves duplicate names by letting the last entry win.
		if at, dup := index[ds.Name]; dup {
			log.Debug().Str("datasource", ds.Name).Msg("Duplicate datasource name, keeping the later entry")
			out[at] = ds
			continue
		}
		index[ds.Name] = len(out)
		out = append(out, ds)
	}

	return out, nil
}
