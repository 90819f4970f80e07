package core

// Datasource is one queryable Prometheus instance from the provisioning file.
type Datasource struct {
	// Name is the identifier callers use to address this instance.
	Name string `json:"name"`

	// URL is the base URL of the Prometheus HTTP API.
	URL string `json:"url"`

	// AuthHeaderName is the optional header carrying credentials upstream
	// (e.g. "Authorization").
	AuthHeaderName string `json:"-"`

	// AuthHeaderValue is the secret header value. Never logged or serialized.
	AuthHeaderValue string `json:"-"`
}

// HasAuth reports whether requests to this datasource carry an auth header.
func (d Datasource) HasAuth() bool {
	return d.AuthHeaderName != "" && d.AuthHeaderValue != ""
}
