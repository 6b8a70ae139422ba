// Package api embeds the OpenAPI description served at /api/openapi.yaml.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document for the HTTP API.
//
//go:embed openapi/openapi.yaml
var OpenAPI []byte
