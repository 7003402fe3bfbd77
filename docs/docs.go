// Package docs embeds the OpenAPI document served under /docs and
// rendered by the Swagger UI mounted in routes.
package docs

import _ "embed"

//go:embed openapi.json
var OpenAPI []byte
