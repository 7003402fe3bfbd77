package handlers

import (
	"net/http"

	"github.com/smashpoint/league-system/docs"
)

// ServeOpenAPI serves the embedded OpenAPI document the Swagger UI
// points at.
func ServeOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(docs.OpenAPI)
}
