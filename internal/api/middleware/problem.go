package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// problemDetail is the RFC 7807 body emitted by middleware-level rejections
// (panics, rate limits). Handler-level errors use the api package's richer
// ProblemDetail; middleware cannot import it without a cycle.
type problemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// writeProblem writes an RFC 7807 error response.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, title, detail string) error {
	problem := problemDetail{
		Type:          fmt.Sprintf("https://jonquils.io/problems/%d", status),
		Title:         title,
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: GetCorrelationID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
